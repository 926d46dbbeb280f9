// Package syncfleet coordinates the per-chain synchronization providers:
// one provider per active chain, all sharing one bounded worker pool so
// the whole fleet never exceeds the global fetch concurrency cap. The
// fleet also owns the application lifecycle hooks (backgrounding pauses
// every chain's timers, foregrounding resumes them) and the optimistic
// insert path for locally sent transactions.
package syncfleet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gabapcia/walletsync/internal/explorer"
	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/workerpool"
	"github.com/gabapcia/walletsync/internal/txsync"
)

var (
	// ErrChainNotActive is returned when an operation targets a chain the
	// fleet is not currently syncing.
	ErrChainNotActive = errors.New("chain not active")

	// ErrServiceClosed is returned by mutations on a closed fleet.
	ErrServiceClosed = errors.New("fleet service closed")
)

// defaultConcurrency is the global cap on concurrently running fetches
// across every chain and endpoint.
const defaultConcurrency = 3

// ClientFactory builds the explorer client for one chain session.
type ClientFactory func(session txsync.Session) (explorer.Client, error)

// FeeSourceFactory builds the node-RPC fee fallback for one chain
// session, or nil when the session has no RPC endpoint.
type FeeSourceFactory func(session txsync.Session) txsync.FeeSource

// Service is the fleet coordinator API.
type Service interface {
	// SetActiveChains reconciles the running provider set against the
	// given sessions: providers for new chains are created and started,
	// providers for chains no longer present are stopped, and providers
	// whose session is unchanged keep running untouched.
	SetActiveChains(ctx context.Context, sessions []txsync.Session) error

	// ActiveChains lists the chains currently under sync.
	ActiveChains() []string

	// EnterBackground suspends every provider's timers. Cursor state is
	// preserved, so foregrounding resumes where sync left off.
	EnterBackground()

	// EnterForeground resumes every provider's timers, unless automatic
	// fetching is disabled.
	EnterForeground()

	// Fetch runs one on-demand fetch cycle for the given chain.
	Fetch(ctx context.Context, chainID string) error

	// GasPrice answers a fee estimate for the given chain.
	GasPrice(ctx context.Context, chainID string) (explorer.GasPrice, error)

	// AddSentTransaction records a locally sent transaction immediately as
	// pending, so it is visible before any provider reports it. The next
	// fetch cycle that sees it merges the synced copy into the same row.
	AddSentTransaction(ctx context.Context, tx txsync.Transaction) error

	// Close stops every provider and releases the fleet.
	Close()
}

type service struct {
	mu        sync.Mutex
	providers map[string]*txsync.Provider
	sessions  map[string]txsync.Session
	closed    bool

	pool    *workerpool.Pool
	store   txsync.Store
	tokens  txsync.TokenService
	clients ClientFactory

	feeSources        FeeSourceFactory
	providerOpts      []txsync.Option
	autoFetchDisabled bool
}

var _ Service = (*service)(nil)

type config struct {
	concurrency       int
	feeSources        FeeSourceFactory
	providerOpts      []txsync.Option
	autoFetchDisabled bool
}

// Option configures the fleet service.
type Option func(*config)

// WithConcurrency overrides the global cap on concurrently running
// fetches. Values below 1 are treated as 1.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// WithFeeSourceFactory installs a per-session fee fallback builder, used
// for chains whose explorer has no gas endpoint.
func WithFeeSourceFactory(f FeeSourceFactory) Option {
	return func(c *config) {
		c.feeSources = f
	}
}

// WithProviderOptions forwards options to every provider the fleet
// creates, e.g. cursor storage or a custom fetch interval.
func WithProviderOptions(opts ...txsync.Option) Option {
	return func(c *config) {
		c.providerOpts = append(c.providerOpts, opts...)
	}
}

// WithAutoFetchDisabled stops EnterForeground from resuming timers, for
// installations that only fetch on demand.
func WithAutoFetchDisabled(disabled bool) Option {
	return func(c *config) {
		c.autoFetchDisabled = disabled
	}
}

// New creates the fleet coordinator. clients builds one explorer client
// per session; store and tokens are shared by every provider.
func New(clients ClientFactory, store txsync.Store, tokens txsync.TokenService, opts ...Option) *service {
	cfg := config{concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		providers:         make(map[string]*txsync.Provider),
		sessions:          make(map[string]txsync.Session),
		pool:              workerpool.New(cfg.concurrency),
		store:             store,
		tokens:            tokens,
		clients:           clients,
		feeSources:        cfg.feeSources,
		providerOpts:      cfg.providerOpts,
		autoFetchDisabled: cfg.autoFetchDisabled,
	}
}

func (s *service) SetActiveChains(ctx context.Context, sessions []txsync.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServiceClosed
	}

	desired := make(map[string]txsync.Session, len(sessions))
	active := make([]string, 0, len(sessions))
	for _, session := range sessions {
		desired[session.ChainID] = session
		active = append(active, session.ChainID)
	}

	existing := make([]string, 0, len(s.providers))
	for chainID := range s.providers {
		existing = append(existing, chainID)
	}

	toStart, toKeep, toStop := Reconcile(existing, active)

	// A kept chain whose session changed (e.g. a different wallet) still
	// needs a fresh provider.
	for _, chainID := range toKeep {
		if s.sessions[chainID] != desired[chainID] {
			toStop = append(toStop, chainID)
			toStart = append(toStart, chainID)
		}
	}

	for _, chainID := range toStop {
		s.stopProviderLocked(chainID)
	}

	var errs []error
	for _, chainID := range toStart {
		if err := s.startProviderLocked(ctx, desired[chainID]); err != nil {
			errs = append(errs, fmt.Errorf("chain %s: %w", chainID, err))
		}
	}

	return errors.Join(errs...)
}

// startProviderLocked creates and starts the provider for one session.
// Callers must hold s.mu.
func (s *service) startProviderLocked(ctx context.Context, session txsync.Session) error {
	client, err := s.clients(session)
	if err != nil {
		return err
	}

	// Cloned so the per-session append below never writes into the
	// configured slice's backing array.
	opts := slices.Clone(s.providerOpts)
	if s.feeSources != nil {
		if fs := s.feeSources(session); fs != nil {
			opts = append(opts, txsync.WithFeeSource(fs))
		}
	}

	provider := txsync.NewProvider(session, client, s.store, s.tokens, s.pool, opts...)
	if err := provider.Start(ctx); err != nil {
		return err
	}

	if s.autoFetchDisabled {
		provider.StopTimers()
	}

	s.providers[session.ChainID] = provider
	s.sessions[session.ChainID] = session

	logger.Info(ctx, "chain sync started", "chain", session.ChainID, "wallet", session.Wallet)
	return nil
}

// stopProviderLocked stops and removes one chain's provider. Callers must
// hold s.mu.
func (s *service) stopProviderLocked(chainID string) {
	provider, ok := s.providers[chainID]
	if !ok {
		return
	}

	provider.Stop()
	delete(s.providers, chainID)
	delete(s.sessions, chainID)
}

func (s *service) ActiveChains() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	chains := make([]string, 0, len(s.providers))
	for chainID := range s.providers {
		chains = append(chains, chainID)
	}
	return chains
}

func (s *service) EnterBackground() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, provider := range s.providers {
		provider.StopTimers()
	}
}

func (s *service) EnterForeground() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.autoFetchDisabled {
		return
	}

	for _, provider := range s.providers {
		provider.RunScheduledTimers()
	}
}

func (s *service) Fetch(ctx context.Context, chainID string) error {
	s.mu.Lock()
	provider, ok := s.providers[chainID]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrChainNotActive, chainID)
	}

	provider.Fetch(ctx)
	return nil
}

func (s *service) GasPrice(ctx context.Context, chainID string) (explorer.GasPrice, error) {
	s.mu.Lock()
	provider, ok := s.providers[chainID]
	s.mu.Unlock()

	if !ok {
		return explorer.GasPrice{}, fmt.Errorf("%w: %s", ErrChainNotActive, chainID)
	}

	return provider.GasPrice(ctx)
}

func (s *service) AddSentTransaction(ctx context.Context, tx txsync.Transaction) error {
	if tx.Hash == "" || tx.ChainID == "" {
		return fmt.Errorf("sent transaction needs a chain and a hash")
	}

	if tx.Status == "" {
		tx.Status = txsync.StatusPending
	}

	return s.store.Add(ctx, []txsync.Transaction{tx})
}

func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for chainID := range s.providers {
		s.stopProviderLocked(chainID)
	}
	s.closed = true
}
