package txsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabapcia/walletsync/internal/explorer"
	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/resilience/retry"
	"github.com/gabapcia/walletsync/internal/pkg/types"
	"github.com/gabapcia/walletsync/internal/pkg/workerpool"
)

// ErrProviderAlreadyStarted is returned if Start is called on a running
// provider.
var ErrProviderAlreadyStarted = errors.New("provider already started")

// defaultFetchInterval is the scheduling period between fetch cycles.
const defaultFetchInterval = 30 * time.Second

// State describes where a provider is in its fetch lifecycle.
type State string

const (
	StateIdle       State = "idle"       // waiting for the next tick
	StateFetching   State = "fetching"   // a cycle is in flight
	StateBackingOff State = "backingOff" // last cycle failed; retrying on the next tick
)

// Store receives merged transactions for persistence. The transaction
// store service satisfies it.
type Store interface {
	// Add upserts the given transactions by (chain, hash).
	Add(ctx context.Context, txs []Transaction) error
}

// Provider runs one chain's synchronization: it schedules fetch cycles,
// tracks pagination cursors, reconciles transfer batches with their
// parent transactions, and persists the result. All outbound fetches go
// through the shared worker pool, so the whole fleet respects one global
// concurrency cap.
type Provider struct {
	mu            sync.Mutex
	state         State
	started       bool
	runCtx        context.Context    // lifetime of the whole provider run
	cancelRun     context.CancelFunc // stops everything, canceling in-flight work
	cancelTimers  context.CancelFunc // suspends scheduling only; cursors survive
	schedulerDone chan struct{}      // closed when the scheduler goroutine exits

	session   Session
	client    explorer.Client
	store     Store
	pool      *workerpool.Pool
	tokens    TokenService
	cursors   CursorStorage
	retry     retry.Retry
	feeSource FeeSource // optional fallback for chains without a gas endpoint

	fetchInterval time.Duration
}

// config holds the optional provider settings.
type config struct {
	cursors       CursorStorage
	retry         retry.Retry
	feeSource     FeeSource
	fetchInterval time.Duration
}

// Option configures a Provider.
type Option func(*config)

// WithCursorStorage persists pagination cursors across restarts. Without
// it, every start re-syncs from block zero.
func WithCursorStorage(cs CursorStorage) Option {
	return func(c *config) {
		c.cursors = cs
	}
}

// WithFetchInterval overrides the scheduling period between fetch cycles.
func WithFetchInterval(d time.Duration) Option {
	return func(c *config) {
		c.fetchInterval = d
	}
}

// WithRetry overrides the retry policy used for contract-detection
// delivery.
func WithRetry(r retry.Retry) Option {
	return func(c *config) {
		c.retry = r
	}
}

// WithFeeSource sets a fallback gas-price source consulted when the
// chain's explorer has no gas endpoint.
func WithFeeSource(fs FeeSource) Option {
	return func(c *config) {
		c.feeSource = fs
	}
}

// NewProvider creates the synchronization provider for one chain session.
func NewProvider(session Session, client explorer.Client, store Store, tokens TokenService, pool *workerpool.Pool, opts ...Option) *Provider {
	cfg := config{
		cursors:       nopCursorStorage{},
		retry:         retry.New(),
		fetchInterval: defaultFetchInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Provider{
		state:         StateIdle,
		session:       session,
		client:        client,
		store:         store,
		pool:          pool,
		tokens:        tokens,
		cursors:       cfg.cursors,
		retry:         cfg.retry,
		feeSource:     cfg.feeSource,
		fetchInterval: cfg.fetchInterval,
	}
}

// Session returns the read-only session this provider syncs.
func (p *Provider) Session() Session {
	return p.session
}

// State reports the provider's current lifecycle state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start begins scheduled fetching: an immediate cycle followed by one per
// fetch interval. Returns ErrProviderAlreadyStarted when already running.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrProviderAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.runCtx = runCtx
	p.cancelRun = cancel
	p.started = true

	p.startTimersLocked(runCtx)
	return nil
}

// startTimersLocked launches the scheduler goroutine. Callers must hold
// p.mu.
func (p *Provider) startTimersLocked(ctx context.Context) {
	timerCtx, cancel := context.WithCancel(ctx)
	p.cancelTimers = cancel

	done := make(chan struct{})
	p.schedulerDone = done

	go func() {
		defer close(done)
		p.runScheduler(timerCtx)
	}()
}

// runScheduler runs one immediate cycle and then one per tick until the
// context ends.
func (p *Provider) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(p.fetchInterval)
	defer ticker.Stop()

	p.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

// StopTimers suspends scheduling without losing cursor state. In-flight
// work is canceled; RunScheduledTimers resumes from the last cursor.
func (p *Provider) StopTimers() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTimersLocked()
}

// stopTimersLocked cancels the scheduler if running. Callers must hold
// p.mu.
func (p *Provider) stopTimersLocked() {
	if p.cancelTimers != nil {
		p.cancelTimers()
		p.cancelTimers = nil
	}
}

// RunScheduledTimers resumes scheduled fetching after StopTimers. It is a
// no-op on a stopped provider or when timers are already running.
func (p *Provider) RunScheduledTimers() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.cancelTimers != nil || p.runCtx == nil {
		return
	}

	p.startTimersLocked(p.runCtx)
}

// Stop cancels all in-flight work and releases resources. The provider
// can be started again afterwards.
func (p *Provider) Stop() {
	p.mu.Lock()

	p.stopTimersLocked()
	if p.cancelRun != nil {
		p.cancelRun()
		p.cancelRun = nil
	}
	p.runCtx = nil
	p.started = false
	done := p.schedulerDone
	p.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Fetch triggers one fetch cycle on demand, outside the schedule. If a
// cycle is already in flight it waits for that cycle instead of starting
// another, so on return one full cycle has completed either way.
func (p *Provider) Fetch(ctx context.Context) {
	if p.runCycle(ctx) {
		return
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for p.State() == StateFetching {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// beginCycle transitions idle/backingOff -> fetching. It reports false
// when a cycle is already running, in which case the caller skips.
func (p *Provider) beginCycle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateFetching {
		return false
	}
	p.state = StateFetching
	return true
}

// endCycle transitions fetching -> idle on success or backingOff on
// failure. A failed cycle leaves its cursors untouched and waits for the
// next scheduled tick; there is no immediate retry.
func (p *Provider) endCycle(failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if failed {
		p.state = StateBackingOff
		return
	}
	p.state = StateIdle
}

// runCycle executes one full fetch cycle: the normal-transaction sync and
// one transfer sync per supported token kind, all submitted to the shared
// pool and running concurrently. Every error is absorbed here at the
// cycle boundary; nothing escapes to other chains or to the process. It
// reports false when a cycle was already in flight and nothing ran.
func (p *Provider) runCycle(ctx context.Context) bool {
	if !p.beginCycle() {
		return false
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
	)

	submit := func(endpoint Endpoint, task func(ctx context.Context) error) {
		wg.Add(1)
		err := p.pool.Go(ctx, func(ctx context.Context) {
			defer wg.Done()

			if err := task(ctx); err != nil {
				failed.Store(true)
				logger.Error(ctx, "fetch cycle task failed",
					"chain", p.session.ChainID,
					"endpoint", endpoint,
					"error", err,
				)
			}
		})
		if err != nil {
			// Pool admission was canceled; the cycle is shutting down.
			wg.Done()
			failed.Store(true)
		}
	}

	submit(EndpointNormal, p.syncNormalTransactions)

	for _, kind := range explorer.TokenKinds() {
		if !explorer.Supports(p.client.Provider(), kind) {
			continue
		}

		endpoint := endpointForKind(kind)
		submit(endpoint, func(ctx context.Context) error {
			return p.syncTokenTransfers(ctx, kind)
		})
	}

	wg.Wait()
	p.endCycle(failed.Load())
	return true
}

// classifyFetchError separates "clean empty result" conditions from real
// failures: an unsupported endpoint and HTTP 404 both mean "no data
// available" and must not abort the cycle or be logged as errors.
func classifyFetchError(err error) (empty bool, fatal error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, explorer.ErrUnsupported), errors.Is(err, explorer.ErrNotFound):
		return true, nil
	default:
		return false, err
	}
}

// syncNormalTransactions fetches full transactions from the cursor's
// watermark forward, persists them, and advances the cursor past the
// highest block seen.
func (p *Provider) syncNormalTransactions(ctx context.Context) error {
	cursor := p.loadCursor(ctx, EndpointNormal)

	raws, err := p.client.NormalTransactions(ctx, p.session.Wallet, cursor.StartBlock, 0, explorer.SortAscending)
	if empty, fatal := classifyFetchError(err); fatal != nil {
		return fatal
	} else if empty || len(raws) == 0 {
		return nil
	}

	known := p.knownTokensFor(ctx, batchAddresses(raws))
	txs := BuildAll(raws, p.session.ChainID, known)

	if err := p.store.Add(ctx, txs); err != nil {
		return err
	}

	p.dispatchContractDetection(ctx, collectDetectedContracts(txs))

	var maxBlock uint64
	for _, tx := range txs {
		if tx.BlockNumber > maxBlock {
			maxBlock = tx.BlockNumber
		}
	}
	p.saveCursor(ctx, EndpointNormal, Cursor{StartBlock: maxBlock + 1, PageSize: cursor.PageSize})
	return nil
}

// syncTokenTransfers fetches transfer events of one kind from the
// cursor's watermark forward, backfills the normal transactions covering
// their block range, merges the two batches, and persists the result.
// The backfill strictly follows the transfer fetch it depends on.
func (p *Provider) syncTokenTransfers(ctx context.Context, kind explorer.TokenKind) error {
	endpoint := endpointForKind(kind)
	cursor := p.loadCursor(ctx, endpoint)

	rawTransfers, err := p.client.TokenTransfers(ctx, p.session.Wallet, cursor.StartBlock, kind)
	if empty, fatal := classifyFetchError(err); fatal != nil {
		return fatal
	} else if empty || len(rawTransfers) == 0 {
		return nil
	}

	transfers := BuildAll(rawTransfers, p.session.ChainID, nil)

	minBlock, maxBlock, ok := TransferBlockRange(transfers)
	if !ok {
		return nil
	}

	rawNormals, err := p.client.NormalTransactions(ctx, p.session.Wallet, minBlock, maxBlock, explorer.SortAscending)
	if empty, fatal := classifyFetchError(err); fatal != nil {
		return fatal
	} else if empty {
		rawNormals = nil
	}

	known := p.knownTokensFor(ctx, batchAddresses(rawNormals))
	normals := BuildAll(rawNormals, p.session.ChainID, known)

	merged, watermark := MergeBackfill(transfers, normals)

	if err := p.store.Add(ctx, merged); err != nil {
		return err
	}

	p.dispatchContractDetection(ctx, collectDetectedContracts(merged))

	p.saveCursor(ctx, endpoint, Cursor{StartBlock: watermark + 1, PageSize: cursor.PageSize})
	return nil
}

// batchAddresses gathers the distinct addresses a batch could classify
// against: recipients and token contract addresses.
func batchAddresses(raws []explorer.RawTransaction) types.Set[string] {
	addresses := types.NewSet[string]()
	for _, raw := range raws {
		if raw.To != "" {
			addresses.Add(strings.ToLower(raw.To))
		}
		if raw.ContractAddress != "" {
			addresses.Add(strings.ToLower(raw.ContractAddress))
		}
	}
	return addresses
}

// loadCursor fetches the endpoint's cursor, treating "no cursor yet" as a
// zero cursor.
func (p *Provider) loadCursor(ctx context.Context, endpoint Endpoint) Cursor {
	cursor, err := p.cursors.LoadCursor(ctx, p.session.ChainID, endpoint)
	if err != nil && !errors.Is(err, ErrNoCursorFound) {
		logger.Warn(ctx, "cursor load failed, starting from scratch",
			"chain", p.session.ChainID,
			"endpoint", endpoint,
			"error", err,
		)
	}
	return cursor
}

// saveCursor persists the endpoint's cursor. A persistence failure is
// logged but does not fail the cycle: the worst case is refetching a
// range the store deduplicates anyway.
func (p *Provider) saveCursor(ctx context.Context, endpoint Endpoint, cursor Cursor) {
	if err := p.cursors.SaveCursor(ctx, p.session.ChainID, endpoint, cursor); err != nil {
		logger.Warn(ctx, "cursor save failed",
			"chain", p.session.ChainID,
			"endpoint", endpoint,
			"error", err,
		)
	}
}

// GasPrice answers a fee estimate for this chain, falling back to the
// node RPC source when the explorer has no gas endpoint.
func (p *Provider) GasPrice(ctx context.Context) (explorer.GasPrice, error) {
	price, err := p.client.GasPrice(ctx)
	if err == nil {
		return price, nil
	}

	if errors.Is(err, explorer.ErrUnsupported) && p.feeSource != nil {
		return p.feeSource.GasPrice(ctx)
	}
	return explorer.GasPrice{}, err
}
