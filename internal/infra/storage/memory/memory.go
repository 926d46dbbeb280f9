// Package memory provides the map-backed persistence adapter. It backs
// installations without Redis configured and is the storage double used
// across the test suites. Rows live only as long as the process.
package memory

import (
	"context"
	"sync"

	"github.com/gabapcia/walletsync/internal/tokenregistry"
	"github.com/gabapcia/walletsync/internal/txstore"
	"github.com/gabapcia/walletsync/internal/txsync"
)

type cursorKey struct {
	chainID  string
	endpoint txsync.Endpoint
}

type tokenKey struct {
	chainID string
	address string
}

// Storage implements the transaction, cursor and token storage ports on
// plain maps. Safe for concurrent use.
type Storage struct {
	mu       sync.RWMutex
	txs      map[txsync.Key]txsync.Transaction
	cursors  map[cursorKey]txsync.Cursor
	tokens   map[tokenKey]txsync.Token
	detected map[string]map[txsync.DetectedContract]struct{}
}

var (
	_ txstore.Storage            = (*Storage)(nil)
	_ txsync.CursorStorage       = (*Storage)(nil)
	_ tokenregistry.TokenStorage = (*Storage)(nil)
)

// New creates an empty in-memory storage.
func New() *Storage {
	return &Storage{
		txs:      make(map[txsync.Key]txsync.Transaction),
		cursors:  make(map[cursorKey]txsync.Cursor),
		tokens:   make(map[tokenKey]txsync.Token),
		detected: make(map[string]map[txsync.DetectedContract]struct{}),
	}
}

func (s *Storage) GetTransaction(ctx context.Context, key txsync.Key) (txsync.Transaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[key]
	return tx, ok, nil
}

func (s *Storage) SaveTransactions(ctx context.Context, txs []txsync.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		s.txs[tx.Key()] = tx
	}
	return nil
}

func (s *Storage) DeleteTransactions(ctx context.Context, keys []txsync.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.txs, key)
	}
	return nil
}

func (s *Storage) ListTransactions(ctx context.Context, chainIDs ...string) ([]txsync.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := make(map[string]struct{}, len(chainIDs))
	for _, chainID := range chainIDs {
		filter[chainID] = struct{}{}
	}

	var out []txsync.Transaction
	for _, tx := range s.txs {
		if len(filter) > 0 {
			if _, ok := filter[tx.ChainID]; !ok {
				continue
			}
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Storage) SaveCursor(ctx context.Context, chainID string, endpoint txsync.Endpoint, cursor txsync.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[cursorKey{chainID: chainID, endpoint: endpoint}] = cursor
	return nil
}

func (s *Storage) LoadCursor(ctx context.Context, chainID string, endpoint txsync.Endpoint) (txsync.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, ok := s.cursors[cursorKey{chainID: chainID, endpoint: endpoint}]
	if !ok {
		return txsync.Cursor{}, txsync.ErrNoCursorFound
	}
	return cursor, nil
}

func (s *Storage) SaveToken(ctx context.Context, token txsync.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[tokenKey{chainID: token.ChainID, address: token.Address}] = token
	return nil
}

func (s *Storage) GetToken(ctx context.Context, chainID, address string) (txsync.Token, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[tokenKey{chainID: chainID, address: address}]
	return token, ok, nil
}

func (s *Storage) SaveDetectedContracts(ctx context.Context, chainID string, contracts []txsync.DetectedContract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.detected[chainID]
	if !ok {
		set = make(map[txsync.DetectedContract]struct{})
		s.detected[chainID] = set
	}
	for _, contract := range contracts {
		set[contract] = struct{}{}
	}
	return nil
}

func (s *Storage) ListDetectedContracts(ctx context.Context, chainID string) ([]txsync.DetectedContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []txsync.DetectedContract
	for contract := range s.detected[chainID] {
		out = append(out, contract)
	}
	return out, nil
}
