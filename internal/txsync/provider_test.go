package txsync

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gabapcia/walletsync/internal/explorer"
	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/workerpool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithLevel("error")) // Use error level to reduce test output
	os.Exit(m.Run())
}

// fakeExplorer is a function-backed explorer.Client for provider tests.
type fakeExplorer struct {
	provider   explorer.Provider
	normalFn   func(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error)
	transferFn func(ctx context.Context, wallet string, startBlock uint64, kind explorer.TokenKind) ([]explorer.RawTransaction, error)
	gasFn      func(ctx context.Context) (explorer.GasPrice, error)
}

func (f *fakeExplorer) Provider() explorer.Provider {
	if f.provider == "" {
		return explorer.ProviderEtherscan
	}
	return f.provider
}

func (f *fakeExplorer) NormalTransactions(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error) {
	if f.normalFn == nil {
		return nil, explorer.ErrNotFound
	}
	return f.normalFn(ctx, wallet, startBlock, endBlock, sort)
}

func (f *fakeExplorer) TokenTransfers(ctx context.Context, wallet string, startBlock uint64, kind explorer.TokenKind) ([]explorer.RawTransaction, error) {
	if f.transferFn == nil {
		return nil, explorer.ErrNotFound
	}
	return f.transferFn(ctx, wallet, startBlock, kind)
}

func (f *fakeExplorer) Paged(ctx context.Context, wallet string, page explorer.Pagination) ([]explorer.RawTransaction, explorer.Pagination, error) {
	return nil, page, explorer.ErrUnsupported
}

func (f *fakeExplorer) GasPrice(ctx context.Context) (explorer.GasPrice, error) {
	if f.gasFn == nil {
		return explorer.GasPrice{}, explorer.ErrUnsupported
	}
	return f.gasFn(ctx)
}

// fakeStore records every Add batch it receives.
type fakeStore struct {
	mu      sync.Mutex
	batches [][]Transaction
	err     error
}

func (s *fakeStore) Add(ctx context.Context, txs []Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, txs)
	return nil
}

func (s *fakeStore) all() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Transaction
	for _, batch := range s.batches {
		out = append(out, batch...)
	}
	return out
}

// fakeTokens answers token lookups from a fixed map and signals contract
// detection deliveries on a channel.
type fakeTokens struct {
	tokens   map[string]Token
	detected chan []DetectedContract
}

func (f *fakeTokens) Token(ctx context.Context, contractAddress, chainID string) (Token, bool, error) {
	token, ok := f.tokens[contractAddress]
	return token, ok, nil
}

func (f *fakeTokens) AddDetectedContracts(ctx context.Context, chainID string, contracts []DetectedContract) error {
	if f.detected != nil {
		f.detected <- contracts
	}
	return nil
}

// memCursors is an in-memory CursorStorage.
type memCursors struct {
	mu   sync.Mutex
	data map[string]Cursor
}

func newMemCursors() *memCursors {
	return &memCursors{data: make(map[string]Cursor)}
}

func (m *memCursors) key(chainID string, endpoint Endpoint) string {
	return chainID + "/" + string(endpoint)
}

func (m *memCursors) SaveCursor(ctx context.Context, chainID string, endpoint Endpoint, cursor Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[m.key(chainID, endpoint)] = cursor
	return nil
}

func (m *memCursors) LoadCursor(ctx context.Context, chainID string, endpoint Endpoint) (Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cursor, ok := m.data[m.key(chainID, endpoint)]
	if !ok {
		return Cursor{}, ErrNoCursorFound
	}
	return cursor, nil
}

func testSession(t *testing.T) Session {
	t.Helper()

	session, err := NewSession("ethereum", "0xwallet", "")
	require.NoError(t, err)
	return session
}

func TestProviderFetch(t *testing.T) {
	t.Run("successful cycle persists transactions and advances the cursor", func(t *testing.T) {
		client := &fakeExplorer{
			normalFn: func(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error) {
				return []explorer.RawTransaction{
					{Hash: "0xaaa", BlockNumber: 10, To: "0xbob", Value: "100"},
					{Hash: "0xbbb", BlockNumber: 12, To: "0xbob", Value: "200"},
				}, nil
			},
		}
		store := &fakeStore{}
		cursors := newMemCursors()
		p := NewProvider(testSession(t), client, store, &fakeTokens{}, workerpool.New(3), WithCursorStorage(cursors))

		p.Fetch(context.Background())

		assert.Equal(t, StateIdle, p.State())
		require.NotEmpty(t, store.all())

		cursor, err := cursors.LoadCursor(context.Background(), "ethereum", EndpointNormal)
		require.NoError(t, err)
		assert.Equal(t, uint64(13), cursor.StartBlock, "cursor advances past the highest block seen")
	})

	t.Run("failed cycle leaves the cursor untouched and backs off", func(t *testing.T) {
		client := &fakeExplorer{
			normalFn: func(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error) {
				return nil, explorer.NewRequestError(500)
			},
		}
		store := &fakeStore{}
		cursors := newMemCursors()
		p := NewProvider(testSession(t), client, store, &fakeTokens{}, workerpool.New(3), WithCursorStorage(cursors))

		p.Fetch(context.Background())

		assert.Equal(t, StateBackingOff, p.State())
		assert.Empty(t, store.all())

		_, err := cursors.LoadCursor(context.Background(), "ethereum", EndpointNormal)
		assert.ErrorIs(t, err, ErrNoCursorFound)
	})

	t.Run("http 404 means zero results, not a failure", func(t *testing.T) {
		client := &fakeExplorer{
			normalFn: func(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error) {
				return nil, explorer.ErrNotFound
			},
		}
		store := &fakeStore{}
		cursors := newMemCursors()
		p := NewProvider(testSession(t), client, store, &fakeTokens{}, workerpool.New(3), WithCursorStorage(cursors))

		p.Fetch(context.Background())

		assert.Equal(t, StateIdle, p.State())
		assert.Empty(t, store.all())

		_, err := cursors.LoadCursor(context.Background(), "ethereum", EndpointNormal)
		assert.ErrorIs(t, err, ErrNoCursorFound, "empty result does not advance the cursor")
	})

	t.Run("unsupported transfer endpoints degrade to clean empty results", func(t *testing.T) {
		client := &fakeExplorer{
			transferFn: func(ctx context.Context, wallet string, startBlock uint64, kind explorer.TokenKind) ([]explorer.RawTransaction, error) {
				return nil, explorer.ErrUnsupported
			},
		}
		p := NewProvider(testSession(t), client, &fakeStore{}, &fakeTokens{}, workerpool.New(3))

		p.Fetch(context.Background())

		assert.Equal(t, StateIdle, p.State())
	})

	t.Run("transfer cycle backfills the block range and merges", func(t *testing.T) {
		client := &fakeExplorer{
			normalFn: func(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error) {
				// The normal-transaction sync has its own fetch with
				// endBlock zero; only the backfill passes a bounded range.
				if endBlock == 0 {
					return nil, explorer.ErrNotFound
				}
				assert.Equal(t, uint64(100), startBlock)
				assert.Equal(t, uint64(110), endBlock)
				return []explorer.RawTransaction{
					{Hash: "0x100", BlockNumber: 100},
					{Hash: "0x105", BlockNumber: 105},
					{Hash: "0x110", BlockNumber: 110},
					{Hash: "0x107", BlockNumber: 107},
				}, nil
			},
			transferFn: func(ctx context.Context, wallet string, startBlock uint64, kind explorer.TokenKind) ([]explorer.RawTransaction, error) {
				if kind != explorer.TokenKindERC20 {
					return nil, explorer.ErrNotFound
				}
				return []explorer.RawTransaction{
					{Hash: "0x100", BlockNumber: 100, ContractAddress: "0xToken", TokenKind: explorer.TokenKindERC20, Value: "1", LogIndex: 0},
					{Hash: "0x105", BlockNumber: 105, ContractAddress: "0xToken", TokenKind: explorer.TokenKindERC20, Value: "2", LogIndex: 1},
					{Hash: "0x110", BlockNumber: 110, ContractAddress: "0xToken", TokenKind: explorer.TokenKindERC20, Value: "3", LogIndex: 2},
				}, nil
			},
		}
		store := &fakeStore{}
		cursors := newMemCursors()
		p := NewProvider(testSession(t), client, store, &fakeTokens{}, workerpool.New(3), WithCursorStorage(cursors))

		p.Fetch(context.Background())

		require.Equal(t, StateIdle, p.State())

		byHash := make(map[string]Transaction)
		for _, tx := range store.all() {
			byHash[tx.Hash] = tx
		}
		assert.Len(t, byHash["0x100"].Operations, 1)
		assert.Len(t, byHash["0x105"].Operations, 1)
		assert.Len(t, byHash["0x110"].Operations, 1)
		assert.Empty(t, byHash["0x107"].Operations)

		cursor, err := cursors.LoadCursor(context.Background(), "ethereum", EndpointERC20)
		require.NoError(t, err)
		assert.Equal(t, uint64(111), cursor.StartBlock)
	})

	t.Run("persistence failure fails the cycle without advancing cursors", func(t *testing.T) {
		client := &fakeExplorer{
			normalFn: func(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error) {
				return []explorer.RawTransaction{{Hash: "0xaaa", BlockNumber: 10}}, nil
			},
		}
		store := &fakeStore{err: errors.New("storage unavailable")}
		cursors := newMemCursors()
		p := NewProvider(testSession(t), client, store, &fakeTokens{}, workerpool.New(3), WithCursorStorage(cursors))

		p.Fetch(context.Background())

		assert.Equal(t, StateBackingOff, p.State())

		_, err := cursors.LoadCursor(context.Background(), "ethereum", EndpointNormal)
		assert.ErrorIs(t, err, ErrNoCursorFound)
	})

	t.Run("contract detection is delivered asynchronously", func(t *testing.T) {
		client := &fakeExplorer{
			transferFn: func(ctx context.Context, wallet string, startBlock uint64, kind explorer.TokenKind) ([]explorer.RawTransaction, error) {
				if kind != explorer.TokenKindERC20 {
					return nil, explorer.ErrNotFound
				}
				return []explorer.RawTransaction{
					{Hash: "0x100", BlockNumber: 100, ContractAddress: "0xToken", TokenKind: explorer.TokenKindERC20, Value: "1"},
				}, nil
			},
		}
		tokens := &fakeTokens{detected: make(chan []DetectedContract, 1)}
		p := NewProvider(testSession(t), client, &fakeStore{}, tokens, workerpool.New(3))

		p.Fetch(context.Background())

		select {
		case contracts := <-tokens.detected:
			require.Len(t, contracts, 1)
			assert.Equal(t, "0xtoken", contracts[0].Address)
			assert.Equal(t, explorer.TokenKindERC20, contracts[0].Kind)
		case <-time.After(2 * time.Second):
			t.Fatal("expected contract detection delivery")
		}
	})
}

func TestProviderLifecycle(t *testing.T) {
	newCountingClient := func(calls *atomic.Int64) *fakeExplorer {
		return &fakeExplorer{
			normalFn: func(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error) {
				calls.Add(1)
				return nil, explorer.ErrNotFound
			},
			transferFn: func(ctx context.Context, wallet string, startBlock uint64, kind explorer.TokenKind) ([]explorer.RawTransaction, error) {
				return nil, explorer.ErrNotFound
			},
		}
	}

	t.Run("start runs an immediate cycle and rejects a second start", func(t *testing.T) {
		var calls atomic.Int64
		p := NewProvider(testSession(t), newCountingClient(&calls), &fakeStore{}, &fakeTokens{}, workerpool.New(3), WithFetchInterval(time.Hour))
		defer p.Stop()

		require.NoError(t, p.Start(context.Background()))

		assert.Eventually(t, func() bool {
			return calls.Load() >= 1
		}, 2*time.Second, 10*time.Millisecond)

		assert.ErrorIs(t, p.Start(context.Background()), ErrProviderAlreadyStarted)
	})

	t.Run("stop timers suspends scheduling, run scheduled timers resumes", func(t *testing.T) {
		var calls atomic.Int64
		p := NewProvider(testSession(t), newCountingClient(&calls), &fakeStore{}, &fakeTokens{}, workerpool.New(3), WithFetchInterval(20*time.Millisecond))
		defer p.Stop()

		require.NoError(t, p.Start(context.Background()))

		require.Eventually(t, func() bool {
			return calls.Load() >= 2
		}, 2*time.Second, 10*time.Millisecond)

		p.StopTimers()
		time.Sleep(50 * time.Millisecond) // let any in-flight cycle drain
		suspended := calls.Load()
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, suspended, calls.Load(), "no cycles while timers are stopped")

		p.RunScheduledTimers()
		assert.Eventually(t, func() bool {
			return calls.Load() > suspended
		}, 2*time.Second, 10*time.Millisecond, "scheduling resumes from where it left off")
	})

	t.Run("run scheduled timers is a no-op on a stopped provider", func(t *testing.T) {
		var calls atomic.Int64
		p := NewProvider(testSession(t), newCountingClient(&calls), &fakeStore{}, &fakeTokens{}, workerpool.New(3), WithFetchInterval(20*time.Millisecond))

		p.RunScheduledTimers()

		time.Sleep(60 * time.Millisecond)
		assert.Zero(t, calls.Load())
	})

	t.Run("stop halts everything and allows a restart", func(t *testing.T) {
		var calls atomic.Int64
		p := NewProvider(testSession(t), newCountingClient(&calls), &fakeStore{}, &fakeTokens{}, workerpool.New(3), WithFetchInterval(time.Hour))

		require.NoError(t, p.Start(context.Background()))
		p.Stop()

		stopped := calls.Load()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, stopped, calls.Load())

		require.NoError(t, p.Start(context.Background()))
		p.Stop()
	})
}

func TestProviderGasPrice(t *testing.T) {
	t.Run("uses the explorer when it has a gas endpoint", func(t *testing.T) {
		client := &fakeExplorer{
			gasFn: func(ctx context.Context) (explorer.GasPrice, error) {
				return explorer.GasPrice{Safe: "10", Propose: "12", Fast: "15"}, nil
			},
		}
		p := NewProvider(testSession(t), client, &fakeStore{}, &fakeTokens{}, workerpool.New(3))

		price, err := p.GasPrice(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "12", price.Propose)
	})

	t.Run("falls back to the fee source when the explorer has no gas endpoint", func(t *testing.T) {
		fallback := feeSourceFunc(func(ctx context.Context) (explorer.GasPrice, error) {
			return explorer.GasPrice{Propose: "9"}, nil
		})
		p := NewProvider(testSession(t), &fakeExplorer{}, &fakeStore{}, &fakeTokens{}, workerpool.New(3), WithFeeSource(fallback))

		price, err := p.GasPrice(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "9", price.Propose)
	})

	t.Run("surfaces unsupported when no fallback is configured", func(t *testing.T) {
		p := NewProvider(testSession(t), &fakeExplorer{}, &fakeStore{}, &fakeTokens{}, workerpool.New(3))

		_, err := p.GasPrice(context.Background())

		assert.ErrorIs(t, err, explorer.ErrUnsupported)
	})
}

// feeSourceFunc adapts a function into a FeeSource.
type feeSourceFunc func(ctx context.Context) (explorer.GasPrice, error)

func (f feeSourceFunc) GasPrice(ctx context.Context) (explorer.GasPrice, error) {
	return f(ctx)
}
