// Package txstore is the deduplicating, change-notifying transaction
// store. Every synced or optimistically sent transaction lands here;
// rows are unique per (chain, hash), repeated adds merge instead of
// duplicating, and subscribers observe the store's changes as an ordered
// event stream starting with a full snapshot.
package txstore

import (
	"context"
	"reflect"
	"sync"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/types"
	"github.com/gabapcia/walletsync/internal/pkg/x/chflow"
	"github.com/gabapcia/walletsync/internal/txsync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the per-subscriber event buffer. A subscriber
// that falls this many events behind starts losing them.
const subscriberBufferSize = 64

// Storage is the persistence port the store service drives. The Redis
// adapter implements it for durable storage; the in-memory adapter is the
// default and the test double.
type Storage interface {
	// GetTransaction returns the stored row for the given key, with ok
	// reporting whether it exists. Absence is not an error.
	GetTransaction(ctx context.Context, key txsync.Key) (txsync.Transaction, bool, error)

	// SaveTransactions writes the given rows, overwriting any existing row
	// with the same key.
	SaveTransactions(ctx context.Context, txs []txsync.Transaction) error

	// DeleteTransactions removes the rows with the given keys. Keys with
	// no row are ignored.
	DeleteTransactions(ctx context.Context, keys []txsync.Key) error

	// ListTransactions returns every stored row for the given chains, or
	// all rows when no chain is given.
	ListTransactions(ctx context.Context, chainIDs ...string) ([]txsync.Transaction, error)
}

// Service is the transaction store API. Add satisfies the sync core's
// persistence port, so per-chain providers write here directly.
type Service interface {
	// Add upserts the given transactions. A transaction whose (chain,
	// hash) already exists is merged into the stored row instead of
	// overwriting it. Subscribers are notified of inserts and effective
	// updates; an add that changes nothing emits no event.
	Add(ctx context.Context, txs []txsync.Transaction) error

	// Transaction returns the stored row for the given chain and hash,
	// with ok reporting whether it exists. Absence is not an error.
	Transaction(ctx context.Context, chainID, hash string) (txsync.Transaction, bool, error)

	// List returns every stored row for the given chains, or all rows when
	// no chain is given.
	List(ctx context.Context, chainIDs ...string) ([]txsync.Transaction, error)

	// Delete removes the rows with the given keys and notifies
	// subscribers.
	Delete(ctx context.Context, keys []txsync.Key) error

	// Changeset subscribes to the store's change stream, optionally
	// filtered to the given chains. The first event is always an Initial
	// snapshot consistent with the stream that follows.
	Changeset(ctx context.Context, chainIDs ...string) (Subscription, error)

	// Unsubscribe releases the subscription with the given id and closes
	// its event channel.
	Unsubscribe(id string)

	// Close releases every subscription. The store remains usable for
	// reads and writes afterwards.
	Close()
}

type subscriber struct {
	id     string
	chains types.Set[string] // empty means every chain
	ch     chan Event
}

// filter narrows an event to the subscriber's chains. ok is false when
// nothing in the event concerns this subscriber.
func (s *subscriber) filter(event Event) (Event, bool) {
	if s.chains.Len() == 0 {
		return event, true
	}

	filtered := Event{Kind: event.Kind}
	for _, tx := range event.Transactions {
		if s.chains.Contains(tx.ChainID) {
			filtered.Transactions = append(filtered.Transactions, tx)
		}
	}
	for _, key := range event.Deleted {
		if s.chains.Contains(key.ChainID) {
			filtered.Deleted = append(filtered.Deleted, key)
		}
	}

	return filtered, len(filtered.Transactions) > 0 || len(filtered.Deleted) > 0
}

type service struct {
	// mu serializes all mutations: a single writer at a time keeps the
	// read-merge-write upsert atomic and the event stream ordered.
	mu      sync.Mutex
	storage Storage

	subMu sync.RWMutex
	subs  map[string]*subscriber
}

var (
	_ Service      = (*service)(nil)
	_ txsync.Store = (*service)(nil)
)

// New creates the transaction store service on top of the given storage.
func New(storage Storage) *service {
	return &service{
		storage: storage,
		subs:    make(map[string]*subscriber),
	}
}

// mergeBatch collapses duplicate keys within one batch, preserving
// first-seen order. The same transaction can legitimately appear twice in
// a cycle's output, once from the normal fetch and once via backfill.
func mergeBatch(txs []txsync.Transaction) []txsync.Transaction {
	index := make(map[txsync.Key]int, len(txs))
	out := make([]txsync.Transaction, 0, len(txs))
	for _, tx := range txs {
		if i, ok := index[tx.Key()]; ok {
			out[i] = out[i].Merge(tx)
			continue
		}
		index[tx.Key()] = len(out)
		out = append(out, tx)
	}
	return out
}

func (s *service) Add(ctx context.Context, txs []txsync.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		rows     = make([]txsync.Transaction, 0, len(txs))
		inserted []txsync.Transaction
		updated  []txsync.Transaction
	)

	for _, tx := range mergeBatch(txs) {
		existing, ok, err := s.storage.GetTransaction(ctx, tx.Key())
		if err != nil {
			return err
		}

		if !ok {
			rows = append(rows, tx)
			inserted = append(inserted, tx)
			continue
		}

		merged := existing.Merge(tx)
		if reflect.DeepEqual(existing, merged) {
			continue // nothing changed: no write, no event
		}
		rows = append(rows, merged)
		updated = append(updated, merged)
	}

	if len(rows) == 0 {
		return nil
	}
	if err := s.storage.SaveTransactions(ctx, rows); err != nil {
		return err
	}

	s.notify(ctx, Event{Kind: EventInserted, Transactions: inserted})
	s.notify(ctx, Event{Kind: EventUpdated, Transactions: updated})
	return nil
}

func (s *service) Transaction(ctx context.Context, chainID, hash string) (txsync.Transaction, bool, error) {
	return s.storage.GetTransaction(ctx, txsync.Key{ChainID: chainID, Hash: hash})
}

func (s *service) List(ctx context.Context, chainIDs ...string) ([]txsync.Transaction, error) {
	return s.storage.ListTransactions(ctx, chainIDs...)
}

func (s *service) Delete(ctx context.Context, keys []txsync.Key) error {
	if len(keys) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.DeleteTransactions(ctx, keys); err != nil {
		return err
	}

	s.notify(ctx, Event{Kind: EventDeleted, Deleted: keys})
	return nil
}

func (s *service) Changeset(ctx context.Context, chainIDs ...string) (Subscription, error) {
	// Snapshot under the writer lock so the Initial event plus the stream
	// that follows reconstructs the store exactly, with no gap and no
	// duplicate in between.
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.storage.ListTransactions(ctx, chainIDs...)
	if err != nil {
		return Subscription{}, err
	}

	sub := &subscriber{
		id:     uuid.NewString(),
		chains: types.NewSet(chainIDs...),
		ch:     make(chan Event, subscriberBufferSize),
	}
	sub.ch <- Event{Kind: EventInitial, Transactions: rows}

	s.subMu.Lock()
	s.subs[sub.id] = sub
	s.subMu.Unlock()

	return Subscription{ID: sub.id, C: sub.ch}, nil
}

func (s *service) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if sub, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(sub.ch)
	}
}

func (s *service) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, sub := range s.subs {
		delete(s.subs, id)
		close(sub.ch)
	}
}

// notify fans an event out to every matching subscriber. Delivery is
// best-effort: a subscriber whose buffer is full loses the event rather
// than stalling the writer.
func (s *service) notify(ctx context.Context, event Event) {
	if len(event.Transactions) == 0 && len(event.Deleted) == 0 {
		return
	}

	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, sub := range s.subs {
		filtered, ok := sub.filter(event)
		if !ok {
			continue
		}

		if !chflow.TrySend(sub.ch, filtered) {
			logger.Warn(ctx, "changeset subscriber buffer full, event dropped",
				"subscription", sub.id,
				"kind", event.Kind,
			)
		}
	}
}
