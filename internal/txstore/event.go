package txstore

import "github.com/gabapcia/walletsync/internal/txsync"

// EventKind names the type of store change an Event describes.
type EventKind string

const (
	// EventInitial is always the first event a subscriber receives: the
	// full snapshot of rows matching its chain filter at subscribe time.
	EventInitial EventKind = "initial"

	// EventInserted reports transactions seen for the first time.
	EventInserted EventKind = "inserted"

	// EventUpdated reports transactions whose stored row changed, e.g. a
	// pending transaction that was confirmed or gained new operations.
	EventUpdated EventKind = "updated"

	// EventDeleted reports transactions removed from the store. Only the
	// keys are carried; the rows no longer exist.
	EventDeleted EventKind = "deleted"
)

// Event is one store change notification. Transactions is populated for
// Initial, Inserted and Updated events; Deleted carries keys only.
type Event struct {
	Kind         EventKind
	Transactions []txsync.Transaction
	Deleted      []txsync.Key
}

// Subscription identifies one changeset listener. C delivers events in
// the order the store applied them; a subscriber that stops draining C
// starts losing events once its buffer fills. Call Unsubscribe on the
// service with ID to release it.
type Subscription struct {
	ID string
	C  <-chan Event
}
