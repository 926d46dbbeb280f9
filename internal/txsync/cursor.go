package txsync

import (
	"context"
	"errors"

	"github.com/gabapcia/walletsync/internal/explorer"
)

// ErrNoCursorFound is returned by LoadCursor when no cursor has been
// persisted yet for the requested (chain, endpoint) pair.
var ErrNoCursorFound = errors.New("no cursor found for endpoint")

// Endpoint names one fetchable explorer endpoint for cursor tracking.
type Endpoint string

const (
	EndpointNormal  Endpoint = "normal"
	EndpointERC20   Endpoint = "erc20"
	EndpointERC721  Endpoint = "erc721"
	EndpointERC1155 Endpoint = "erc1155"
)

// endpointForKind maps a token kind onto its cursor endpoint.
func endpointForKind(kind explorer.TokenKind) Endpoint {
	return Endpoint(kind)
}

// Cursor is the per-(chain, endpoint) pagination state. It is mutated
// only by the owning provider: advanced after a successful cycle, left
// untouched on failure so the next tick retries the same range.
type Cursor struct {
	StartBlock uint64 // next block of interest
	Page       int    // 1-based page number for paged endpoints
	PageSize   int    // fetch limit per request
}

// CursorStorage persists pagination cursors across restarts.
type CursorStorage interface {
	// SaveCursor records the cursor for the given chain and endpoint,
	// overwriting any previous value.
	SaveCursor(ctx context.Context, chainID string, endpoint Endpoint, cursor Cursor) error

	// LoadCursor returns the last saved cursor for the given chain and
	// endpoint, or ErrNoCursorFound when none exists.
	LoadCursor(ctx context.Context, chainID string, endpoint Endpoint) (Cursor, error)
}

// nopCursorStorage is the default cursor storage: nothing is persisted,
// and every load starts from scratch. Cursor persistence is recommended
// but optional.
type nopCursorStorage struct{}

var _ CursorStorage = nopCursorStorage{}

func (nopCursorStorage) SaveCursor(ctx context.Context, chainID string, endpoint Endpoint, cursor Cursor) error {
	return nil
}

func (nopCursorStorage) LoadCursor(ctx context.Context, chainID string, endpoint Endpoint) (Cursor, error) {
	return Cursor{}, ErrNoCursorFound
}
