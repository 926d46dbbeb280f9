package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/walletsync/internal/txsync"

	"github.com/redis/go-redis/v9"
)

// cursorKey builds the key holding one endpoint's pagination cursor:
//
//	"walletsync:cursor:<chain>:<endpoint>"
func cursorKey(chainID string, endpoint txsync.Endpoint) string {
	return fmt.Sprintf("%s:cursor:%s:%s", txKeyPrefix, chainID, endpoint)
}

// cursorData is the wire shape of one stored cursor.
type cursorData struct {
	StartBlock uint64 `json:"start_block"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

// SaveCursor persists the cursor for the given chain and endpoint,
// overwriting any previous value. Cursors have no expiration: they are
// the wallet's sync position and must survive restarts.
func (c *client) SaveCursor(ctx context.Context, chainID string, endpoint txsync.Endpoint, cursor txsync.Cursor) error {
	payload, err := json.Marshal(cursorData{
		StartBlock: cursor.StartBlock,
		Page:       cursor.Page,
		PageSize:   cursor.PageSize,
	})
	if err != nil {
		return err
	}

	return c.conn.Set(ctx, cursorKey(chainID, endpoint), payload, 0).Err()
}

// LoadCursor retrieves the last saved cursor for the given chain and
// endpoint, or txsync.ErrNoCursorFound when none exists yet.
func (c *client) LoadCursor(ctx context.Context, chainID string, endpoint txsync.Endpoint) (txsync.Cursor, error) {
	val, err := c.conn.Get(ctx, cursorKey(chainID, endpoint)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = txsync.ErrNoCursorFound
		}
		return txsync.Cursor{}, err
	}

	var data cursorData
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return txsync.Cursor{}, err
	}

	return txsync.Cursor{
		StartBlock: data.StartBlock,
		Page:       data.Page,
		PageSize:   data.PageSize,
	}, nil
}

// Compile-time assertion that the client implements the cursor storage
// port.
var _ txsync.CursorStorage = new(client)
