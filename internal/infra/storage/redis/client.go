// Package redis provides the durable persistence adapter: transaction
// rows and pagination cursors survive process restarts, so a wallet does
// not re-sync from block zero every launch.
package redis

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

// client wraps a go-redis connection and implements the transaction
// storage and cursor storage ports on top of it.
type client struct {
	conn *redis.Client
}

// Close releases the underlying Redis connection.
func (c *client) Close() error {
	return c.conn.Close()
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, addr, username, password string, db int) (*client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &client{
		conn: conn,
	}, nil
}
