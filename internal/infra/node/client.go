// Package node provides a JSON-RPC gas-price source backed by a chain's
// own RPC endpoint. It covers chains whose block explorer has no gas
// endpoint, so fee estimates stay available regardless of provider
// capabilities.
package node

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gabapcia/walletsync/internal/explorer"
	"github.com/gabapcia/walletsync/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/walletsync/internal/pkg/types"
	"github.com/gabapcia/walletsync/internal/txsync"
)

// client fetches fee data from an Ethereum-compatible node.
type client struct {
	conn jsonrpc.Client // JSON-RPC client bound to the chain's RPC endpoint
}

// Compile-time assertion that client implements txsync.FeeSource.
var _ txsync.FeeSource = (*client)(nil)

// NewClient creates a gas-price source over the given JSON-RPC connection.
func NewClient(conn jsonrpc.Client) *client {
	return &client{
		conn: conn,
	}
}

// GasPrice queries eth_gasPrice and reports the single node estimate as
// the proposed price, in wei.
func (c *client) GasPrice(ctx context.Context) (explorer.GasPrice, error) {
	result, err := c.conn.Fetch(ctx, "eth_gasPrice")
	if err != nil {
		return explorer.GasPrice{}, err
	}

	var quantity types.Hex
	if err := json.Unmarshal(result, &quantity); err != nil {
		return explorer.GasPrice{}, explorer.NewDecodeError(result, err)
	}

	wei := strconv.FormatUint(quantity.Uint64(), 10)
	return explorer.GasPrice{Propose: wei}, nil
}
