// Package jsonrpc implements a generic JSON-RPC 2.0 client over HTTP.
// It is suitable for any JSON-RPC-compatible service; in this project it
// talks to blockchain node endpoints for queries the block explorers do
// not answer (e.g., gas price lookups).
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrProviderReturnedError indicates that the remote JSON-RPC server
// returned an error response.
var ErrProviderReturnedError = errors.New("provider error")

// response represents a standard JSON-RPC 2.0 response.
type response struct {
	JsonRPC string `json:"jsonrpc"` // protocol version (usually "2.0")
	Error   *struct {
		Code    int    `json:"code"`    // error code from the JSON-RPC spec or server logic
		Message string `json:"message"` // human-readable error message
	} `json:"error"`
	Result json.RawMessage `json:"result"` // raw result payload returned by the server
}

// Err returns an error if the response includes a JSON-RPC error object,
// wrapping ErrProviderReturnedError with the server's code and message.
func (r response) Err() error {
	if r.Error == nil {
		return nil
	}

	return fmt.Errorf("%w: [%d] - %s", ErrProviderReturnedError, r.Error.Code, r.Error.Message)
}

// Client defines the interface for a generic JSON-RPC client. It abstracts
// the underlying implementation to facilitate mocking in tests.
type Client interface {
	// Fetch sends a JSON-RPC request with the given method name and
	// parameters, returning the raw JSON result or an error.
	Fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// client is the default Client implementation. It posts JSON-RPC requests
// to the configured provider endpoint using the given HTTP client.
type client struct {
	providerEndpoint string       // URL of the remote JSON-RPC server
	httpClient       *http.Client // HTTP client used to perform requests
}

// Compile-time assertion that client implements the Client interface.
var _ Client = (*client)(nil)

// Fetch sends a JSON-RPC request to the remote server. The request id is a
// freshly generated UUID string.
func (c *client) Fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      uuid.NewString(),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.providerEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var data response
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, err
	}

	return data.Result, data.Err()
}

// NewClient constructs a Client that sends JSON-RPC requests to the
// specified provider endpoint using the given HTTP client.
func NewClient(httpClient *http.Client, providerEndpoint string) *client {
	return &client{
		providerEndpoint: providerEndpoint,
		httpClient:       httpClient,
	}
}
