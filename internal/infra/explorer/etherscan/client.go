// Package etherscan implements the explorer.Client contract for
// Etherscan-compatible block explorer APIs. Requests are plain GETs with
// module/action query parameters; the API key, when configured, is
// injected as the apikey parameter.
package etherscan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gabapcia/walletsync/internal/explorer"

	"github.com/hashicorp/go-retryablehttp"
)

// noTransactionsFound is the result message Etherscan pairs with status
// "0" when a query matched nothing. It means an empty page, not an error.
const noTransactionsFound = "No transactions found"

// transferActions maps each token kind to its Etherscan account action.
var transferActions = map[explorer.TokenKind]string{
	explorer.TokenKindERC20:   "tokentx",
	explorer.TokenKindERC721:  "tokennfttx",
	explorer.TokenKindERC1155: "token1155tx",
}

// client talks to one Etherscan-compatible API host.
type client struct {
	httpClient *retryablehttp.Client // shared retrying HTTP transport
	baseURL    string                // e.g. "https://api.etherscan.io/api"
	apiKey     string                // optional; empty disables key injection
}

// Compile-time assertion that client implements explorer.Client.
var _ explorer.Client = (*client)(nil)

// NewClient creates an Etherscan adapter for the given API host. apiKey
// may be empty for keyless (rate-limited) access.
func NewClient(httpClient *retryablehttp.Client, baseURL, apiKey string) *client {
	return &client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Provider identifies this adapter's protocol family.
func (c *client) Provider() explorer.Provider {
	return explorer.ProviderEtherscan
}

// get performs the HTTP request and maps the status code onto the typed
// error taxonomy: 404 means "no results", any other non-2xx status is a
// RequestError.
func (c *client) get(ctx context.Context, params url.Values) ([]byte, error) {
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, explorer.ErrNotFound
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, explorer.NewRequestError(res.StatusCode)
	}

	return io.ReadAll(res.Body)
}

// listTransactions runs one account-module query and decodes the standard
// Etherscan envelope into raw transactions.
func (c *client) listTransactions(ctx context.Context, action, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder, page, pageSize int) ([]explorer.RawTransaction, error) {
	params := url.Values{
		"module":     {"account"},
		"action":     {action},
		"address":    {wallet},
		"startblock": {strconv.FormatUint(startBlock, 10)},
		"sort":       {string(sort)},
	}
	if endBlock > 0 {
		params.Set("endblock", strconv.FormatUint(endBlock, 10))
	}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
		params.Set("offset", strconv.Itoa(pageSize))
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	return decodeTransactionList(body)
}

// NormalTransactions fetches full transactions for the wallet via the
// txlist action.
func (c *client) NormalTransactions(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error) {
	return c.listTransactions(ctx, "txlist", wallet, startBlock, endBlock, sort, 0, 0)
}

// TokenTransfers fetches transfer events of the given kind via the
// matching token action. Unknown kinds yield ErrUnsupported.
func (c *client) TokenTransfers(ctx context.Context, wallet string, startBlock uint64, kind explorer.TokenKind) ([]explorer.RawTransaction, error) {
	action, ok := transferActions[kind]
	if !ok {
		return nil, fmt.Errorf("%w: token kind %q", explorer.ErrUnsupported, kind)
	}

	txs, err := c.listTransactions(ctx, action, wallet, startBlock, 0, explorer.SortAscending, 0, 0)
	if err != nil {
		return nil, err
	}

	for i := range txs {
		txs[i].TokenKind = kind
	}
	return txs, nil
}

// Paged fetches one page of the wallet's transactions. The returned cursor
// advances to the next page only when the current page came back full.
func (c *client) Paged(ctx context.Context, wallet string, page explorer.Pagination) ([]explorer.RawTransaction, explorer.Pagination, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 {
		page.PageSize = 100
	}

	txs, err := c.listTransactions(ctx, "txlist", wallet, page.StartBlock, 0, explorer.SortAscending, page.Page, page.PageSize)
	if err != nil {
		return nil, page, err
	}

	next := page
	if len(txs) == page.PageSize {
		next.Page++
	}
	return txs, next, nil
}

// GasPrice fetches the gastracker oracle estimate.
func (c *client) GasPrice(ctx context.Context) (explorer.GasPrice, error) {
	params := url.Values{
		"module": {"gastracker"},
		"action": {"gasoracle"},
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return explorer.GasPrice{}, err
	}

	return decodeGasOracle(body)
}
