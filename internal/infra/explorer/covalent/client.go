// Package covalent implements the explorer.Client contract for
// Covalent-style APIs: path-segment routing per chain and wallet, bearer
// token authentication, and an items envelope with an explicit error flag.
package covalent

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

// transferKinds maps supported token kinds to the token-kind query value.
// There is no ERC-1155 transfer endpoint in this protocol family.
var transferKinds = map[explorer.TokenKind]string{
	explorer.TokenKindERC20:  "erc20",
	explorer.TokenKindERC721: "erc721",
}

// client talks to one Covalent-style API host for a single chain.
type client struct {
	httpClient *retryablehttp.Client // shared retrying HTTP transport
	baseURL    string                // e.g. "https://api.covalenthq.com"
	chainName  string                // path segment identifying the chain
	apiKey     string                // bearer token; empty disables the header
}

// Compile-time assertion that client implements explorer.Client.
var _ explorer.Client = (*client)(nil)

// NewClient creates a Covalent-style adapter bound to one chain.
func NewClient(httpClient *retryablehttp.Client, baseURL, chainName, apiKey string) *client {
	return &client{
		httpClient: httpClient,
		baseURL:    baseURL,
		chainName:  chainName,
		apiKey:     apiKey,
	}
}

// Provider identifies this adapter's protocol family.
func (c *client) Provider() explorer.Provider {
	return explorer.ProviderCovalent
}

// get performs the HTTP request and maps the status code onto the typed
// error taxonomy.
func (c *client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
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

// walletPath builds the per-wallet resource path for the given endpoint.
func (c *client) walletPath(wallet, endpoint string) string {
	return fmt.Sprintf("/v1/%s/address/%s/%s/", c.chainName, wallet, endpoint)
}

// NormalTransactions fetches full transactions via the transactions_v2
// resource.
func (c *client) NormalTransactions(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error) {
	params := url.Values{
		"starting-block":      {strconv.FormatUint(startBlock, 10)},
		"block-signed-at-asc": {strconv.FormatBool(sort == explorer.SortAscending)},
	}
	if endBlock > 0 {
		params.Set("ending-block", strconv.FormatUint(endBlock, 10))
	}

	body, err := c.get(ctx, c.walletPath(wallet, "transactions_v2"), params)
	if err != nil {
		return nil, err
	}

	items, _, err := decodeItems(body)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// TokenTransfers fetches transfer events via the transfers_v2 resource.
// ERC-1155 has no endpoint in this protocol family and yields
// ErrUnsupported.
func (c *client) TokenTransfers(ctx context.Context, wallet string, startBlock uint64, kind explorer.TokenKind) ([]explorer.RawTransaction, error) {
	kindParam, ok := transferKinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: token kind %q", explorer.ErrUnsupported, kind)
	}

	params := url.Values{
		"starting-block": {strconv.FormatUint(startBlock, 10)},
		"token-kind":     {kindParam},
	}

	body, err := c.get(ctx, c.walletPath(wallet, "transfers_v2"), params)
	if err != nil {
		return nil, err
	}

	items, _, err := decodeItems(body)
	if err != nil {
		return nil, err
	}

	for i := range items {
		items[i].TokenKind = kind
	}
	return items, nil
}

// Paged fetches one page of the wallet's transactions, advancing the
// cursor while the provider reports more pages.
func (c *client) Paged(ctx context.Context, wallet string, page explorer.Pagination) ([]explorer.RawTransaction, explorer.Pagination, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 {
		page.PageSize = 100
	}

	params := url.Values{
		"starting-block": {strconv.FormatUint(page.StartBlock, 10)},
		"page-number":    {strconv.Itoa(page.Page - 1)}, // zero-based on the wire
		"page-size":      {strconv.Itoa(page.PageSize)},
	}

	body, err := c.get(ctx, c.walletPath(wallet, "transactions_v2"), params)
	if err != nil {
		return nil, page, err
	}

	items, hasMore, err := decodeItems(body)
	if err != nil {
		return nil, page, err
	}

	next := page
	if hasMore {
		next.Page++
	}
	return items, next, nil
}

// GasPrice is not offered by this protocol family.
func (c *client) GasPrice(ctx context.Context) (explorer.GasPrice, error) {
	return explorer.GasPrice{}, fmt.Errorf("%w: gas price", explorer.ErrUnsupported)
}
