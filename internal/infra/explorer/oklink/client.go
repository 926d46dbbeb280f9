// Package oklink implements the explorer.Client contract for Oklink-style
// multi-chain explorer APIs: one shared host routed by chainShortName,
// API key in the Ok-Access-Key header, and a data/transactionLists
// envelope where every value is a string.
package oklink

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

// transactionListPath is the resource every listing query goes through;
// protocolType selects between normal transactions and token transfers.
const transactionListPath = "/api/v5/explorer/address/transaction-list"

// listPageSize is the page size used when draining a multi-page listing.
const listPageSize = 100

// protocolTypes maps supported token kinds to the protocolType parameter.
// There is no ERC-1155 protocol type in this family.
var protocolTypes = map[explorer.TokenKind]string{
	explorer.TokenKindERC20:  "token_20",
	explorer.TokenKindERC721: "token_721",
}

// client talks to one Oklink-style API host for a single chain.
type client struct {
	httpClient     *retryablehttp.Client // shared retrying HTTP transport
	baseURL        string                // e.g. "https://www.oklink.com"
	chainShortName string                // chain routing parameter (e.g. "eth")
	apiKey         string                // Ok-Access-Key header value; empty disables it
}

// Compile-time assertion that client implements explorer.Client.
var _ explorer.Client = (*client)(nil)

// NewClient creates an Oklink-style adapter bound to one chain.
func NewClient(httpClient *retryablehttp.Client, baseURL, chainShortName, apiKey string) *client {
	return &client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		chainShortName: chainShortName,
		apiKey:         apiKey,
	}
}

// Provider identifies this adapter's protocol family.
func (c *client) Provider() explorer.Provider {
	return explorer.ProviderOklink
}

// get performs the HTTP request and maps the status code onto the typed
// error taxonomy.
func (c *client) get(ctx context.Context, params url.Values) ([]byte, error) {
	params.Set("chainShortName", c.chainShortName)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+transactionListPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Ok-Access-Key", c.apiKey)
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

// list runs one transaction-list query for the given protocol type.
func (c *client) list(ctx context.Context, wallet, protocolType string, startBlock, endBlock uint64, page, pageSize int) ([]explorer.RawTransaction, bool, error) {
	params := url.Values{
		"address":          {wallet},
		"protocolType":     {protocolType},
		"startBlockHeight": {strconv.FormatUint(startBlock, 10)},
	}
	if endBlock > 0 {
		params.Set("endBlockHeight", strconv.FormatUint(endBlock, 10))
	}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(pageSize))
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, false, err
	}

	return decodeTransactionList(body)
}

// listAll drains every page of one transaction-list query. Stopping at
// the first page would let callers advance their watermark past blocks
// they never saw, so the whole range is fetched before returning.
func (c *client) listAll(ctx context.Context, wallet, protocolType string, startBlock, endBlock uint64) ([]explorer.RawTransaction, error) {
	var all []explorer.RawTransaction
	for page := 1; ; page++ {
		txs, hasMore, err := c.list(ctx, wallet, protocolType, startBlock, endBlock, page, listPageSize)
		if err != nil {
			return nil, err
		}

		all = append(all, txs...)
		if !hasMore {
			return all, nil
		}
	}
}

// NormalTransactions fetches full transactions via the transaction
// protocol type, draining every page. Results arrive descending from this
// family, so ascending requests are reversed locally.
func (c *client) NormalTransactions(ctx context.Context, wallet string, startBlock, endBlock uint64, sort explorer.SortOrder) ([]explorer.RawTransaction, error) {
	txs, err := c.listAll(ctx, wallet, "transaction", startBlock, endBlock)
	if err != nil {
		return nil, err
	}

	if sort == explorer.SortAscending {
		for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
			txs[i], txs[j] = txs[j], txs[i]
		}
	}
	return txs, nil
}

// TokenTransfers fetches transfer events via the token protocol types.
// ERC-1155 has no protocol type in this family and yields ErrUnsupported.
func (c *client) TokenTransfers(ctx context.Context, wallet string, startBlock uint64, kind explorer.TokenKind) ([]explorer.RawTransaction, error) {
	protocolType, ok := protocolTypes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: token kind %q", explorer.ErrUnsupported, kind)
	}

	txs, err := c.listAll(ctx, wallet, protocolType, startBlock, 0)
	if err != nil {
		return nil, err
	}

	// This family reports no log index, so transfers sharing one
	// transaction would collapse into a single operation downstream.
	// An arrival-order ordinal per transaction keeps them distinct.
	ordinals := make(map[string]uint32, len(txs))
	for i := range txs {
		txs[i].TokenKind = kind
		txs[i].LogIndex = ordinals[txs[i].Hash]
		ordinals[txs[i].Hash]++
	}
	return txs, nil
}

// Paged fetches one page of the wallet's transactions, advancing the
// cursor while the provider reports further pages.
func (c *client) Paged(ctx context.Context, wallet string, page explorer.Pagination) ([]explorer.RawTransaction, explorer.Pagination, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PageSize < 1 {
		page.PageSize = 100
	}

	txs, hasMore, err := c.list(ctx, wallet, "transaction", page.StartBlock, 0, page.Page, page.PageSize)
	if err != nil {
		return nil, page, err
	}

	next := page
	if hasMore {
		next.Page++
	}
	return txs, next, nil
}

// GasPrice is not offered by this protocol family.
func (c *client) GasPrice(ctx context.Context) (explorer.GasPrice, error) {
	return explorer.GasPrice{}, fmt.Errorf("%w: gas price", explorer.ErrUnsupported)
}
