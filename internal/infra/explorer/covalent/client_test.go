package covalent

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gabapcia/walletsync/internal/explorer"
	transporthttp "github.com/gabapcia/walletsync/internal/pkg/transport/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	httpClient := transporthttp.NewClient(transporthttp.WithRetryMax(0))
	return NewClient(httpClient, srv.URL, "eth-mainnet", "test-key")
}

func TestClient_NormalTransactions(t *testing.T) {
	t.Run("decodes the items envelope", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/eth-mainnet/address/0xwallet/transactions_v2/", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "100", r.URL.Query().Get("starting-block"))
			assert.Equal(t, "true", r.URL.Query().Get("block-signed-at-asc"))

			_, _ = w.Write([]byte(`{
				"data": {
					"items": [{
						"block_signed_at": "2023-11-14T22:13:20Z",
						"block_height": 105,
						"tx_hash": "0xabc",
						"from_address": "0xfrom",
						"to_address": "0xto",
						"value": "1000000000000000000",
						"gas_offered": 21000,
						"gas_spent": 21000,
						"gas_price": 20000000000,
						"successful": true,
						"nonce": 7,
						"input": "0x"
					}],
					"pagination": {"has_more": false}
				},
				"error": false
			}`))
		})

		txs, err := c.NormalTransactions(t.Context(), "0xwallet", 100, 0, explorer.SortAscending)

		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "0xabc", txs[0].Hash)
		assert.Equal(t, uint64(105), txs[0].BlockNumber)
		assert.Equal(t, "20000000000", txs[0].GasPrice)
		assert.False(t, txs[0].Failed)
	})

	t.Run("provider-flagged errors surface as request errors", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":null,"error":true,"error_message":"backlogged","error_code":507}`))
		})

		_, err := c.NormalTransactions(t.Context(), "0xwallet", 0, 0, explorer.SortAscending)

		require.ErrorIs(t, err, explorer.ErrRequestFailed)

		var reqErr *explorer.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, 507, reqErr.Status)
	})

	t.Run("HTTP 404 maps to ErrNotFound", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := c.NormalTransactions(t.Context(), "0xwallet", 0, 0, explorer.SortAscending)

		assert.ErrorIs(t, err, explorer.ErrNotFound)
	})

	t.Run("malformed payloads map to a decode error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{]`))
		})

		_, err := c.NormalTransactions(t.Context(), "0xwallet", 0, 0, explorer.SortAscending)

		assert.ErrorIs(t, err, explorer.ErrDecodeFailed)
	})
}

func TestClient_TokenTransfers(t *testing.T) {
	t.Run("fetches erc20 transfers via transfers_v2", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/eth-mainnet/address/0xwallet/transfers_v2/", r.URL.Path)
			assert.Equal(t, "erc20", r.URL.Query().Get("token-kind"))

			_, _ = w.Write([]byte(`{
				"data": {
					"items": [{
						"block_signed_at": "2023-11-14T22:15:00Z",
						"block_height": 110,
						"tx_hash": "0xdef",
						"from_address": "0xfrom",
						"to_address": "0xto",
						"value": "500",
						"contract_address": "0xtoken",
						"contract_ticker_symbol": "TKN",
						"contract_decimals": 18,
						"log_offset": 2
					}],
					"pagination": {"has_more": false}
				},
				"error": false
			}`))
		})

		txs, err := c.TokenTransfers(t.Context(), "0xwallet", 0, explorer.TokenKindERC20)

		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, explorer.TokenKindERC20, txs[0].TokenKind)
		assert.Equal(t, "0xtoken", txs[0].ContractAddress)
		assert.Equal(t, uint32(2), txs[0].LogIndex)
		assert.False(t, txs[0].Failed)
	})

	t.Run("erc1155 yields ErrUnsupported without a request", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := c.TokenTransfers(t.Context(), "0xwallet", 0, explorer.TokenKindERC1155)

		assert.ErrorIs(t, err, explorer.ErrUnsupported)
	})
}

func TestClient_Paged(t *testing.T) {
	t.Run("advances the cursor while the provider reports more pages", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "0", r.URL.Query().Get("page-number"))
			assert.Equal(t, "100", r.URL.Query().Get("page-size"))

			_, _ = w.Write([]byte(`{
				"data": {"items": [], "pagination": {"has_more": true}},
				"error": false
			}`))
		})

		_, next, err := c.Paged(t.Context(), "0xwallet", explorer.Pagination{})

		require.NoError(t, err)
		assert.Equal(t, 2, next.Page)
	})
}

func TestClient_GasPrice(t *testing.T) {
	t.Run("is unsupported for this protocol family", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := c.GasPrice(t.Context())

		assert.ErrorIs(t, err, explorer.ErrUnsupported)
	})
}
