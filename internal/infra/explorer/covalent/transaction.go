package covalent

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gabapcia/walletsync/internal/explorer"
)

type (
	// envelope is the outer shape of every Covalent-style response.
	envelope struct {
		Data struct {
			Items      []itemResponse `json:"items"`
			Pagination struct {
				HasMore bool `json:"has_more"`
			} `json:"pagination"`
		} `json:"data"`
		Error        bool   `json:"error"`
		ErrorMessage string `json:"error_message"`
		ErrorCode    int    `json:"error_code"`
	}

	// itemResponse is one transaction or transfer record. Numeric gas
	// values arrive as JSON numbers, on-chain values as decimal strings,
	// timestamps as RFC3339.
	itemResponse struct {
		BlockSignedAt    time.Time `json:"block_signed_at"`
		BlockHeight      uint64    `json:"block_height"`
		TxHash           string    `json:"tx_hash"`
		FromAddress      string    `json:"from_address"`
		ToAddress        string    `json:"to_address"`
		Value            string    `json:"value"`
		GasOffered       uint64    `json:"gas_offered"`
		GasSpent         uint64    `json:"gas_spent"`
		GasPrice         int64     `json:"gas_price"`
		Successful       *bool     `json:"successful"` // absent on transfer records, meaning success
		Nonce            uint64    `json:"nonce"`
		Input            string    `json:"input"`
		ContractAddress  string    `json:"contract_address"`
		ContractTicker   string    `json:"contract_ticker_symbol"`
		ContractDecimals uint8     `json:"contract_decimals"`
		TokenID          string    `json:"token_id"`
		LogOffset        uint32    `json:"log_offset"`
	}
)

// toRawTransaction maps a Covalent-style record onto the canonical shape.
func (t itemResponse) toRawTransaction() explorer.RawTransaction {
	return explorer.RawTransaction{
		Hash:            t.TxHash,
		BlockNumber:     t.BlockHeight,
		Timestamp:       t.BlockSignedAt.UTC(),
		From:            t.FromAddress,
		To:              t.ToAddress,
		Value:           t.Value,
		Gas:             t.GasOffered,
		GasPrice:        strconv.FormatInt(t.GasPrice, 10),
		GasUsed:         t.GasSpent,
		Nonce:           t.Nonce,
		Input:           t.Input,
		Failed:          t.Successful != nil && !*t.Successful,
		ContractAddress: t.ContractAddress,
		TokenSymbol:     t.ContractTicker,
		TokenDecimals:   t.ContractDecimals,
		TokenID:         t.TokenID,
		LogIndex:        t.LogOffset,
	}
}

// decodeItems decodes the items envelope, returning the canonical records
// and whether the provider reports more pages. A provider-flagged error
// inside a 2xx body surfaces as a RequestError with the embedded code.
func decodeItems(body []byte) ([]explorer.RawTransaction, bool, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, explorer.NewDecodeError(body, err)
	}

	if env.Error {
		return nil, false, explorer.NewRequestError(env.ErrorCode)
	}

	txs := make([]explorer.RawTransaction, len(env.Data.Items))
	for i, item := range env.Data.Items {
		txs[i] = item.toRawTransaction()
	}
	return txs, env.Data.Pagination.HasMore, nil
}
