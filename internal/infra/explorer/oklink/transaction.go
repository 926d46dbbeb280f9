package oklink

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gabapcia/walletsync/internal/explorer"
)

type (
	// envelope is the outer shape of every Oklink-style response. The code
	// field is "0" on success; any other value is a provider-reported
	// failure carrying its own numeric code.
	envelope struct {
		Code string         `json:"code"`
		Msg  string         `json:"msg"`
		Data []dataResponse `json:"data"`
	}

	dataResponse struct {
		Page             string                `json:"page"`
		Limit            string                `json:"limit"`
		TotalPage        string                `json:"totalPage"`
		TransactionLists []transactionResponse `json:"transactionLists"`
	}

	// transactionResponse is one record from the transaction-list
	// resource. Every field is a string; transactionTime is unix
	// milliseconds and amount is already denominated in the token's unit.
	transactionResponse struct {
		TxID                 string `json:"txId"`
		BlockHash            string `json:"blockHash"`
		Height               string `json:"height"`
		TransactionTime      string `json:"transactionTime"`
		From                 string `json:"from"`
		To                   string `json:"to"`
		Amount               string `json:"amount"`
		TxFee                string `json:"txFee"`
		GasLimit             string `json:"gasLimit"`
		GasUsed              string `json:"gasUsed"`
		GasPrice             string `json:"gasPrice"`
		Nonce                string `json:"nonce"`
		State                string `json:"state"`
		InputData            string `json:"inputData"`
		TokenContractAddress string `json:"tokenContractAddress"`
		TokenID              string `json:"tokenId"`
		TransactionSymbol    string `json:"transactionSymbol"`
	}
)

// toRawTransaction maps an Oklink-style record onto the canonical shape.
func (t transactionResponse) toRawTransaction() explorer.RawTransaction {
	height, _ := strconv.ParseUint(t.Height, 10, 64)
	millis, _ := strconv.ParseInt(t.TransactionTime, 10, 64)
	gasLimit, _ := strconv.ParseUint(t.GasLimit, 10, 64)
	gasUsed, _ := strconv.ParseUint(t.GasUsed, 10, 64)
	nonce, _ := strconv.ParseUint(t.Nonce, 10, 64)

	return explorer.RawTransaction{
		Hash:            t.TxID,
		BlockNumber:     height,
		Timestamp:       time.UnixMilli(millis).UTC(),
		From:            t.From,
		To:              t.To,
		Value:           t.Amount,
		Gas:             gasLimit,
		GasPrice:        t.GasPrice,
		GasUsed:         gasUsed,
		Nonce:           nonce,
		Input:           t.InputData,
		Failed:          t.State == "fail",
		ContractAddress: t.TokenContractAddress,
		TokenSymbol:     t.TransactionSymbol,
		TokenID:         t.TokenID,
	}
}

// decodeTransactionList decodes a transaction-list response, returning the
// canonical records and whether further pages remain.
func decodeTransactionList(body []byte) ([]explorer.RawTransaction, bool, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, explorer.NewDecodeError(body, err)
	}

	if env.Code != "0" {
		code, err := strconv.Atoi(env.Code)
		if err != nil {
			return nil, false, explorer.NewDecodeError(body, err)
		}
		return nil, false, explorer.NewRequestError(code)
	}

	if len(env.Data) == 0 {
		return nil, false, nil
	}

	data := env.Data[0]

	txs := make([]explorer.RawTransaction, len(data.TransactionLists))
	for i, record := range data.TransactionLists {
		txs[i] = record.toRawTransaction()
	}

	page, _ := strconv.Atoi(data.Page)
	totalPage, _ := strconv.Atoi(data.TotalPage)
	return txs, page < totalPage, nil
}
