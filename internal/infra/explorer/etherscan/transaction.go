package etherscan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gabapcia/walletsync/internal/explorer"
)

type (
	// envelope is the outer shape of every Etherscan response. Result is
	// kept raw because Etherscan encodes it as a list on success and as a
	// plain string on some failures.
	envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}

	// transactionResponse is one record from the txlist / tokentx /
	// tokennfttx / token1155tx actions. All numeric values arrive as
	// decimal strings.
	transactionResponse struct {
		BlockNumber     string `json:"blockNumber"`
		TimeStamp       string `json:"timeStamp"`
		Hash            string `json:"hash"`
		Nonce           string `json:"nonce"`
		From            string `json:"from"`
		To              string `json:"to"`
		Value           string `json:"value"`
		Gas             string `json:"gas"`
		GasPrice        string `json:"gasPrice"`
		GasUsed         string `json:"gasUsed"`
		IsError         string `json:"isError"`
		Input           string `json:"input"`
		ContractAddress string `json:"contractAddress"`
		TokenName       string `json:"tokenName"`
		TokenSymbol     string `json:"tokenSymbol"`
		TokenDecimal    string `json:"tokenDecimal"`
		TokenID         string `json:"tokenID"`
		LogIndex        string `json:"logIndex"`
	}

	// gasOracleResponse is the result of the gastracker gasoracle action.
	// Prices are decimal strings in gwei.
	gasOracleResponse struct {
		SafeGasPrice    string `json:"SafeGasPrice"`
		ProposeGasPrice string `json:"ProposeGasPrice"`
		FastGasPrice    string `json:"FastGasPrice"`
	}
)

// toRawTransaction maps an Etherscan record onto the canonical shape.
func (t transactionResponse) toRawTransaction() explorer.RawTransaction {
	blockNumber, _ := strconv.ParseUint(t.BlockNumber, 10, 64)
	timestamp, _ := strconv.ParseInt(t.TimeStamp, 10, 64)
	gas, _ := strconv.ParseUint(t.Gas, 10, 64)
	gasUsed, _ := strconv.ParseUint(t.GasUsed, 10, 64)
	nonce, _ := strconv.ParseUint(t.Nonce, 10, 64)
	decimals, _ := strconv.ParseUint(t.TokenDecimal, 10, 8)
	logIndex, _ := strconv.ParseUint(t.LogIndex, 10, 32)

	return explorer.RawTransaction{
		Hash:            t.Hash,
		BlockNumber:     blockNumber,
		Timestamp:       time.Unix(timestamp, 0).UTC(),
		From:            t.From,
		To:              t.To,
		Value:           t.Value,
		Gas:             gas,
		GasPrice:        t.GasPrice,
		GasUsed:         gasUsed,
		Nonce:           nonce,
		Input:           t.Input,
		Failed:          t.IsError == "1",
		ContractAddress: t.ContractAddress,
		TokenSymbol:     t.TokenSymbol,
		TokenDecimals:   uint8(decimals),
		TokenID:         t.TokenID,
		LogIndex:        uint32(logIndex),
	}
}

// decodeEnvelope parses the outer response shape, distinguishing the
// "status 0, no transactions found" case (an empty page) from genuinely
// malformed payloads.
func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return env, explorer.NewDecodeError(body, err)
	}
	return env, nil
}

// decodeTransactionList decodes a transaction listing response.
func decodeTransactionList(body []byte) ([]explorer.RawTransaction, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	if env.Status != "1" {
		if env.Message == noTransactionsFound {
			return nil, nil
		}
		// The payload itself is well formed; the provider declined the
		// request (rate limit, bad key) inside a 2xx body.
		return nil, fmt.Errorf("%w: %s", explorer.ErrRequestFailed, env.Message)
	}

	var records []transactionResponse
	if err := json.Unmarshal(env.Result, &records); err != nil {
		return nil, explorer.NewDecodeError(body, err)
	}

	txs := make([]explorer.RawTransaction, len(records))
	for i, record := range records {
		txs[i] = record.toRawTransaction()
	}
	return txs, nil
}

// decodeGasOracle decodes a gastracker gasoracle response.
func decodeGasOracle(body []byte) (explorer.GasPrice, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return explorer.GasPrice{}, err
	}

	if env.Status != "1" {
		return explorer.GasPrice{}, fmt.Errorf("%w: %s", explorer.ErrRequestFailed, env.Message)
	}

	var oracle gasOracleResponse
	if err := json.Unmarshal(env.Result, &oracle); err != nil {
		return explorer.GasPrice{}, explorer.NewDecodeError(body, err)
	}

	prices := explorer.GasPrice{}
	for _, field := range []struct {
		gwei string
		wei  *string
	}{
		{oracle.SafeGasPrice, &prices.Safe},
		{oracle.ProposeGasPrice, &prices.Propose},
		{oracle.FastGasPrice, &prices.Fast},
	} {
		wei, err := gweiToWei(field.gwei)
		if err != nil {
			return explorer.GasPrice{}, explorer.NewDecodeError(body, err)
		}
		*field.wei = wei
	}
	return prices, nil
}

// gweiToWei converts a decimal gwei quantity, as reported by the
// gastracker oracle, into an integral wei string. The canonical GasPrice
// unit is wei.
func gweiToWei(gwei string) (string, error) {
	value, err := strconv.ParseFloat(gwei, 64)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(uint64(value*1e9), 10), nil
}
