package txsync

import (
	"strings"

	"github.com/gabapcia/walletsync/internal/explorer"
)

// tokenMethodSelectors holds the 4-byte method selectors of the standard
// token transfer entrypoints. A call into a known token contract using one
// of these selectors classifies as a token operation.
var tokenMethodSelectors = map[string]struct{}{
	"0xa9059cbb": {}, // transfer(address,uint256)
	"0x23b872dd": {}, // transferFrom(address,address,uint256)
	"0x095ea7b3": {}, // approve(address,uint256)
	"0x42842e0e": {}, // safeTransferFrom(address,address,uint256)
	"0xb88d4fde": {}, // safeTransferFrom(address,address,uint256,bytes)
	"0xf242432a": {}, // safeTransferFrom(address,address,uint256,uint256,bytes)
	"0x2eb2c2d6": {}, // safeBatchTransferFrom(address,address,uint256[],uint256[],bytes)
	"0xa22cb465": {}, // setApprovalForAll(address,bool)
}

// emptyInput reports whether the call data carries no payload.
func emptyInput(input string) bool {
	return input == "" || input == "0x"
}

// methodSelector extracts the 4-byte selector from 0x-prefixed call data,
// or an empty string when the data is too short.
func methodSelector(input string) string {
	if len(input) < 10 {
		return ""
	}
	return strings.ToLower(input[:10])
}

// classify resolves a raw record's transaction type by inspecting its
// method selector and recipient against the known token contracts.
func classify(raw explorer.RawTransaction, knownTokens map[string]Token) Type {
	if raw.IsTokenTransfer() {
		return TypeTokenOperation
	}

	if emptyInput(raw.Input) {
		return TypeTransfer
	}

	_, knownToken := knownTokens[strings.ToLower(raw.To)]
	_, tokenSelector := tokenMethodSelectors[methodSelector(raw.Input)]
	if knownToken && tokenSelector {
		return TypeTokenOperation
	}

	return TypeContractCall
}

// status resolves the domain status of a raw record. Explorer endpoints
// only return mined transactions, so anything not failed is confirmed.
func status(raw explorer.RawTransaction) Status {
	if raw.Failed {
		return StatusFailed
	}
	return StatusConfirmed
}

// Build converts a raw decoded record into a fully-typed domain
// transaction for the given chain. knownTokens is keyed by lowercased
// contract address. Build performs no I/O and is deterministic: the same
// inputs always produce an identical Transaction.
//
// A token-transfer record yields a transaction carrying one Operation; a
// normal record yields zero operations and a type derived from its call
// data and recipient.
func Build(raw explorer.RawTransaction, chainID string, knownTokens map[string]Token) Transaction {
	tx := Transaction{
		Hash:        raw.Hash,
		ChainID:     chainID,
		Type:        classify(raw, knownTokens),
		BlockNumber: raw.BlockNumber,
		Timestamp:   raw.Timestamp,
		From:        raw.From,
		To:          raw.To,
		Value:       raw.Value,
		Gas:         raw.Gas,
		GasPrice:    raw.GasPrice,
		GasUsed:     raw.GasUsed,
		Nonce:       raw.Nonce,
		Status:      status(raw),
		Input:       raw.Input,
	}

	if raw.IsTokenTransfer() {
		tx.Operations = []Operation{{
			Contract: raw.ContractAddress,
			Kind:     raw.TokenKind,
			From:     raw.From,
			To:       raw.To,
			Amount:   raw.Value,
			TokenID:  raw.TokenID,
			LogIndex: raw.LogIndex,
		}}

		// The native value of a transfer-endpoint record is the token
		// amount, not a wallet-level value movement.
		tx.Value = "0"
	}

	return tx
}

// BuildAll converts a batch of raw records, preserving order.
func BuildAll(raws []explorer.RawTransaction, chainID string, knownTokens map[string]Token) []Transaction {
	txs := make([]Transaction, len(raws))
	for i, raw := range raws {
		txs[i] = Build(raw, chainID, knownTokens)
	}
	return txs
}
