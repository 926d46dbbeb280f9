// Package explorer defines the canonical contract between the sync core
// and third-party block-explorer APIs. Each supported explorer protocol
// family (Etherscan-compatible, Covalent-style, Oklink-style) has an
// adapter under internal/infra/explorer that decodes its own wire format
// into the RawTransaction shape declared here.
package explorer

import "time"

// TokenKind identifies the token standard a transfer event belongs to.
type TokenKind string

const (
	TokenKindERC20   TokenKind = "erc20"
	TokenKindERC721  TokenKind = "erc721"
	TokenKindERC1155 TokenKind = "erc1155"
)

// TokenKinds lists every token standard the sync core fetches transfer
// events for, in the order they are scheduled.
func TokenKinds() []TokenKind {
	return []TokenKind{TokenKindERC20, TokenKindERC721, TokenKindERC1155}
}

// SortOrder controls the ordering of paginated explorer responses.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// RawTransaction is the provider-neutral decoding of one explorer record.
// A record from an all-transactions endpoint describes a full transaction;
// a record from a token-transfer endpoint describes a single transfer event
// and carries the token fields plus the log index of the event.
type RawTransaction struct {
	Hash        string    // transaction hash, unique per chain
	BlockNumber uint64    // block containing the transaction
	Timestamp   time.Time // block timestamp
	From        string    // sender address
	To          string    // recipient address
	Value       string    // native value transferred, decimal string in wei
	Gas         uint64    // gas limit
	GasPrice    string    // gas price, decimal string in wei
	GasUsed     uint64    // gas consumed
	Nonce       uint64    // sender account nonce
	Input       string    // raw call data, 0x-prefixed
	Failed      bool      // true when the provider reports execution failure

	// Token-transfer fields, zero-valued on normal transaction records.
	ContractAddress string    // token contract emitting the transfer
	TokenKind       TokenKind // token standard of the transfer
	TokenSymbol     string    // token symbol as reported by the provider
	TokenDecimals   uint8     // token decimals as reported by the provider
	TokenID         string    // token id for ERC-721/1155 transfers
	LogIndex        uint32    // event log index within the transaction
}

// IsTokenTransfer reports whether the record came from a token-transfer
// endpoint rather than the all-transactions endpoint.
func (t RawTransaction) IsTokenTransfer() bool {
	return t.TokenKind != ""
}

// Pagination is the provider-facing page cursor for Paged fetches.
type Pagination struct {
	Page       int    // 1-based page number
	PageSize   int    // records per page
	StartBlock uint64 // lowest block of interest
}

// GasPrice is a provider fee estimate in wei, as decimal strings.
// Providers without tiered estimates populate only Propose.
type GasPrice struct {
	Safe    string
	Propose string
	Fast    string
}
