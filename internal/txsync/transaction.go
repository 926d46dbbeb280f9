// Package txsync is the per-chain transaction synchronization core. It
// converts raw explorer records into the domain transaction model,
// reconciles token-transfer events with their parent transactions, and
// runs the per-chain fetch cycle that keeps the transaction store current.
package txsync

import (
	"context"
	"slices"
	"time"

	"github.com/gabapcia/walletsync/internal/explorer"
	"github.com/gabapcia/walletsync/internal/pkg/validator"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Type classifies a transaction's primary operation.
type Type string

const (
	TypeTransfer       Type = "transfer"        // plain native-value transfer
	TypeContractCall   Type = "contract_call"   // call into an unknown contract
	TypeTokenOperation Type = "token_operation" // interaction with a known token contract
)

// Key uniquely identifies a transaction: hashes are only unique within
// one chain.
type Key struct {
	ChainID string
	Hash    string
}

// Operation is a token-transfer sub-event embedded in a transaction. It
// is owned exclusively by its parent Transaction and is never persisted
// on its own. Within one transaction, operations are unique per log index.
type Operation struct {
	Contract string             // token contract emitting the event
	Kind     explorer.TokenKind // token standard
	From     string             // sender
	To       string             // recipient
	Amount   string             // transferred amount, decimal string
	TokenID  string             // token id for ERC-721/1155
	LogIndex uint32             // event log index within the transaction
}

// Transaction is the unified domain model every provider record
// normalizes into. Unique per (ChainID, Hash).
type Transaction struct {
	Hash        string
	ChainID     string
	Type        Type
	BlockNumber uint64
	Timestamp   time.Time
	From        string
	To          string
	Value       string // native value, decimal string in wei
	Gas         uint64
	GasPrice    string // decimal string in wei
	GasUsed     uint64
	Nonce       uint64
	Status      Status
	Input       string // raw call data, 0x-prefixed
	Operations  []Operation
}

// Key returns the transaction's unique identity.
func (t Transaction) Key() Key {
	return Key{ChainID: t.ChainID, Hash: t.Hash}
}

// mergeOperations unions two operation lists, collapsing duplicates by
// log index and keeping the result ordered by log index.
func mergeOperations(existing, incoming []Operation) []Operation {
	byLogIndex := make(map[uint32]Operation, len(existing)+len(incoming))
	for _, op := range existing {
		byLogIndex[op.LogIndex] = op
	}
	for _, op := range incoming {
		byLogIndex[op.LogIndex] = op
	}

	merged := make([]Operation, 0, len(byLogIndex))
	for _, op := range byLogIndex {
		merged = append(merged, op)
	}
	slices.SortFunc(merged, func(a, b Operation) int {
		return int(a.LogIndex) - int(b.LogIndex)
	})
	return merged
}

// Merge folds incoming data for the same transaction into t: operations
// are unioned by log index, a pending status upgrades to whatever the
// incoming copy reports, and fields the optimistic copy lacked (block
// number, timestamp, gas usage) are filled in from the incoming record.
// Merging the same input twice yields the same result.
func (t Transaction) Merge(incoming Transaction) Transaction {
	merged := t
	merged.Operations = mergeOperations(t.Operations, incoming.Operations)

	// A pending status upgrades to whatever the synced copy reports; a
	// settled status never downgrades back to pending, but a later
	// correction to failed is honored.
	switch {
	case t.Status == "" || t.Status == StatusPending:
		if incoming.Status != "" {
			merged.Status = incoming.Status
		}
	case incoming.Status == StatusFailed:
		merged.Status = StatusFailed
	}

	if merged.BlockNumber == 0 {
		merged.BlockNumber = incoming.BlockNumber
	}
	if merged.Timestamp.IsZero() {
		merged.Timestamp = incoming.Timestamp
	}
	if merged.GasUsed == 0 {
		merged.GasUsed = incoming.GasUsed
	}
	if merged.Type == "" {
		merged.Type = incoming.Type
	}

	return merged
}

// Token describes a token contract known to the external token service.
type Token struct {
	Address  string
	ChainID  string
	Kind     explorer.TokenKind
	Symbol   string
	Decimals uint8
}

// DetectedContract is one entry of the unique contract set observed in a
// fetch batch, tagged with its token kind. The set feeds asynchronous
// token detection and is consumed once.
type DetectedContract struct {
	Address string
	Kind    explorer.TokenKind
}

// TokenService is the external token collaborator: lookups feed the
// builder's classification, and newly observed contracts are handed over
// for asynchronous metadata detection.
type TokenService interface {
	// Token returns the known token at the given contract address, with
	// ok reporting whether the contract is a known token. Absence is not
	// an error.
	Token(ctx context.Context, contractAddress, chainID string) (Token, bool, error)

	// AddDetectedContracts registers contract addresses newly observed in
	// a fetch batch for token-metadata detection.
	AddDetectedContracts(ctx context.Context, chainID string, contracts []DetectedContract) error
}

// FeeSource answers gas-price queries for one chain. Explorer adapters
// satisfy it where the provider has a gas endpoint; a node-RPC source
// covers the rest.
type FeeSource interface {
	GasPrice(ctx context.Context) (explorer.GasPrice, error)
}

// Session is the externally supplied per-chain context. It is read-only
// to the sync core.
type Session struct {
	ChainID     string `validate:"required"` // chain identifier (e.g. "ethereum")
	Wallet      string `validate:"required"` // wallet address under sync
	RPCEndpoint string // node RPC endpoint, used for fee fallback only
}

// NewSession validates and returns a session for the given chain and
// wallet.
func NewSession(chainID, wallet, rpcEndpoint string) (Session, error) {
	session := Session{
		ChainID:     chainID,
		Wallet:      wallet,
		RPCEndpoint: rpcEndpoint,
	}

	return session, validator.Validate(session)
}
