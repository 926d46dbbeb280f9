package tokenregistry

import (
	"context"
	"strings"

	"github.com/gabapcia/walletsync/internal/pkg/validator"
	"github.com/gabapcia/walletsync/internal/txsync"
)

// TokenStorage is the persistence port for known tokens and detected
// contracts. The Redis adapter implements it for durable storage; the
// in-memory adapter is the default.
type TokenStorage interface {
	// SaveToken stores a known token, overwriting any previous entry for
	// the same (chain, address).
	SaveToken(ctx context.Context, token txsync.Token) error

	// GetToken returns the known token for the given chain and lowercased
	// contract address, with ok reporting whether it exists.
	GetToken(ctx context.Context, chainID, address string) (txsync.Token, bool, error)

	// SaveDetectedContracts records contract addresses observed during
	// sync that await metadata resolution. Repeated saves of the same
	// contract are idempotent.
	SaveDetectedContracts(ctx context.Context, chainID string, contracts []txsync.DetectedContract) error

	// ListDetectedContracts returns every recorded contract for the chain.
	ListDetectedContracts(ctx context.Context, chainID string) ([]txsync.DetectedContract, error)
}

// registeredToken is the validated registration input.
type registeredToken struct {
	Address string `validate:"required"` // token contract address
	ChainID string `validate:"required"` // chain the contract lives on
	Symbol  string `validate:"required"` // display symbol
}

// buildRegisteredToken validates the registration input, normalizing the
// address to lowercase.
func buildRegisteredToken(token txsync.Token) (txsync.Token, error) {
	input := registeredToken{
		Address: token.Address,
		ChainID: token.ChainID,
		Symbol:  token.Symbol,
	}
	if err := validator.Validate(input); err != nil {
		return txsync.Token{}, err
	}

	token.Address = strings.ToLower(token.Address)
	return token, nil
}
