// Package tokenregistry tracks the token contracts the application knows
// about. Known tokens feed transaction classification in the sync core;
// contracts newly observed during sync are recorded as detected, awaiting
// metadata, so later fetches can classify against them.
package tokenregistry

import (
	"context"
	"strings"

	"github.com/gabapcia/walletsync/internal/txsync"
)

// Service is the token registry API. It satisfies the sync core's token
// collaborator port, so providers query and feed it directly.
type Service interface {
	// Token returns the known token at the given contract address for the
	// chain. Absence is reported through ok, never as an error.
	Token(ctx context.Context, contractAddress, chainID string) (txsync.Token, bool, error)

	// AddDetectedContracts records contracts observed during sync. Each
	// detected contract also becomes a minimal known token carrying its
	// kind, so classification improves before metadata arrives.
	AddDetectedContracts(ctx context.Context, chainID string, contracts []txsync.DetectedContract) error

	// Register stores a fully described token.
	Register(ctx context.Context, token txsync.Token) error

	// DetectedContracts lists every contract recorded for the chain.
	DetectedContracts(ctx context.Context, chainID string) ([]txsync.DetectedContract, error)
}

type service struct {
	storage TokenStorage
}

var (
	_ Service             = (*service)(nil)
	_ txsync.TokenService = (*service)(nil)
)

// New creates the token registry on top of the given storage.
func New(storage TokenStorage) *service {
	return &service{storage: storage}
}

func (s *service) Token(ctx context.Context, contractAddress, chainID string) (txsync.Token, bool, error) {
	return s.storage.GetToken(ctx, chainID, strings.ToLower(contractAddress))
}

func (s *service) AddDetectedContracts(ctx context.Context, chainID string, contracts []txsync.DetectedContract) error {
	if len(contracts) == 0 {
		return nil
	}

	if err := s.storage.SaveDetectedContracts(ctx, chainID, contracts); err != nil {
		return err
	}

	for _, contract := range contracts {
		address := strings.ToLower(contract.Address)

		// A token registered with full metadata is never downgraded to a
		// bare detection entry.
		if _, known, err := s.storage.GetToken(ctx, chainID, address); err != nil {
			return err
		} else if known {
			continue
		}

		err := s.storage.SaveToken(ctx, txsync.Token{
			Address: address,
			ChainID: chainID,
			Kind:    contract.Kind,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *service) Register(ctx context.Context, token txsync.Token) error {
	token, err := buildRegisteredToken(token)
	if err != nil {
		return err
	}

	return s.storage.SaveToken(ctx, token)
}

func (s *service) DetectedContracts(ctx context.Context, chainID string) ([]txsync.DetectedContract, error) {
	return s.storage.ListDetectedContracts(ctx, chainID)
}
