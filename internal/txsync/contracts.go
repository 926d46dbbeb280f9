package txsync

import (
	"context"
	"strings"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/types"
)

// collectDetectedContracts builds the unique contract set observed in a
// batch of merged transactions: every (contract address, token kind) pair
// appearing in an operation, deduplicated.
func collectDetectedContracts(txs []Transaction) []DetectedContract {
	seen := types.NewSet[DetectedContract]()
	for _, tx := range txs {
		for _, op := range tx.Operations {
			if op.Contract == "" {
				continue
			}
			seen.Add(DetectedContract{
				Address: strings.ToLower(op.Contract),
				Kind:    op.Kind,
			})
		}
	}
	return seen.ToSlice()
}

// dispatchContractDetection hands the unique contract set to the token
// service on its own goroutine, decoupled from the fetch cycle. Delivery
// is retried with backoff; a persistent failure is logged and dropped,
// never blocking or failing transaction persistence.
func (p *Provider) dispatchContractDetection(ctx context.Context, contracts []DetectedContract) {
	if len(contracts) == 0 {
		return
	}

	go func() {
		err := p.retry.Execute(ctx, func() error {
			return p.tokens.AddDetectedContracts(ctx, p.session.ChainID, contracts)
		})
		if err != nil {
			logger.Warn(ctx, "token contract detection failed",
				"chain", p.session.ChainID,
				"contracts", len(contracts),
				"error", err,
			)
		}
	}()
}

// knownTokensFor queries the token service for every distinct address a
// batch could classify against (recipients and operation contracts),
// returning the known tokens keyed by lowercased address. Lookup
// failures degrade to classification without token context.
func (p *Provider) knownTokensFor(ctx context.Context, addresses types.Set[string]) map[string]Token {
	known := make(map[string]Token, addresses.Len())
	for address := range addresses.ToIter() {
		if address == "" {
			continue
		}

		token, ok, err := p.tokens.Token(ctx, address, p.session.ChainID)
		if err != nil {
			logger.Debug(ctx, "token lookup failed", "chain", p.session.ChainID, "address", address, "error", err)
			continue
		}
		if ok {
			known[strings.ToLower(address)] = token
		}
	}
	return known
}
