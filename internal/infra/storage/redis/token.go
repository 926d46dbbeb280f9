package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gabapcia/walletsync/internal/explorer"
	"github.com/gabapcia/walletsync/internal/tokenregistry"
	"github.com/gabapcia/walletsync/internal/txsync"

	"github.com/redis/go-redis/v9"
)

// tokenKey builds the key holding one known token as JSON:
//
//	"walletsync:token:<chain>:<address>"
func tokenKey(chainID, address string) string {
	return fmt.Sprintf("%s:token:%s:%s", txKeyPrefix, chainID, address)
}

// detectedContractsKey builds the per-chain set of detected contracts,
// stored as "<address>|<kind>" members:
//
//	"walletsync:detected:<chain>"
func detectedContractsKey(chainID string) string {
	return fmt.Sprintf("%s:detected:%s", txKeyPrefix, chainID)
}

// tokenData is the wire shape of one known token.
type tokenData struct {
	Address  string `json:"address"`
	ChainID  string `json:"chain_id"`
	Kind     string `json:"kind,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals,omitempty"`
}

// SaveToken stores a known token, overwriting any previous entry.
func (c *client) SaveToken(ctx context.Context, token txsync.Token) error {
	payload, err := json.Marshal(tokenData{
		Address:  token.Address,
		ChainID:  token.ChainID,
		Kind:     string(token.Kind),
		Symbol:   token.Symbol,
		Decimals: token.Decimals,
	})
	if err != nil {
		return err
	}

	return c.conn.Set(ctx, tokenKey(token.ChainID, token.Address), payload, 0).Err()
}

// GetToken loads one known token. Absence is reported through ok.
func (c *client) GetToken(ctx context.Context, chainID, address string) (txsync.Token, bool, error) {
	val, err := c.conn.Get(ctx, tokenKey(chainID, address)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return txsync.Token{}, false, nil
		}
		return txsync.Token{}, false, err
	}

	var data tokenData
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return txsync.Token{}, false, err
	}

	return txsync.Token{
		Address:  data.Address,
		ChainID:  data.ChainID,
		Kind:     explorer.TokenKind(data.Kind),
		Symbol:   data.Symbol,
		Decimals: data.Decimals,
	}, true, nil
}

// SaveDetectedContracts adds the contracts to the chain's detected set.
// Set members make repeated detections idempotent.
func (c *client) SaveDetectedContracts(ctx context.Context, chainID string, contracts []txsync.DetectedContract) error {
	if len(contracts) == 0 {
		return nil
	}

	members := make([]any, len(contracts))
	for i, contract := range contracts {
		members[i] = fmt.Sprintf("%s|%s", contract.Address, contract.Kind)
	}

	return c.conn.SAdd(ctx, detectedContractsKey(chainID), members...).Err()
}

// ListDetectedContracts returns every detected contract for the chain.
func (c *client) ListDetectedContracts(ctx context.Context, chainID string) ([]txsync.DetectedContract, error) {
	members, err := c.conn.SMembers(ctx, detectedContractsKey(chainID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]txsync.DetectedContract, 0, len(members))
	for _, member := range members {
		i := strings.LastIndex(member, "|")
		if i <= 0 {
			continue
		}

		out = append(out, txsync.DetectedContract{
			Address: member[:i],
			Kind:    explorer.TokenKind(member[i+1:]),
		})
	}
	return out, nil
}

// Compile-time assertion that the client implements the token storage
// port.
var _ tokenregistry.TokenStorage = new(client)
