package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gabapcia/walletsync/internal/explorer"
	"github.com/gabapcia/walletsync/internal/txstore"
	"github.com/gabapcia/walletsync/internal/txsync"

	"github.com/redis/go-redis/v9"
)

// txKeyPrefix is the namespace prefix for all transaction storage keys.
const txKeyPrefix = "walletsync"

// transactionKey builds the key holding one transaction row as JSON:
//
//	"walletsync:tx:<chain>:<hash>"
func transactionKey(chainID, hash string) string {
	return fmt.Sprintf("%s:tx:%s:%s", txKeyPrefix, chainID, hash)
}

// transactionIndexKey builds the per-chain index set listing every stored
// transaction hash for that chain:
//
//	"walletsync:txindex:<chain>"
func transactionIndexKey(chainID string) string {
	return fmt.Sprintf("%s:txindex:%s", txKeyPrefix, chainID)
}

// chainSetKey holds the set of chains that have at least one stored row,
// used to answer unfiltered listings.
const chainSetKey = txKeyPrefix + ":chains"

// operationData is the wire shape of one token operation inside a stored
// transaction row.
type operationData struct {
	Contract string `json:"contract"`
	Kind     string `json:"kind"`
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	TokenID  string `json:"token_id,omitempty"`
	LogIndex uint32 `json:"log_index"`
}

// transactionData is the wire shape of one stored transaction row.
type transactionData struct {
	Hash        string          `json:"hash"`
	ChainID     string          `json:"chain_id"`
	Type        string          `json:"type"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   time.Time       `json:"timestamp"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Value       string          `json:"value"`
	Gas         uint64          `json:"gas"`
	GasPrice    string          `json:"gas_price"`
	GasUsed     uint64          `json:"gas_used"`
	Nonce       uint64          `json:"nonce"`
	Status      string          `json:"status"`
	Input       string          `json:"input,omitempty"`
	Operations  []operationData `json:"operations,omitempty"`
}

func encodeTransaction(tx txsync.Transaction) transactionData {
	data := transactionData{
		Hash:        tx.Hash,
		ChainID:     tx.ChainID,
		Type:        string(tx.Type),
		BlockNumber: tx.BlockNumber,
		Timestamp:   tx.Timestamp,
		From:        tx.From,
		To:          tx.To,
		Value:       tx.Value,
		Gas:         tx.Gas,
		GasPrice:    tx.GasPrice,
		GasUsed:     tx.GasUsed,
		Nonce:       tx.Nonce,
		Status:      string(tx.Status),
		Input:       tx.Input,
	}

	for _, op := range tx.Operations {
		data.Operations = append(data.Operations, operationData{
			Contract: op.Contract,
			Kind:     string(op.Kind),
			From:     op.From,
			To:       op.To,
			Amount:   op.Amount,
			TokenID:  op.TokenID,
			LogIndex: op.LogIndex,
		})
	}

	return data
}

func (d transactionData) toDomain() txsync.Transaction {
	tx := txsync.Transaction{
		Hash:        d.Hash,
		ChainID:     d.ChainID,
		Type:        txsync.Type(d.Type),
		BlockNumber: d.BlockNumber,
		Timestamp:   d.Timestamp,
		From:        d.From,
		To:          d.To,
		Value:       d.Value,
		Gas:         d.Gas,
		GasPrice:    d.GasPrice,
		GasUsed:     d.GasUsed,
		Nonce:       d.Nonce,
		Status:      txsync.Status(d.Status),
		Input:       d.Input,
	}

	for _, op := range d.Operations {
		tx.Operations = append(tx.Operations, txsync.Operation{
			Contract: op.Contract,
			Kind:     explorer.TokenKind(op.Kind),
			From:     op.From,
			To:       op.To,
			Amount:   op.Amount,
			TokenID:  op.TokenID,
			LogIndex: op.LogIndex,
		})
	}

	return tx
}

// GetTransaction loads one row by key. A missing row is reported through
// the ok result, never as an error.
func (c *client) GetTransaction(ctx context.Context, key txsync.Key) (txsync.Transaction, bool, error) {
	val, err := c.conn.Get(ctx, transactionKey(key.ChainID, key.Hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return txsync.Transaction{}, false, nil
		}
		return txsync.Transaction{}, false, err
	}

	var data transactionData
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return txsync.Transaction{}, false, err
	}

	return data.toDomain(), true, nil
}

// SaveTransactions writes the given rows and maintains the per-chain
// indexes, all in one pipeline round trip.
func (c *client) SaveTransactions(ctx context.Context, txs []txsync.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	pipe := c.conn.Pipeline()
	for _, tx := range txs {
		payload, err := json.Marshal(encodeTransaction(tx))
		if err != nil {
			return err
		}

		pipe.Set(ctx, transactionKey(tx.ChainID, tx.Hash), payload, 0)
		pipe.SAdd(ctx, transactionIndexKey(tx.ChainID), tx.Hash)
		pipe.SAdd(ctx, chainSetKey, tx.ChainID)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// DeleteTransactions removes the given rows and their index entries.
func (c *client) DeleteTransactions(ctx context.Context, keys []txsync.Key) error {
	if len(keys) == 0 {
		return nil
	}

	pipe := c.conn.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, transactionKey(key.ChainID, key.Hash))
		pipe.SRem(ctx, transactionIndexKey(key.ChainID), key.Hash)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// ListTransactions returns every stored row for the given chains, or for
// every known chain when none is given. Index entries whose row vanished
// in between are skipped.
func (c *client) ListTransactions(ctx context.Context, chainIDs ...string) ([]txsync.Transaction, error) {
	if len(chainIDs) == 0 {
		known, err := c.conn.SMembers(ctx, chainSetKey).Result()
		if err != nil {
			return nil, err
		}
		chainIDs = known
	}

	var out []txsync.Transaction
	for _, chainID := range chainIDs {
		hashes, err := c.conn.SMembers(ctx, transactionIndexKey(chainID)).Result()
		if err != nil {
			return nil, err
		}
		if len(hashes) == 0 {
			continue
		}

		keys := make([]string, len(hashes))
		for i, hash := range hashes {
			keys[i] = transactionKey(chainID, hash)
		}

		vals, err := c.conn.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}

		for _, val := range vals {
			raw, ok := val.(string)
			if !ok {
				continue
			}

			var data transactionData
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				return nil, err
			}
			out = append(out, data.toDomain())
		}
	}

	return out, nil
}

// Compile-time assertion that the client implements the transaction
// storage port.
var _ txstore.Storage = new(client)
