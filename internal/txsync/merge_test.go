package txsync

import (
	"testing"

	"github.com/gabapcia/walletsync/internal/explorer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferAt(block uint64, hash string, logIndex uint32) Transaction {
	return Transaction{
		Hash:        hash,
		ChainID:     "ethereum",
		Type:        TypeTokenOperation,
		BlockNumber: block,
		Status:      StatusConfirmed,
		Operations: []Operation{{
			Contract: "0xtoken",
			Kind:     explorer.TokenKindERC20,
			Amount:   "1",
			LogIndex: logIndex,
		}},
	}
}

func normalAt(block uint64, hash string) Transaction {
	return Transaction{
		Hash:        hash,
		ChainID:     "ethereum",
		Type:        TypeContractCall,
		BlockNumber: block,
		Status:      StatusConfirmed,
	}
}

func TestTransferBlockRange(t *testing.T) {
	t.Run("empty batch skips backfill", func(t *testing.T) {
		_, _, ok := TransferBlockRange(nil)

		assert.False(t, ok)
	})

	t.Run("range contains every transfer's block number", func(t *testing.T) {
		transfers := []Transaction{
			transferAt(105, "0xa", 0),
			transferAt(100, "0xb", 0),
			transferAt(110, "0xc", 0),
		}

		minBlock, maxBlock, ok := TransferBlockRange(transfers)

		require.True(t, ok)
		assert.Equal(t, uint64(100), minBlock)
		assert.Equal(t, uint64(110), maxBlock)
		for _, transfer := range transfers {
			assert.GreaterOrEqual(t, transfer.BlockNumber, minBlock)
			assert.LessOrEqual(t, transfer.BlockNumber, maxBlock)
		}
	})

	t.Run("single transfer collapses the range to one block", func(t *testing.T) {
		minBlock, maxBlock, ok := TransferBlockRange([]Transaction{transferAt(42, "0xa", 0)})

		require.True(t, ok)
		assert.Equal(t, uint64(42), minBlock)
		assert.Equal(t, uint64(42), maxBlock)
	})
}

func TestMergeBackfill(t *testing.T) {
	t.Run("attaches transfers onto their parent transactions", func(t *testing.T) {
		// Transfers at blocks 100, 105, 110; normals cover 100..110 and
		// include an unrelated transaction at 107.
		transfers := []Transaction{
			transferAt(100, "0x100", 0),
			transferAt(105, "0x105", 1),
			transferAt(110, "0x110", 2),
		}
		normals := []Transaction{
			normalAt(100, "0x100"),
			normalAt(105, "0x105"),
			normalAt(110, "0x110"),
			normalAt(107, "0x107"),
		}

		merged, maxBlock := MergeBackfill(transfers, normals)

		require.Len(t, merged, 4)
		assert.Equal(t, uint64(110), maxBlock)

		byHash := make(map[string]Transaction, len(merged))
		for _, tx := range merged {
			byHash[tx.Hash] = tx
		}

		withOperations := 0
		for _, hash := range []string{"0x100", "0x105", "0x110"} {
			require.Len(t, byHash[hash].Operations, 1, "hash %s", hash)
			withOperations++
		}
		assert.Equal(t, 3, withOperations)
		assert.Empty(t, byHash["0x107"].Operations, "107 has no transfer and stays standalone")
	})

	t.Run("a transfer without a parent is kept standalone", func(t *testing.T) {
		transfers := []Transaction{transferAt(100, "0xorphan", 0)}
		normals := []Transaction{normalAt(100, "0xother")}

		merged, _ := MergeBackfill(transfers, normals)

		require.Len(t, merged, 2)

		byHash := make(map[string]Transaction, len(merged))
		for _, tx := range merged {
			byHash[tx.Hash] = tx
		}
		require.Contains(t, byHash, "0xorphan")
		assert.Len(t, byHash["0xorphan"].Operations, 1)
	})

	t.Run("merging is idempotent for duplicate operations", func(t *testing.T) {
		// The same (hash, log index) arrives twice across the batches.
		transfers := []Transaction{
			transferAt(100, "0x100", 0),
			transferAt(100, "0x100", 0),
		}
		normals := []Transaction{normalAt(100, "0x100")}

		merged, _ := MergeBackfill(transfers, normals)

		require.Len(t, merged, 1)
		assert.Len(t, merged[0].Operations, 1)
	})

	t.Run("merging an already merged output again produces no duplicates", func(t *testing.T) {
		transfers := []Transaction{transferAt(100, "0x100", 0)}
		normals := []Transaction{normalAt(100, "0x100")}

		once, _ := MergeBackfill(transfers, normals)
		twice, _ := MergeBackfill(transfers, once)

		require.Len(t, twice, 1)
		assert.Len(t, twice[0].Operations, 1)
	})

	t.Run("empty transfer batch returns normals untouched", func(t *testing.T) {
		normals := []Transaction{normalAt(100, "0x100")}

		merged, maxBlock := MergeBackfill(nil, normals)

		assert.Equal(t, normals, merged)
		assert.Equal(t, uint64(100), maxBlock)
	})

	t.Run("different log indexes on one transaction accumulate", func(t *testing.T) {
		transfers := []Transaction{
			transferAt(100, "0x100", 0),
			transferAt(100, "0x100", 1),
		}
		normals := []Transaction{normalAt(100, "0x100")}

		merged, _ := MergeBackfill(transfers, normals)

		require.Len(t, merged, 1)
		assert.Len(t, merged[0].Operations, 2)
	})
}
