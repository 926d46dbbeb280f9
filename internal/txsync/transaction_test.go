package txsync

import (
	"testing"
	"time"

	"github.com/gabapcia/walletsync/internal/explorer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_Merge(t *testing.T) {
	t.Run("unions operations by log index", func(t *testing.T) {
		existing := Transaction{
			Hash:    "0xabc",
			ChainID: "ethereum",
			Operations: []Operation{
				{Contract: "0xtoken", LogIndex: 1, Amount: "10"},
			},
		}
		incoming := Transaction{
			Hash:    "0xabc",
			ChainID: "ethereum",
			Operations: []Operation{
				{Contract: "0xtoken", LogIndex: 1, Amount: "10"},
				{Contract: "0xtoken", LogIndex: 2, Amount: "20"},
			},
		}

		merged := existing.Merge(incoming)

		require.Len(t, merged.Operations, 2)
		assert.Equal(t, uint32(1), merged.Operations[0].LogIndex)
		assert.Equal(t, uint32(2), merged.Operations[1].LogIndex)
	})

	t.Run("merging the same input twice changes nothing", func(t *testing.T) {
		existing := Transaction{Hash: "0xabc", Operations: []Operation{{LogIndex: 3}}}
		incoming := Transaction{Hash: "0xabc", Operations: []Operation{{LogIndex: 3}, {LogIndex: 4}}}

		once := existing.Merge(incoming)
		twice := once.Merge(incoming)

		assert.Equal(t, once, twice)
	})

	t.Run("pending upgrades to confirmed", func(t *testing.T) {
		existing := Transaction{Hash: "0xabc", Status: StatusPending}
		incoming := Transaction{Hash: "0xabc", Status: StatusConfirmed}

		assert.Equal(t, StatusConfirmed, existing.Merge(incoming).Status)
	})

	t.Run("confirmed never downgrades to pending", func(t *testing.T) {
		existing := Transaction{Hash: "0xabc", Status: StatusConfirmed}
		incoming := Transaction{Hash: "0xabc", Status: StatusPending}

		assert.Equal(t, StatusConfirmed, existing.Merge(incoming).Status)
	})

	t.Run("a later correction to failed is honored", func(t *testing.T) {
		existing := Transaction{Hash: "0xabc", Status: StatusConfirmed}
		incoming := Transaction{Hash: "0xabc", Status: StatusFailed}

		assert.Equal(t, StatusFailed, existing.Merge(incoming).Status)
	})

	t.Run("fills fields the optimistic copy lacked", func(t *testing.T) {
		now := time.Unix(1700000000, 0).UTC()

		existing := Transaction{Hash: "0xabc", Status: StatusPending}
		incoming := Transaction{
			Hash:        "0xabc",
			Status:      StatusConfirmed,
			BlockNumber: 105,
			Timestamp:   now,
			GasUsed:     21000,
			Type:        TypeTransfer,
		}

		merged := existing.Merge(incoming)

		assert.Equal(t, uint64(105), merged.BlockNumber)
		assert.Equal(t, now, merged.Timestamp)
		assert.Equal(t, uint64(21000), merged.GasUsed)
		assert.Equal(t, TypeTransfer, merged.Type)
	})
}

func TestNewSession(t *testing.T) {
	t.Run("builds a valid session", func(t *testing.T) {
		session, err := NewSession("ethereum", "0xwallet", "https://rpc.example")

		require.NoError(t, err)
		assert.Equal(t, "ethereum", session.ChainID)
		assert.Equal(t, "0xwallet", session.Wallet)
	})

	t.Run("requires a chain id", func(t *testing.T) {
		_, err := NewSession("", "0xwallet", "")

		assert.Error(t, err)
	})

	t.Run("requires a wallet address", func(t *testing.T) {
		_, err := NewSession("ethereum", "", "")

		assert.Error(t, err)
	})
}

func TestCollectDetectedContracts(t *testing.T) {
	t.Run("deduplicates contracts across transactions", func(t *testing.T) {
		txs := []Transaction{
			{Operations: []Operation{
				{Contract: "0xAAA", Kind: explorer.TokenKindERC20, LogIndex: 0},
				{Contract: "0xBBB", Kind: explorer.TokenKindERC721, LogIndex: 1},
			}},
			{Operations: []Operation{
				{Contract: "0xaaa", Kind: explorer.TokenKindERC20, LogIndex: 0},
			}},
		}

		contracts := collectDetectedContracts(txs)

		assert.ElementsMatch(t, []DetectedContract{
			{Address: "0xaaa", Kind: explorer.TokenKindERC20},
			{Address: "0xbbb", Kind: explorer.TokenKindERC721},
		}, contracts)
	})

	t.Run("ignores operations without a contract", func(t *testing.T) {
		txs := []Transaction{{Operations: []Operation{{Contract: ""}}}}

		assert.Empty(t, collectDetectedContracts(txs))
	})
}
