package txsync

// TransferBlockRange computes the inclusive block range covered by a
// token-transfer batch. ok is false for an empty batch, in which case
// backfill must be skipped entirely.
func TransferBlockRange(transfers []Transaction) (minBlock, maxBlock uint64, ok bool) {
	if len(transfers) == 0 {
		return 0, 0, false
	}

	minBlock, maxBlock = transfers[0].BlockNumber, transfers[0].BlockNumber
	for _, transfer := range transfers[1:] {
		if transfer.BlockNumber < minBlock {
			minBlock = transfer.BlockNumber
		}
		if transfer.BlockNumber > maxBlock {
			maxBlock = transfer.BlockNumber
		}
	}
	return minBlock, maxBlock, true
}

// MergeBackfill reconciles a token-transfer batch with the normal
// transactions fetched over its block range. Each transfer's operations
// are appended onto the normal transaction sharing its hash; transfers
// with no parent in the batch are kept standalone. Duplicate operations
// for the same (hash, log index) collapse to one, so merging the same
// batches again produces no duplicates.
//
// It returns the merged sequence plus the maximum block number observed
// across both batches, which callers use as the next pagination
// watermark. An empty transfer batch yields the normals untouched.
func MergeBackfill(transfers, normals []Transaction) ([]Transaction, uint64) {
	var maxBlock uint64

	merged := make([]Transaction, 0, len(normals)+len(transfers))
	indexByHash := make(map[string]int, len(normals))

	for _, normal := range normals {
		if normal.BlockNumber > maxBlock {
			maxBlock = normal.BlockNumber
		}

		indexByHash[normal.Hash] = len(merged)
		merged = append(merged, normal)
	}

	for _, transfer := range transfers {
		if transfer.BlockNumber > maxBlock {
			maxBlock = transfer.BlockNumber
		}

		i, ok := indexByHash[transfer.Hash]
		if !ok {
			// No parent transaction in range (e.g. still pending on the
			// provider side): the transfer stands on its own. A later
			// cycle that returns the parent merges into it at the store.
			indexByHash[transfer.Hash] = len(merged)
			merged = append(merged, transfer)
			continue
		}

		merged[i] = merged[i].Merge(transfer)
	}

	return merged, maxBlock
}
