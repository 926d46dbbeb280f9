package syncfleet

import (
	"slices"

	"github.com/gabapcia/walletsync/internal/pkg/types"
)

// Reconcile diffs the currently running chain set against the desired one
// and returns which chains to start, which to keep running, and which to
// stop. It is a pure function: the caller applies the plan under its own
// writer lock. Results are sorted for deterministic application order.
func Reconcile(existing, active []string) (toStart, toKeep, toStop []string) {
	current := types.NewSet(existing...)
	desired := types.NewSet(active...)

	for chainID := range desired.ToIter() {
		if current.Contains(chainID) {
			toKeep = append(toKeep, chainID)
		} else {
			toStart = append(toStart, chainID)
		}
	}

	for chainID := range current.ToIter() {
		if !desired.Contains(chainID) {
			toStop = append(toStop, chainID)
		}
	}

	slices.Sort(toStart)
	slices.Sort(toKeep)
	slices.Sort(toStop)
	return toStart, toKeep, toStop
}
