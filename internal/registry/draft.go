package registry

import (
	"slices"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/safemath"
)

// DraftParams describe one draft batch of a round.
type DraftParams struct {
	DisputeID uint64
	// Term whose weights are searched. Jurors are locked in the current term.
	Term       common.TermID
	Randomness crypto.Hash
	// SelectedJurors drafted by earlier batches of the round.
	SelectedJurors uint64
	BatchRequested uint64
	// RoundRequestedJurors is the round target.
	RoundRequestedJurors uint64
	LockPerDraw          uint64
	// Iteration to resume the search from.
	Iteration uint64
}

// DraftResult lists the drafted jurors, one entry per draw, in draw order.
type DraftResult struct {
	Jurors     []common.Address
	Iterations uint64
}

// Draft selects up to BatchRequested jurors with probability proportional to
// their active balance at Term and locks LockPerDraw for each draw. Jurors
// that cannot cover another lock are skipped. At most common.MaxDraftIterations
// searches are run, so fewer jurors than requested may be returned.
//
// A batch searches the slice of the cumulative weight range that matches its
// share of the round, so consecutive batches of a round cover the whole range.
func (r *Registry) Draft(params DraftParams) (DraftResult, error) {
	if params.BatchRequested == 0 || params.RoundRequestedJurors == 0 ||
		params.SelectedJurors+params.BatchRequested > params.RoundRequestedJurors {
		return DraftResult{}, ErrBadDraftParams
	}
	total := r.tree.TotalAt(uint64(params.Term))
	if total == 0 {
		return DraftResult{}, ErrNoActiveJurors
	}

	low, high, err := batchBounds(total, params.SelectedJurors, params.BatchRequested, params.RoundRequestedJurors)
	if err != nil {
		return DraftResult{}, err
	}

	var (
		res     DraftResult
		pending = make(map[common.Address]uint64)
	)
	for res.Iterations < common.MaxDraftIterations && uint64(len(res.Jurors)) < params.BatchRequested {
		iteration := params.Iteration + res.Iterations
		res.Iterations++

		remaining := params.BatchRequested - uint64(len(res.Jurors))
		values := searchValues(low, high, remaining, params.Randomness, params.DisputeID, iteration)
		items, err := r.tree.Search(values, uint64(params.Term))
		if err != nil {
			return DraftResult{}, err
		}
		for _, item := range items {
			addr := r.leafOwners[item.Key]
			if !r.canLock(addr, params.Term, pending[addr]+params.LockPerDraw) {
				continue
			}
			pending[addr] += params.LockPerDraw
			res.Jurors = append(res.Jurors, addr)
			if uint64(len(res.Jurors)) == params.BatchRequested {
				break
			}
		}
	}

	for _, addr := range sortedKeys(pending) {
		if pending[addr] > 0 {
			r.lock(addr, r.jurors[addr], pending[addr])
		}
	}
	r.logDraft(params, res)
	return res, nil
}

// canLock reports whether the juror can take extra on top of its current
// lock. Weight scheduled to leave the tree next term does not count.
func (r *Registry) canLock(addr common.Address, term common.TermID, extra uint64) bool {
	j := r.jurors[addr]
	lockable := min(r.tree.ItemAt(j.key, uint64(term)), j.active)
	need, ok := safemath.Add64(j.locked, extra)
	return ok && lockable >= need
}

// batchBounds returns the part [low, high) of the cumulative weight range
// [0, total) that belongs to draws selected..selected+count of a round of
// target draws.
func batchBounds(total, selected, count, target uint64) (uint64, uint64, error) {
	low, err := safemath.MulDiv(selected, total, target)
	if err != nil {
		return 0, 0, err
	}
	high, err := safemath.MulDiv(selected+count, total, target)
	if err != nil {
		return 0, 0, err
	}
	return low, high, nil
}

// searchValues draws count sorted values in [low, high).
func searchValues(low, high, count uint64, randomness crypto.Hash, disputeID, iteration uint64) []uint64 {
	interval := high - low
	values := make([]uint64, count)
	for i := range values {
		v := low
		if interval > 0 {
			v += crypto.DraftSeed(randomness, disputeID, iteration, uint64(i)).Uint64() % interval
		}
		values[i] = v
	}
	slices.Sort(values)
	return values
}

func sortedKeys(m map[common.Address]uint64) []common.Address {
	keys := make([]common.Address, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
