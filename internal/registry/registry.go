// Package registry is the stake ledger of the court. It tracks every juror's
// balances and is the only writer of the sum tree leaves the draft searches
// over. Changes to active balances always take effect from the next term so a
// draft running in the current term never sees them.
package registry

import (
	"sort"
	"strconv"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/config"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/safemath"
	"github.com/eigerco/tribunal/internal/sumtree"
	"github.com/eigerco/tribunal/pkg/log"
)

// TermSource tells the registry which term it is in
type TermSource interface {
	CurrentTerm() common.TermID
}

// ConfigSource returns the court config in force at a term
type ConfigSource interface {
	At(term common.TermID) config.CourtConfig
}

// Balance is a snapshot of a juror account.
type Balance struct {
	// Staked is Active + Available + PendingDeactivation.
	Staked    uint64 `json:"staked"`
	Active    uint64 `json:"active"`
	Available uint64 `json:"available"`
	// Locked is the part of Active at risk in open rounds.
	Locked              uint64        `json:"locked"`
	PendingDeactivation uint64        `json:"pendingDeactivation"`
	DeactivationTerm    common.TermID `json:"deactivationTerm"`
	WithdrawalsLockTerm common.TermID `json:"withdrawalsLockTerm"`
}

type juror struct {
	key                 uint64
	hasLeaf             bool
	active              uint64
	available           uint64
	locked              uint64
	pendingDeactivation uint64
	deactivationTerm    common.TermID
	withdrawalsLockTerm common.TermID
}

// Registry is not safe for concurrent use.
type Registry struct {
	terms   TermSource
	configs ConfigSource
	sink    events.Sink

	tree        *sumtree.Tree
	jurors      map[common.Address]*juror
	leafOwners  []common.Address
	totalLocked uint64
	collected   uint64
}

func New(terms TermSource, configs ConfigSource, sink events.Sink) *Registry {
	if sink == nil {
		sink = events.Discard
	}
	return &Registry{
		terms:   terms,
		configs: configs,
		sink:    sink,
		tree:    sumtree.New(),
		jurors:  make(map[common.Address]*juror),
	}
}

func (r *Registry) minActiveBalance() uint64 {
	return r.configs.At(r.terms.CurrentTerm()).MinActiveBalance
}

func (r *Registry) emit(kind events.Kind, who common.Address, amount uint64, data map[string]string) {
	r.sink.Emit(events.Event{
		Kind:        kind,
		Term:        r.terms.CurrentTerm(),
		Participant: who,
		Amount:      amount,
		Data:        data,
	})
}

func (r *Registry) account(addr common.Address) *juror {
	j, ok := r.jurors[addr]
	if !ok {
		j = &juror{}
		r.jurors[addr] = j
	}
	return j
}

// effectiveDeactivation returns the part of a deactivation request that has
// already taken effect and only waits to be folded into available.
func (r *Registry) effectiveDeactivation(j *juror) uint64 {
	if j.pendingDeactivation == 0 || r.terms.CurrentTerm() < j.deactivationTerm {
		return 0
	}
	return j.pendingDeactivation
}

// processDeactivation folds a deactivation request whose term has come into
// the available balance. Callers run it only once all their checks passed.
func (r *Registry) processDeactivation(addr common.Address, j *juror) {
	amount := r.effectiveDeactivation(j)
	if amount == 0 {
		return
	}
	j.available += amount
	j.pendingDeactivation = 0
	j.deactivationTerm = 0
	r.emit(events.KindJurorDeactivationDone, addr, amount, nil)
}

// Stake credits amount to the juror's available balance.
func (r *Registry) Stake(addr common.Address, amount uint64) error {
	if addr.IsZero() {
		return ErrInvalidJuror
	}
	if amount == 0 {
		return ErrInvalidZeroAmount
	}
	j := r.account(addr)
	available, err := safemath.AddE(j.available, amount)
	if err != nil {
		return err
	}
	j.available = available
	r.emit(events.KindJurorStaked, addr, amount, nil)
	return nil
}

// Unstake withdraws amount from the juror's available balance.
func (r *Registry) Unstake(addr common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidZeroAmount
	}
	j, ok := r.jurors[addr]
	if !ok {
		return ErrJurorNotFound
	}
	if r.terms.CurrentTerm() < j.withdrawalsLockTerm {
		return ErrWithdrawalsLocked
	}
	if j.available+r.effectiveDeactivation(j) < amount {
		return ErrNotEnoughAvailable
	}
	r.processDeactivation(addr, j)
	j.available -= amount
	r.emit(events.KindJurorUnstaked, addr, amount, nil)
	return nil
}

// Activate moves amount into the juror's active balance from the next term
// on. A deactivation that has not taken effect yet is consumed before the
// available balance. Zero activates everything the juror can.
func (r *Registry) Activate(addr common.Address, amount uint64) error {
	j, ok := r.jurors[addr]
	if !ok {
		return ErrJurorNotFound
	}

	reachable, err := safemath.AddE(j.available, j.pendingDeactivation)
	if err != nil {
		return err
	}
	if amount == 0 {
		amount = reachable
	}
	if amount == 0 {
		return ErrInvalidZeroAmount
	}
	if amount > reachable {
		return ErrNotEnoughAvailable
	}
	newActive, err := safemath.AddE(j.active, amount)
	if err != nil {
		return err
	}
	if newActive < r.minActiveBalance() {
		return ErrActiveBelowMinimum
	}

	next := uint64(r.terms.CurrentTerm().Next())
	if j.hasLeaf {
		err = r.tree.Update(j.key, next, amount, true)
	} else {
		var key uint64
		key, err = r.tree.Insert(next, amount)
		if err == nil {
			j.key, j.hasLeaf = key, true
			r.leafOwners = append(r.leafOwners, addr)
		}
	}
	if err != nil {
		return err
	}

	r.processDeactivation(addr, j)
	fromPending := min(amount, j.pendingDeactivation)
	j.pendingDeactivation -= fromPending
	if j.pendingDeactivation == 0 {
		j.deactivationTerm = 0
	}
	j.available -= amount - fromPending
	j.active = newActive

	r.emit(events.KindJurorActivated, addr, amount, map[string]string{
		"fromTerm": strconv.FormatUint(next, 10),
	})
	return nil
}

// StakeAndActivate stakes amount and activates it right away.
func (r *Registry) StakeAndActivate(addr common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidZeroAmount
	}
	if addr.IsZero() {
		return ErrInvalidJuror
	}
	j, ok := r.jurors[addr]
	if ok {
		if _, err := safemath.AddE(j.available, amount); err != nil {
			return err
		}
		newActive, err := safemath.AddE(j.active, amount)
		if err != nil {
			return err
		}
		if newActive < r.minActiveBalance() {
			return ErrActiveBelowMinimum
		}
	} else if amount < r.minActiveBalance() {
		return ErrActiveBelowMinimum
	}
	if err := r.Stake(addr, amount); err != nil {
		return err
	}
	return r.Activate(addr, amount)
}

// Deactivate schedules amount of the unlocked active balance to become
// available from the next term. Zero deactivates all of it.
func (r *Registry) Deactivate(addr common.Address, amount uint64) error {
	j, ok := r.jurors[addr]
	if !ok {
		return ErrJurorNotFound
	}

	unlocked := j.active - j.locked
	if amount == 0 {
		amount = unlocked
	}
	if amount == 0 {
		return ErrInvalidZeroAmount
	}
	if amount > unlocked {
		return ErrDeactivationExceeds
	}
	newActive := j.active - amount
	if newActive != 0 && newActive < r.minActiveBalance() {
		return ErrActiveBelowMinimum
	}
	next := r.terms.CurrentTerm().Next()
	if err := r.tree.Update(j.key, uint64(next), amount, false); err != nil {
		return err
	}
	r.processDeactivation(addr, j)
	j.active = newActive
	j.pendingDeactivation += amount
	j.deactivationTerm = next

	r.emit(events.KindJurorDeactivationRequest, addr, amount, map[string]string{
		"availableTerm": strconv.FormatUint(uint64(next), 10),
	})
	return nil
}

// ProcessDeactivation folds an effective deactivation request into the
// available balance. Every other operation on the juror does it implicitly.
func (r *Registry) ProcessDeactivation(addr common.Address) error {
	j, ok := r.jurors[addr]
	if !ok {
		return ErrJurorNotFound
	}
	r.processDeactivation(addr, j)
	return nil
}

// Lock reserves amount of the juror's active balance.
func (r *Registry) Lock(addr common.Address, amount uint64) error {
	j, ok := r.jurors[addr]
	if !ok {
		return ErrJurorNotFound
	}
	if amount > j.active-j.locked {
		return ErrNotEnoughActive
	}
	r.lock(addr, j, amount)
	return nil
}

func (r *Registry) lock(addr common.Address, j *juror, amount uint64) {
	j.locked += amount
	r.totalLocked += amount
	r.emit(events.KindJurorLocked, addr, amount, nil)
}

// Unlock releases amount of the juror's locked balance.
func (r *Registry) Unlock(addr common.Address, amount uint64) error {
	j, ok := r.jurors[addr]
	if !ok {
		return ErrJurorNotFound
	}
	if j.locked < amount {
		return ErrNotEnoughLocked
	}
	r.unlock(addr, j, amount)
	return nil
}

func (r *Registry) unlock(addr common.Address, j *juror, amount uint64) {
	j.locked -= amount
	r.totalLocked -= amount
	r.emit(events.KindJurorUnlocked, addr, amount, nil)
}

// SlashOrUnlock releases the locks of a batch of jurors and slashes the
// incoherent ones by their lock. It returns the amount slashed, which is
// added to the collected pool.
func (r *Registry) SlashOrUnlock(jurors []common.Address, penalties []uint64, coherent []bool) (uint64, error) {
	if len(jurors) != len(penalties) || len(jurors) != len(coherent) {
		return 0, ErrSlashArgumentsMismatch
	}
	need := make(map[common.Address]uint64, len(jurors))
	var collected uint64
	for i, addr := range jurors {
		j, ok := r.jurors[addr]
		if !ok {
			return 0, ErrJurorNotFound
		}
		total, err := safemath.AddE(need[addr], penalties[i])
		if err != nil {
			return 0, err
		}
		if j.locked < total {
			return 0, ErrNotEnoughLocked
		}
		need[addr] = total
		if !coherent[i] {
			if collected, err = safemath.AddE(collected, penalties[i]); err != nil {
				return 0, err
			}
		}
	}
	if _, err := safemath.AddE(r.collected, collected); err != nil {
		return 0, err
	}

	next := uint64(r.terms.CurrentTerm().Next())
	for i, addr := range jurors {
		j := r.jurors[addr]
		r.unlock(addr, j, penalties[i])
		if coherent[i] || penalties[i] == 0 {
			continue
		}
		// locked <= active, so the leaf holds at least the penalty
		if err := r.tree.Update(j.key, next, penalties[i], false); err != nil {
			return 0, err
		}
		j.active -= penalties[i]
		r.collected += penalties[i]
		r.emit(events.KindJurorSlashed, addr, penalties[i], nil)
	}
	return collected, nil
}

// CollectTokens takes amount from the juror's unlocked active balance into
// the collected pool. It reports false, changing nothing, when the juror
// cannot cover it.
func (r *Registry) CollectTokens(addr common.Address, amount uint64) (bool, error) {
	j, ok := r.jurors[addr]
	if !ok {
		return false, nil
	}
	if amount == 0 {
		return true, nil
	}
	if j.active-j.locked < amount {
		return false, nil
	}
	if _, err := safemath.AddE(r.collected, amount); err != nil {
		return false, err
	}
	if err := r.tree.Update(j.key, uint64(r.terms.CurrentTerm().Next()), amount, false); err != nil {
		return false, err
	}
	r.processDeactivation(addr, j)
	j.active -= amount
	r.collected += amount
	r.emit(events.KindJurorTokensCollected, addr, amount, nil)
	return true, nil
}

// AssignTokens pays amount from the collected pool into the juror's available balance.
func (r *Registry) AssignTokens(addr common.Address, amount uint64) error {
	if addr.IsZero() {
		return ErrInvalidJuror
	}
	if amount == 0 {
		return nil
	}
	if r.collected < amount {
		return ErrNotEnoughCollected
	}
	j := r.account(addr)
	available, err := safemath.AddE(j.available, amount)
	if err != nil {
		return err
	}
	j.available = available
	r.collected -= amount
	kind := events.KindJurorRewarded
	if addr == common.BurnAddress {
		kind = events.KindTokensBurned
	}
	r.emit(kind, addr, amount, nil)
	return nil
}

// BurnTokens sends amount from the collected pool to the burn address.
func (r *Registry) BurnTokens(amount uint64) error {
	return r.AssignTokens(common.BurnAddress, amount)
}

// LockWithdrawals forbids the juror to unstake before untilTerm.
func (r *Registry) LockWithdrawals(addr common.Address, untilTerm common.TermID) error {
	j, ok := r.jurors[addr]
	if !ok {
		return ErrJurorNotFound
	}
	if untilTerm <= j.withdrawalsLockTerm {
		return nil
	}
	j.withdrawalsLockTerm = untilTerm
	r.emit(events.KindWithdrawalsLocked, addr, 0, map[string]string{
		"untilTerm": strconv.FormatUint(uint64(untilTerm), 10),
	})
	return nil
}

// BalanceOf returns the juror balances as seen in the current term. An
// effective deactivation request already shows as available.
func (r *Registry) BalanceOf(addr common.Address) Balance {
	j, ok := r.jurors[addr]
	if !ok {
		return Balance{}
	}
	b := Balance{
		Active:              j.active,
		Available:           j.available,
		Locked:              j.locked,
		PendingDeactivation: j.pendingDeactivation,
		DeactivationTerm:    j.deactivationTerm,
		WithdrawalsLockTerm: j.withdrawalsLockTerm,
	}
	if b.PendingDeactivation > 0 && r.terms.CurrentTerm() >= b.DeactivationTerm {
		b.Available += b.PendingDeactivation
		b.PendingDeactivation = 0
		b.DeactivationTerm = 0
	}
	b.Staked = b.Active + b.Available + b.PendingDeactivation
	return b
}

// ActiveBalanceAt returns the weight the juror had in the tree at term
func (r *Registry) ActiveBalanceAt(addr common.Address, term common.TermID) uint64 {
	j, ok := r.jurors[addr]
	if !ok || !j.hasLeaf {
		return 0
	}
	return r.tree.ItemAt(j.key, uint64(term))
}

// TotalActiveBalanceAt returns the tree total at term
func (r *Registry) TotalActiveBalanceAt(term common.TermID) uint64 {
	return r.tree.TotalAt(uint64(term))
}

// TotalLocked returns the sum of every juror lock
func (r *Registry) TotalLocked() uint64 {
	return r.totalLocked
}

// TotalActive returns the sum of every juror latest active balance
func (r *Registry) TotalActive() uint64 {
	return r.tree.Total()
}

// CollectedPool returns the slashed tokens not yet rewarded or burned
func (r *Registry) CollectedPool() uint64 {
	return r.collected
}

// Burned returns the tokens sent to the burn address
func (r *Registry) Burned() uint64 {
	if j, ok := r.jurors[common.BurnAddress]; ok {
		return j.available
	}
	return 0
}

// Jurors lists every known account, sorted.
func (r *Registry) Jurors() []common.Address {
	out := make([]common.Address, 0, len(r.jurors))
	for addr := range r.jurors {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, k int) bool { return out[i] < out[k] })
	return out
}

func (r *Registry) logDraft(params DraftParams, res DraftResult) {
	log.Registry.Debug().
		Uint64("dispute", params.DisputeID).
		Uint64("term", uint64(params.Term)).
		Int("drafted", len(res.Jurors)).
		Uint64("iterations", res.Iterations).
		Msg("draft batch")
}
