package court

import (
	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/internal/registry"
)

// Juror balances change through the caller's own account only.

func (c *Court) withTerm(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.clock.EnsureCurrentTerm(); err != nil {
		return err
	}
	return fn()
}

func (c *Court) Stake(caller governance.Caller, amount uint64) error {
	return c.withTerm(func() error { return c.registry.Stake(caller.Address, amount) })
}

func (c *Court) Unstake(caller governance.Caller, amount uint64) error {
	return c.withTerm(func() error { return c.registry.Unstake(caller.Address, amount) })
}

func (c *Court) Activate(caller governance.Caller, amount uint64) error {
	return c.withTerm(func() error { return c.registry.Activate(caller.Address, amount) })
}

func (c *Court) StakeAndActivate(caller governance.Caller, amount uint64) error {
	return c.withTerm(func() error { return c.registry.StakeAndActivate(caller.Address, amount) })
}

func (c *Court) Deactivate(caller governance.Caller, amount uint64) error {
	return c.withTerm(func() error { return c.registry.Deactivate(caller.Address, amount) })
}

// ProcessDeactivation folds an effective deactivation of any juror.
func (c *Court) ProcessDeactivation(juror common.Address) error {
	return c.withTerm(func() error { return c.registry.ProcessDeactivation(juror) })
}

func (c *Court) JurorBalance(juror common.Address) registry.Balance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.BalanceOf(juror)
}

func (c *Court) ActiveBalanceAt(juror common.Address, term common.TermID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.ActiveBalanceAt(juror, term)
}

func (c *Court) TotalActiveBalanceAt(term common.TermID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.TotalActiveBalanceAt(term)
}

// Jurors lists every known juror address
func (c *Court) Jurors() []common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Jurors()
}

// Supply summarizes the juror token accounting.
type Supply struct {
	Active    uint64 `json:"active"`
	Locked    uint64 `json:"locked"`
	Collected uint64 `json:"collected"`
	Burned    uint64 `json:"burned"`
}

func (c *Court) Supply() Supply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Supply{
		Active:    c.registry.TotalActive(),
		Locked:    c.registry.TotalLocked(),
		Collected: c.registry.CollectedPool(),
		Burned:    c.registry.Burned(),
	}
}
