// Package treasury holds the fee balances of court participants. The court
// takes deposits into escrow and assigns them back out; it never keeps value
// beyond a single call.
package treasury

import (
	"errors"
	"sync"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/safemath"
)

var (
	ErrInsufficientBalance = errors.New("treasury: insufficient balance")
	ErrInsufficientEscrow  = errors.New("treasury: insufficient escrow")
	ErrInvalidZeroAmount   = errors.New("treasury: invalid zero amount")
)

// Memory is an in-memory fee ledger.
type Memory struct {
	mu       sync.RWMutex
	balances map[common.Address]uint64
	escrow   uint64
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[common.Address]uint64)}
}

// Fund credits amount from outside the court.
func (m *Memory) Fund(to common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidZeroAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := safemath.AddE(m.balances[to], amount)
	if err != nil {
		return err
	}
	m.balances[to] = b
	return nil
}

// Withdraw debits amount to outside the court.
func (m *Memory) Withdraw(from common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidZeroAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return ErrInsufficientBalance
	}
	m.balances[from] -= amount
	return nil
}

// Deposit moves amount from the participant into escrow.
func (m *Memory) Deposit(from common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return ErrInsufficientBalance
	}
	escrow, err := safemath.AddE(m.escrow, amount)
	if err != nil {
		return err
	}
	m.balances[from] -= amount
	m.escrow = escrow
	return nil
}

// Assign moves amount out of escrow to the participant.
func (m *Memory) Assign(to common.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.escrow < amount {
		return ErrInsufficientEscrow
	}
	b, err := safemath.AddE(m.balances[to], amount)
	if err != nil {
		return err
	}
	m.escrow -= amount
	m.balances[to] = b
	return nil
}

func (m *Memory) BalanceOf(addr common.Address) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[addr]
}

// Escrow returns what the court currently holds
func (m *Memory) Escrow() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.escrow
}
