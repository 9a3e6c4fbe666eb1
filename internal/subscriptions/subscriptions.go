// Package subscriptions gates dispute creation on subjects having paid for
// the current term.
package subscriptions

import (
	"sync"

	"github.com/eigerco/tribunal/internal/common"
)

type TermSource interface {
	CurrentTerm() common.TermID
}

// Memory records until which term each subject has paid.
type Memory struct {
	mu        sync.RWMutex
	terms     TermSource
	paidUntil map[common.Address]common.TermID
}

func NewMemory(terms TermSource) *Memory {
	return &Memory{terms: terms, paidUntil: make(map[common.Address]common.TermID)}
}

// PayUntil marks the subject as paid up to and including term. It never
// shortens an existing subscription.
func (m *Memory) PayUntil(subject common.Address, term common.TermID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if term > m.paidUntil[subject] {
		m.paidUntil[subject] = term
	}
}

// IsUpToDate reports whether the subject paid for the current term.
func (m *Memory) IsUpToDate(subject common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	until, ok := m.paidUntil[subject]
	return ok && until >= m.terms.CurrentTerm()
}
