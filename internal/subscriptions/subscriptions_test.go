package subscriptions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eigerco/tribunal/internal/common"
)

type termStub struct{ term common.TermID }

func (t *termStub) CurrentTerm() common.TermID { return t.term }

func TestIsUpToDate(t *testing.T) {
	terms := &termStub{term: 2}
	m := NewMemory(terms)
	assert.False(t, m.IsUpToDate("subject"))

	m.PayUntil("subject", 4)
	m.PayUntil("subject", 3)
	assert.True(t, m.IsUpToDate("subject"))

	terms.term = 5
	assert.False(t, m.IsUpToDate("subject"))
}
