package court

import (
	"sync"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/pkg/log"
)

// RecordingSubject is a dispute subject that keeps the rulings it is given.
// Nodes use it for subjects living outside the process, which read the
// rulings back through the API or the event journal.
type RecordingSubject struct {
	addr    common.Address
	mu      sync.RWMutex
	rulings map[uint64]uint8
}

func NewRecordingSubject(addr common.Address) *RecordingSubject {
	return &RecordingSubject{addr: addr, rulings: make(map[uint64]uint8)}
}

func (s *RecordingSubject) Address() common.Address {
	return s.addr
}

func (s *RecordingSubject) Rule(disputeID uint64, ruling uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rulings[disputeID] = ruling
	log.Court.Info().
		Str("subject", s.addr.String()).
		Uint64("dispute", disputeID).
		Uint8("ruling", ruling).
		Msg("ruling delivered")
}

// Ruling returns the ruling received for a dispute, if any
func (s *RecordingSubject) Ruling(disputeID uint64) (uint8, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rulings[disputeID]
	return r, ok
}
