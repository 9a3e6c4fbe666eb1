// Package clock keeps the court time. Time is split into terms of fixed
// duration; terms only advance through explicit, bounded heartbeats, and each
// term gets a randomness seed taken from a beacon digest that did not exist
// yet when the term started.
package clock

import (
	"strconv"
	"time"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/governance"
	"github.com/eigerco/tribunal/pkg/log"
)

// Term is the state of one court term
type Term struct {
	ID        common.TermID `json:"id"`
	StartTime time.Time     `json:"startTime"`
	// RandomnessHeight is the beacon height whose digest seeds this term.
	RandomnessHeight uint64      `json:"randomnessHeight"`
	Randomness       crypto.Hash `json:"randomness"`
	HasRandomness    bool        `json:"hasRandomness"`
	// DependingDrafts counts the rounds scheduled to be drafted in this term.
	DependingDrafts uint64 `json:"dependingDrafts"`
}

type Option func(*Clock)

// WithNow replaces the wall clock, for tests and simulations
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithSink sets where heartbeat and start delay events go
func WithSink(s events.Sink) Option {
	return func(c *Clock) { c.sink = s }
}

// WithRandomnessWindow overrides common.RandomnessWindow
func WithRandomnessWindow(w uint64) Option {
	return func(c *Clock) { c.window = w }
}

// Clock is not safe for concurrent use.
type Clock struct {
	termDuration    time.Duration
	window          uint64
	current         common.TermID
	terms           []Term
	dependingDrafts map[common.TermID]uint64
	beacon          RandomnessBeacon
	now             func() time.Time
	sink            events.Sink
}

// New creates a clock whose term 1 starts at firstTermStart. The court is in
// term 0 until then.
func New(firstTermStart time.Time, termDuration time.Duration, beacon RandomnessBeacon, opts ...Option) (*Clock, error) {
	if termDuration <= 0 {
		return nil, ErrBadTermDuration
	}
	c := &Clock{
		termDuration:    termDuration,
		window:          common.RandomnessWindow,
		beacon:          beacon,
		now:             time.Now,
		sink:            events.Discard,
		dependingDrafts: make(map[common.TermID]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !firstTermStart.After(c.now()) {
		return nil, ErrBadFirstTermStartTime
	}
	c.terms = []Term{{ID: 0, StartTime: firstTermStart.Add(-termDuration)}}
	return c, nil
}

func (c *Clock) TermDuration() time.Duration {
	return c.termDuration
}

func (c *Clock) CurrentTerm() common.TermID {
	return c.current
}

// Term returns a copy of a started term
func (c *Clock) Term(id common.TermID) (Term, error) {
	if id > c.current {
		return Term{}, ErrTermDoesNotExist
	}
	t := c.terms[id]
	t.DependingDrafts = c.dependingDrafts[id]
	return t, nil
}

// NeededTransitions returns how many terms should have started since the current one.
func (c *Clock) NeededTransitions() uint64 {
	start := c.terms[c.current].StartTime
	now := c.now()
	if now.Before(start.Add(c.termDuration)) {
		return 0
	}
	return uint64(now.Sub(start) / c.termDuration)
}

// Heartbeat performs at most maxTransitions pending term transitions and
// returns how many it performed.
func (c *Clock) Heartbeat(maxTransitions uint64) (uint64, error) {
	needed := c.NeededTransitions()
	if needed == 0 || maxTransitions == 0 {
		return 0, ErrInvalidTransitionTerms
	}
	transitions := min(needed, maxTransitions)
	prev := c.current
	for i := uint64(0); i < transitions; i++ {
		last := c.terms[c.current]
		c.current++
		c.terms = append(c.terms, Term{
			ID:               c.current,
			StartTime:        last.StartTime.Add(c.termDuration),
			RandomnessHeight: c.beacon.Height() + 1,
		})
	}
	log.Court.Debug().
		Uint64("from", uint64(prev)).
		Uint64("to", uint64(c.current)).
		Msg("term transitioned")
	c.sink.Emit(events.Event{
		Kind: events.KindHeartbeat,
		Term: c.current,
		Data: map[string]string{"previousTerm": strconv.FormatUint(uint64(prev), 10)},
	})
	return transitions, nil
}

// EnsureCurrentTerm transitions the clock if a single transition is pending
// and fails if more are; callers must then send a heartbeat first. The
// transition is a heartbeat in its own right and is kept whatever the caller
// does next.
func (c *Clock) EnsureCurrentTerm() (common.TermID, error) {
	needed := c.NeededTransitions()
	if needed > common.MaxAutoTermTransitions {
		return 0, ErrTooManyTransitions
	}
	if needed > 0 {
		if _, err := c.Heartbeat(needed); err != nil {
			return 0, err
		}
	}
	return c.current, nil
}

// TermRandomness returns the seed of a started term. The seed is the beacon
// digest at the term's randomness height; it cannot be read before the beacon
// produced it, nor after it left the randomness window unless it was read in time.
func (c *Clock) TermRandomness(id common.TermID) (crypto.Hash, error) {
	if id > c.current {
		return crypto.Hash{}, ErrTermDoesNotExist
	}
	t := &c.terms[id]
	if t.HasRandomness {
		return t.Randomness, nil
	}
	height := c.beacon.Height()
	if height <= t.RandomnessHeight {
		return crypto.Hash{}, ErrTermRandomnessNotYet
	}
	if height-t.RandomnessHeight > c.window {
		return crypto.Hash{}, ErrTermRandomnessUnavailable
	}
	digest, ok := c.beacon.Digest(t.RandomnessHeight)
	if !ok {
		return crypto.Hash{}, ErrTermRandomnessUnavailable
	}
	t.Randomness = digest
	t.HasRandomness = true
	return digest, nil
}

// EnsureCurrentTermRandomness returns the seed of the current term
func (c *Clock) EnsureCurrentTermRandomness() (crypto.Hash, error) {
	return c.TermRandomness(c.current)
}

// DelayStartTime moves the start of term 1. Only config governors may do it,
// and only before the court started.
func (c *Clock) DelayStartTime(caller governance.Caller, newFirstTermStart time.Time) error {
	if err := caller.Require(governance.RoleConfigGovernor); err != nil {
		return err
	}
	now := c.now()
	if c.current != 0 || !c.terms[0].StartTime.Add(c.termDuration).After(now) {
		return ErrCannotDelayStartedCourt
	}
	if !newFirstTermStart.After(now) {
		return ErrCannotDelayPastStartTime
	}
	c.terms[0].StartTime = newFirstTermStart.Add(-c.termDuration)
	c.sink.Emit(events.Event{
		Kind:        events.KindStartTimeDelayed,
		Term:        0,
		Participant: caller.Address,
		Data:        map[string]string{"startTime": newFirstTermStart.UTC().Format(time.RFC3339)},
	})
	return nil
}

// AddDependingDraft records that a round is waiting to be drafted in term id.
func (c *Clock) AddDependingDraft(id common.TermID) {
	c.dependingDrafts[id]++
}

// RemoveDependingDraft undoes AddDependingDraft once the round is drafted or rescheduled.
func (c *Clock) RemoveDependingDraft(id common.TermID) {
	if c.dependingDrafts[id] == 0 {
		return
	}
	c.dependingDrafts[id]--
	if c.dependingDrafts[id] == 0 {
		delete(c.dependingDrafts, id)
	}
}

// DependingDrafts returns how many rounds wait to be drafted in term id
func (c *Clock) DependingDrafts(id common.TermID) uint64 {
	return c.dependingDrafts[id]
}
