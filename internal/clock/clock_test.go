package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/crypto"
	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/internal/governance"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time          { return f.t }
func (f *fakeNow) advance(d time.Duration) { f.t = f.t.Add(d) }

var genesis = time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)

func newTestClock(t *testing.T, opts ...Option) (*Clock, *fakeNow, *HashChainBeacon) {
	t.Helper()
	now := &fakeNow{t: genesis}
	beacon := NewHashChainBeacon(crypto.HashData([]byte("genesis")))
	opts = append([]Option{WithNow(now.now)}, opts...)
	c, err := New(genesis.Add(time.Hour), time.Hour, beacon, opts...)
	require.NoError(t, err)
	return c, now, beacon
}

func TestNew(t *testing.T) {
	beacon := NewHashChainBeacon(crypto.Hash{})
	_, err := New(genesis.Add(time.Hour), 0, beacon)
	assert.ErrorIs(t, err, ErrBadTermDuration)

	_, err = New(genesis, time.Hour, beacon, WithNow(func() time.Time { return genesis }))
	assert.ErrorIs(t, err, ErrBadFirstTermStartTime)

	c, _, _ := newTestClock(t)
	assert.Equal(t, common.TermID(0), c.CurrentTerm())
	term, err := c.Term(0)
	require.NoError(t, err)
	assert.Equal(t, genesis, term.StartTime)
}

func TestHeartbeat(t *testing.T) {
	rec := events.NewRecorder()
	c, now, _ := newTestClock(t, WithSink(rec))

	t.Run("nothing to transition", func(t *testing.T) {
		assert.Equal(t, uint64(0), c.NeededTransitions())
		_, err := c.Heartbeat(1)
		assert.ErrorIs(t, err, ErrInvalidTransitionTerms)
	})

	t.Run("bounded transitions", func(t *testing.T) {
		now.advance(3*time.Hour + time.Minute)
		assert.Equal(t, uint64(3), c.NeededTransitions())

		n, err := c.Heartbeat(2)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), n)
		assert.Equal(t, common.TermID(2), c.CurrentTerm())
		assert.Equal(t, uint64(1), c.NeededTransitions())

		n, err = c.Heartbeat(10)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
		assert.Equal(t, common.TermID(3), c.CurrentTerm())

		term, err := c.Term(3)
		require.NoError(t, err)
		assert.Equal(t, genesis.Add(3*time.Hour), term.StartTime)
	})

	t.Run("events", func(t *testing.T) {
		beats := rec.OfKind(events.KindHeartbeat)
		require.Len(t, beats, 2)
		assert.Equal(t, common.TermID(2), beats[0].Term)
		assert.Equal(t, "2", beats[1].Data["previousTerm"])
	})

	_, err := c.Term(4)
	assert.ErrorIs(t, err, ErrTermDoesNotExist)
}

func TestEnsureCurrentTerm(t *testing.T) {
	c, now, _ := newTestClock(t)

	now.advance(time.Hour)
	term, err := c.EnsureCurrentTerm()
	require.NoError(t, err)
	assert.Equal(t, common.TermID(1), term)

	now.advance(2 * time.Hour)
	_, err = c.EnsureCurrentTerm()
	assert.ErrorIs(t, err, ErrTooManyTransitions)
	assert.Equal(t, common.TermID(1), c.CurrentTerm())

	_, err = c.Heartbeat(1)
	require.NoError(t, err)
	term, err = c.EnsureCurrentTerm()
	require.NoError(t, err)
	assert.Equal(t, common.TermID(3), term)
}

func TestTermRandomness(t *testing.T) {
	c, now, beacon := newTestClock(t, WithRandomnessWindow(4))
	beacon.Advance(5)

	now.advance(time.Hour)
	_, err := c.Heartbeat(1)
	require.NoError(t, err)
	term, err := c.Term(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), term.RandomnessHeight)

	_, err = c.TermRandomness(1)
	assert.ErrorIs(t, err, ErrTermRandomnessNotYet)
	_, err = c.TermRandomness(2)
	assert.ErrorIs(t, err, ErrTermDoesNotExist)

	beacon.Advance(2)
	seed, err := c.TermRandomness(1)
	require.NoError(t, err)
	want, ok := beacon.Digest(6)
	require.True(t, ok)
	assert.Equal(t, want, seed)

	// a read seed stays available after the beacon moves on
	beacon.Advance(100)
	again, err := c.TermRandomness(1)
	require.NoError(t, err)
	assert.Equal(t, seed, again)

	t.Run("expired before first read", func(t *testing.T) {
		now.advance(time.Hour)
		_, err := c.Heartbeat(1)
		require.NoError(t, err)
		beacon.Advance(6)
		_, err = c.TermRandomness(2)
		assert.ErrorIs(t, err, ErrTermRandomnessUnavailable)
	})
}

func TestDelayStartTime(t *testing.T) {
	rec := events.NewRecorder()
	c, now, _ := newTestClock(t, WithSink(rec))
	governor := governance.Caller{Address: "gov", Roles: governance.RoleConfigGovernor}

	err := c.DelayStartTime(governance.Anyone("eve"), genesis.Add(2*time.Hour))
	assert.ErrorIs(t, err, governance.ErrSenderNotAllowed)

	err = c.DelayStartTime(governor, genesis.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrCannotDelayPastStartTime)

	newStart := genesis.Add(5 * time.Hour)
	require.NoError(t, c.DelayStartTime(governor, newStart))
	require.Len(t, rec.OfKind(events.KindStartTimeDelayed), 1)

	now.advance(4*time.Hour + 59*time.Minute)
	assert.Equal(t, uint64(0), c.NeededTransitions())
	now.advance(time.Minute)
	_, err = c.Heartbeat(1)
	require.NoError(t, err)
	term, err := c.Term(1)
	require.NoError(t, err)
	assert.Equal(t, newStart, term.StartTime)

	err = c.DelayStartTime(governor, newStart.Add(time.Hour))
	assert.ErrorIs(t, err, ErrCannotDelayStartedCourt)
}

func TestDependingDrafts(t *testing.T) {
	c, _, _ := newTestClock(t)
	c.AddDependingDraft(3)
	c.AddDependingDraft(3)
	assert.Equal(t, uint64(2), c.DependingDrafts(3))
	c.RemoveDependingDraft(3)
	c.RemoveDependingDraft(3)
	c.RemoveDependingDraft(3)
	assert.Equal(t, uint64(0), c.DependingDrafts(3))
}

func TestHashChainBeaconWindow(t *testing.T) {
	b := NewHashChainBeacon(crypto.Hash{1})
	_, ok := b.Digest(0)
	assert.False(t, ok)

	b.Advance(common.RandomnessWindow + 1)
	_, ok = b.Digest(0)
	assert.False(t, ok)
	_, ok = b.Digest(1)
	assert.True(t, ok)
	_, ok = b.Digest(common.RandomnessWindow + 1)
	assert.False(t, ok)
}
