// Package checkpointing keeps append-only histories of values indexed by a
// monotonically increasing time unit, so any past value can be read back.
package checkpointing

import (
	"errors"
	"sort"
)

var ErrCannotAddPastValue = errors.New("checkpointing: cannot add past value")

type checkpoint[V any] struct {
	time  uint64
	value V
}

// History is a sparse list of (time, value) checkpoints. The zero value is an
// empty history whose value at any time is the zero V.
type History[V any] struct {
	checkpoints []checkpoint[V]
}

// Add records value at time. Writing again at the last checkpoint's time
// overwrites it; writing before it is rejected.
func (h *History[V]) Add(time uint64, value V) error {
	n := len(h.checkpoints)
	if n == 0 {
		h.checkpoints = append(h.checkpoints, checkpoint[V]{time: time, value: value})
		return nil
	}
	last := &h.checkpoints[n-1]
	switch {
	case time > last.time:
		h.checkpoints = append(h.checkpoints, checkpoint[V]{time: time, value: value})
	case time == last.time:
		last.value = value
	default:
		return ErrCannotAddPastValue
	}
	return nil
}

// Get returns the value of the checkpoint with the greatest time <= time.
func (h *History[V]) Get(time uint64) V {
	var zero V
	n := len(h.checkpoints)
	if n == 0 {
		return zero
	}
	// Most reads are for recent terms.
	if last := h.checkpoints[n-1]; time >= last.time {
		return last.value
	}
	if time < h.checkpoints[0].time {
		return zero
	}
	i := sort.Search(n, func(i int) bool { return h.checkpoints[i].time > time })
	return h.checkpoints[i-1].value
}

// Last returns the most recent value, regardless of its time.
func (h *History[V]) Last() V {
	var zero V
	if len(h.checkpoints) == 0 {
		return zero
	}
	return h.checkpoints[len(h.checkpoints)-1].value
}

// LastTime returns the time of the most recent checkpoint and whether one exists.
func (h *History[V]) LastTime() (uint64, bool) {
	if len(h.checkpoints) == 0 {
		return 0, false
	}
	return h.checkpoints[len(h.checkpoints)-1].time, true
}

func (h *History[V]) Len() int {
	return len(h.checkpoints)
}
