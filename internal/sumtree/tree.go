// Package sumtree implements a checkpointed 16-ary sum tree. Leaves hold a
// weight, every internal node holds the sum of its subtree, and every node
// keeps its full history so weights can be queried as they were at a past term.
package sumtree

import (
	"errors"

	"github.com/eigerco/tribunal/internal/checkpointing"
	"github.com/eigerco/tribunal/internal/safemath"
)

const (
	// Children is the branching factor of every internal node.
	Children = 16
	// bitsInNibble is log2(Children): each level consumes one nibble of the key.
	bitsInNibble = 4
	itemsLevel   = 0
)

var (
	ErrKeyDoesNotExist    = errors.New("sumtree: key does not exist")
	ErrUpdateOverflow     = errors.New("sumtree: update overflow")
	ErrUpdateUnderflow    = errors.New("sumtree: update underflow")
	ErrSearchOutOfBounds  = errors.New("sumtree: search value out of bounds")
	ErrSearchNotSorted    = errors.New("sumtree: search values not sorted")
	ErrPastTimeUpdate     = errors.New("sumtree: cannot update in the past")
	ErrMaximumKeysReached = errors.New("sumtree: maximum number of keys reached")
)

type nodeID struct {
	level uint8
	key   uint64
}

// Item is a leaf returned by a search: its key and its weight at the search time.
type Item struct {
	Key   uint64
	Value uint64
}

// Tree is not safe for concurrent use.
type Tree struct {
	nextKey uint64
	height  checkpointing.History[uint64]
	nodes   map[nodeID]*checkpointing.History[uint64]
}

func New() *Tree {
	return &Tree{nodes: make(map[nodeID]*checkpointing.History[uint64])}
}

// NextKey is the key the next inserted leaf will get, i.e. the number of leaves.
func (t *Tree) NextKey() uint64 {
	return t.nextKey
}

// Height returns the latest height of the tree
func (t *Tree) Height() uint64 {
	return t.height.Last()
}

// HeightAt returns the height the tree had at the given time
func (t *Tree) HeightAt(time uint64) uint64 {
	return t.height.Get(time)
}

// Insert appends a new leaf with the given value at time and returns its key.
func (t *Tree) Insert(time uint64, value uint64) (uint64, error) {
	key := t.nextKey
	height := t.height.Last()
	grow := key > 0 && key == capacity(height)
	if grow {
		if height >= 15 {
			return 0, ErrMaximumKeysReached
		}
		if last, ok := t.height.LastTime(); ok && time < last {
			return 0, ErrPastTimeUpdate
		}
		if root := t.nodes[nodeID{level: uint8(height), key: 0}]; root != nil {
			if last, ok := root.LastTime(); ok && time < last {
				return 0, ErrPastTimeUpdate
			}
			if _, ok := safemath.Add64(root.Last(), value); !ok {
				return 0, ErrUpdateOverflow
			}
		}
	}
	if value != 0 {
		// Validate the whole update path before touching anything.
		h := height
		if grow {
			h++
		}
		for level := uint64(itemsLevel); level <= h; level++ {
			n := t.nodes[nodeID{level: uint8(level), key: ancestor(key, level)}]
			if n == nil {
				continue
			}
			if last, ok := n.LastTime(); ok && time < last {
				return 0, ErrPastTimeUpdate
			}
			if _, ok := safemath.Add64(n.Last(), value); !ok {
				return 0, ErrUpdateOverflow
			}
		}
	}

	if grow {
		t.increaseHeight(time)
	}
	t.nextKey++
	if value != 0 {
		if err := t.update(key, time, value, true); err != nil {
			return 0, err
		}
	}
	return key, nil
}

// Set overwrites the latest value of a leaf, recording it at time.
func (t *Tree) Set(key, time, value uint64) error {
	if key >= t.nextKey {
		return ErrKeyDoesNotExist
	}
	current := t.Item(key)
	if value >= current {
		return t.Update(key, time, value-current, true)
	}
	return t.Update(key, time, current-value, false)
}

// Update adds (increase) or subtracts delta from the latest value of a leaf
// and of all its ancestors, recording the results at time.
func (t *Tree) Update(key, time, delta uint64, increase bool) error {
	if key >= t.nextKey {
		return ErrKeyDoesNotExist
	}
	if delta == 0 {
		return nil
	}
	height := t.height.Last()
	for level := uint64(itemsLevel); level <= height; level++ {
		n := t.nodes[nodeID{level: uint8(level), key: ancestor(key, level)}]
		var last uint64
		if n != nil {
			if lt, ok := n.LastTime(); ok && time < lt {
				return ErrPastTimeUpdate
			}
			last = n.Last()
		}
		if increase {
			if _, ok := safemath.Add64(last, delta); !ok {
				return ErrUpdateOverflow
			}
		} else if _, ok := safemath.Sub64(last, delta); !ok {
			return ErrUpdateUnderflow
		}
	}
	return t.update(key, time, delta, increase)
}

// update applies an already validated delta along the path from the leaf to the root.
func (t *Tree) update(key, time, delta uint64, increase bool) error {
	height := t.height.Last()
	for level := uint64(itemsLevel); level <= height; level++ {
		n := t.node(uint8(level), ancestor(key, level))
		v := n.Last()
		if increase {
			v += delta
		} else {
			v -= delta
		}
		if err := n.Add(time, v); err != nil {
			return err
		}
	}
	return nil
}

// increaseHeight grows the tree by one level. The new root starts from the
// total of the old one, which stays in place as its first child.
func (t *Tree) increaseHeight(time uint64) {
	old := t.height.Last()
	_ = t.height.Add(time, old+1)

	oldRoot := t.nodes[nodeID{level: uint8(old), key: 0}]
	if oldRoot == nil {
		return
	}
	_ = t.node(uint8(old+1), 0).Add(time, oldRoot.Last())
}

// Item returns the latest value of a leaf
func (t *Tree) Item(key uint64) uint64 {
	n := t.nodes[nodeID{level: itemsLevel, key: key}]
	if n == nil {
		return 0
	}
	return n.Last()
}

// ItemAt returns the value a leaf had at time
func (t *Tree) ItemAt(key, time uint64) uint64 {
	n := t.nodes[nodeID{level: itemsLevel, key: key}]
	if n == nil {
		return 0
	}
	return n.Get(time)
}

// Total returns the latest sum of all leaves
func (t *Tree) Total() uint64 {
	n := t.nodes[nodeID{level: uint8(t.height.Last()), key: 0}]
	if n == nil {
		return 0
	}
	return n.Last()
}

// TotalAt returns the sum of all leaves at time
func (t *Tree) TotalAt(time uint64) uint64 {
	n := t.nodes[nodeID{level: uint8(t.height.Get(time)), key: 0}]
	if n == nil {
		return 0
	}
	return n.Get(time)
}

// Search maps each of the ascending values to the leaf whose cumulative range
// [sum of previous leaves, sum of previous leaves + leaf value) contains it,
// using the tree as it was at time. Several values may map to the same leaf;
// leaves with zero weight are never returned.
func (t *Tree) Search(values []uint64, time uint64) ([]Item, error) {
	if len(values) == 0 {
		return nil, nil
	}
	total := t.TotalAt(time)
	for i, v := range values {
		if i > 0 && v < values[i-1] {
			return nil, ErrSearchNotSorted
		}
		if v >= total {
			return nil, ErrSearchOutOfBounds
		}
	}
	out := make([]Item, len(values))
	t.querySubtree(t.height.Get(time), 0, 0, values, out, time)
	return out, nil
}

// querySubtree walks the children of a node left to right, handing each child
// the prefix of values falling into its range. offset is the cumulative weight
// of everything left of this node.
func (t *Tree) querySubtree(level, key, offset uint64, values []uint64, out []Item, time uint64) {
	if level == itemsLevel {
		value := t.ItemAt(key, time)
		for i := range values {
			out[i] = Item{Key: key, Value: value}
		}
		return
	}

	childLevel := level - 1
	shift := childLevel * bitsInNibble
	acc := offset
	idx := 0
	for i := uint64(0); i < Children && idx < len(values); i++ {
		childKey := key + i<<shift
		if childKey >= t.nextKey {
			break
		}
		n := t.nodes[nodeID{level: uint8(childLevel), key: childKey}]
		if n == nil {
			continue
		}
		v := n.Get(time)
		if v == 0 {
			continue
		}
		end := acc + v
		j := idx
		for j < len(values) && values[j] < end {
			j++
		}
		if j > idx {
			t.querySubtree(childLevel, childKey, acc, values[idx:j], out[idx:j], time)
			idx = j
		}
		acc = end
	}
}

func (t *Tree) node(level uint8, key uint64) *checkpointing.History[uint64] {
	id := nodeID{level: level, key: key}
	n, ok := t.nodes[id]
	if !ok {
		n = &checkpointing.History[uint64]{}
		t.nodes[id] = n
	}
	return n
}

// ancestor clears the lowest level nibbles of key.
func ancestor(key, level uint64) uint64 {
	mask := ^uint64(0) << (level * bitsInNibble)
	return key & mask
}

// capacity is the number of leaves a tree of the given height can hold.
func capacity(height uint64) uint64 {
	return 1 << (height * bitsInNibble)
}
