package clock

import (
	"encoding/binary"
	"sync"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/crypto"
)

// RandomnessBeacon is a source of digests that cannot be known before they
// are produced. Height is the height of the next digest to be produced;
// Digest(h) is available only once h < Height() and only while h is recent.
type RandomnessBeacon interface {
	Height() uint64
	Digest(height uint64) (crypto.Hash, bool)
}

// HashChainBeacon produces a blake2b hash chain, one digest per Advance step,
// and forgets digests older than its window. It is safe for concurrent use.
type HashChainBeacon struct {
	mu      sync.RWMutex
	height  uint64
	window  uint64
	last    crypto.Hash
	digests map[uint64]crypto.Hash
}

// NewHashChainBeacon starts a chain from genesis. The window defaults to common.RandomnessWindow.
func NewHashChainBeacon(genesis crypto.Hash) *HashChainBeacon {
	return &HashChainBeacon{
		window:  common.RandomnessWindow,
		last:    genesis,
		digests: make(map[uint64]crypto.Hash),
	}
}

func (b *HashChainBeacon) Height() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.height
}

// Advance produces n new digests
func (b *HashChainBeacon) Advance(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := uint64(0); i < n; i++ {
		buf := make([]byte, 0, crypto.HashSize+8)
		buf = append(buf, b.last[:]...)
		buf = binary.BigEndian.AppendUint64(buf, b.height)
		b.last = crypto.HashData(buf)
		b.digests[b.height] = b.last
		if b.height >= b.window {
			delete(b.digests, b.height-b.window)
		}
		b.height++
	}
}

func (b *HashChainBeacon) Digest(height uint64) (crypto.Hash, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if height >= b.height || b.height-height > b.window {
		return crypto.Hash{}, false
	}
	d, ok := b.digests[height]
	return d, ok
}
