package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/eigerco/tribunal/internal/events"
	"github.com/eigerco/tribunal/pkg/db"
	"github.com/eigerco/tribunal/pkg/db/pebble"
	"github.com/eigerco/tribunal/pkg/log"
)

var ErrJournalClosed = errors.New("journal is closed")

var metaNextSeq = makeKey(prefixMeta, []byte("next-seq"))

// Journal is an append-only event log. Events are numbered from 0 in the
// order they are appended and the numbering survives restarts.
type Journal struct {
	mu     sync.Mutex
	db     db.KVStore
	next   uint64
	closed bool
}

// NewJournal opens the journal kept in store and resumes its numbering.
func NewJournal(store db.KVStore) (*Journal, error) {
	j := &Journal{db: store}
	b, err := store.Get(metaNextSeq)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("read journal sequence: %w", err)
	case len(b) != 8:
		return nil, fmt.Errorf("read journal sequence: bad length %d", len(b))
	default:
		j.next = binary.BigEndian.Uint64(b)
	}
	return j, nil
}

func eventKey(seq uint64) []byte {
	return makeKey(prefixEvent, binary.BigEndian.AppendUint64(nil, seq))
}

// Append numbers e and stores it together with the next sequence number.
func (j *Journal) Append(e events.Event) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrJournalClosed
	}

	e.Seq = j.next
	value, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	batch := j.db.NewBatch()
	defer batch.Close()
	if err := batch.Put(eventKey(e.Seq), value); err != nil {
		return 0, fmt.Errorf("store event: %w", err)
	}
	if err := batch.Put(metaNextSeq, binary.BigEndian.AppendUint64(nil, e.Seq+1)); err != nil {
		return 0, fmt.Errorf("store journal sequence: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	j.next++
	return e.Seq, nil
}

// Emit implements events.Sink. A failed write is logged and the event is lost.
func (j *Journal) Emit(e events.Event) {
	if _, err := j.Append(e); err != nil {
		log.Store.Error().Err(err).Str("kind", string(e.Kind)).Msg("journal append failed")
	}
}

// Len returns the number of events appended so far
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next
}

// Since returns the events numbered from `from` on, at most limit of them
// when limit is positive.
func (j *Journal) Since(from uint64, limit int) ([]events.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrJournalClosed
	}

	iter, err := j.db.NewIterator(eventKey(from), []byte{prefixEvent + 1})
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	var out []events.Event
	for iter.Next() {
		if limit > 0 && len(out) == limit {
			break
		}
		value, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		var e events.Event
		if err := json.Unmarshal(value, &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Close stops the journal. The underlying store stays open.
func (j *Journal) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
}
