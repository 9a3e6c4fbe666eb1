package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eigerco/tribunal/internal/disputes"
	"github.com/eigerco/tribunal/pkg/db"
	"github.com/eigerco/tribunal/pkg/db/pebble"
)

var ErrDisputeNotFound = errors.New("dispute not found")

// Disputes keeps the latest snapshot of every dispute, for readers that
// cannot query the court directly.
type Disputes struct {
	db.KVStore
}

func NewDisputes(store db.KVStore) *Disputes {
	return &Disputes{KVStore: store}
}

func disputeKey(id uint64) []byte {
	return makeKey(prefixDispute, binary.BigEndian.AppendUint64(nil, id))
}

// PutDispute replaces the snapshot of d
func (s *Disputes) PutDispute(d disputes.Dispute) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dispute: %w", err)
	}
	return s.Put(disputeKey(d.ID), b)
}

// GetDispute fetches the snapshot of a dispute by id.
func (s *Disputes) GetDispute(id uint64) (disputes.Dispute, error) {
	b, err := s.Get(disputeKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return disputes.Dispute{}, ErrDisputeNotFound
		}
		return disputes.Dispute{}, err
	}

	var d disputes.Dispute
	if err := json.Unmarshal(b, &d); err != nil {
		return disputes.Dispute{}, fmt.Errorf("unmarshal dispute: %w", err)
	}
	return d, nil
}

// DisputeIDs lists the stored disputes in id order
func (s *Disputes) DisputeIDs() ([]uint64, error) {
	iter, err := s.NewIterator([]byte{prefixDispute}, []byte{prefixDispute + 1})
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	var ids []uint64
	for iter.Next() {
		ids = append(ids, binary.BigEndian.Uint64(iter.Key()[1:]))
	}
	return ids, nil
}
