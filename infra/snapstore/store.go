// Package snapstore persists order-book snapshots in a local pebble
// database, keyed by (instrument, node, timestamp) so the most recent
// snapshot per instrument/node pair is one bounded reverse scan away.
package snapstore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Record pairs an opaque book payload with the metadata recovery needs.
type Record struct {
	Instrument string
	NodeID     int
	CreatedAt  int64 // unix millis
	LastOffset int64
	TradeID    uint64
	Payload    []byte
}

type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("snapstore: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save stores a snapshot record durably.
func (s *Store) Save(rec Record) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&rec); err != nil {
		return fmt.Errorf("snapstore: encode record: %w", err)
	}
	return s.db.Set(keyFor(rec.Instrument, rec.NodeID, rec.CreatedAt), buf.Bytes(), pebble.Sync)
}

// Latest returns the most recent snapshot for (instrument, node). The
// second return is false when none exists.
func (s *Store) Latest(instrument string, nodeID int) (Record, bool, error) {
	lower, upper := keyRange(instrument, nodeID)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return Record{}, false, err
	}
	defer iter.Close()

	if !iter.Last() {
		return Record{}, false, iter.Error()
	}
	var rec Record
	if err := gob.NewDecoder(bytes.NewReader(iter.Value())).Decode(&rec); err != nil {
		return Record{}, false, fmt.Errorf("snapstore: decode record: %w", err)
	}
	return rec, true, nil
}

// Prune deletes all but the newest keep snapshots for (instrument, node).
func (s *Store) Prune(instrument string, nodeID int, keep int) error {
	if keep < 1 {
		return errors.New("snapstore: keep must be positive")
	}
	lower, upper := keyRange(instrument, nodeID)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	var keys [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return err
	}
	for i := 0; i < len(keys)-keep; i++ {
		if err := s.db.Delete(keys[i], pebble.Sync); err != nil {
			return err
		}
	}
	return nil
}

// Keys sort lexicographically; the zero-padded timestamp keeps scan order
// equal to creation order.
func keyFor(instrument string, nodeID int, createdAt int64) []byte {
	return []byte(fmt.Sprintf("snap/%s/%d/%020d", instrument, nodeID, createdAt))
}

func keyRange(instrument string, nodeID int) (lower, upper []byte) {
	prefix := fmt.Sprintf("snap/%s/%d/", instrument, nodeID)
	return []byte(prefix), []byte(prefix + "~")
}
