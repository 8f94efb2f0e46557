// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/endpoint"
)

var (
	pendingPrefix   = []byte("pending")
	deliveredPrefix = []byte("delivered")
	failedPrefix    = []byte("failed")
	metaPrefix      = []byte("meta")

	cursorKey = []byte("cursor")
)

// Record is a packet together with its delivery history.
type Record struct {
	Packet    *endpoint.Packet `json:"packet"`
	Attempts  int              `json:"attempts"`
	LastError string           `json:"lastError,omitempty"`
}

// Store tracks the packets of one route. Pending packets are ordered by
// source nonce.
type Store struct {
	pending   database.Database
	delivered database.Database
	failed    database.Database
	meta      database.Database
}

func NewStore(db database.Database) *Store {
	return &Store{
		pending:   prefixdb.New(pendingPrefix, db),
		delivered: prefixdb.New(deliveredPrefix, db),
		failed:    prefixdb.New(failedPrefix, db),
		meta:      prefixdb.New(metaPrefix, db),
	}
}

func pendingKey(p *endpoint.Packet) []byte {
	return append(contract.Uint64Bytes(p.Nonce), p.GUID[:]...)
}

// Enqueue adds [p] to the pending set. It reports false when the packet is
// already known.
func (s *Store) Enqueue(p *endpoint.Packet) (bool, error) {
	for _, db := range []database.Database{s.delivered, s.failed} {
		known, err := db.Has(p.GUID[:])
		if err != nil || known {
			return false, err
		}
	}
	key := pendingKey(p)
	known, err := s.pending.Has(key)
	if err != nil || known {
		return false, err
	}
	return true, put(s.pending, key, &Record{Packet: p})
}

// Pending returns the pending records in delivery order.
func (s *Store) Pending() ([]*Record, error) {
	return list(s.pending)
}

// Failed returns the records that ran out of attempts.
func (s *Store) Failed() ([]*Record, error) {
	return list(s.failed)
}

// Retry stores the attempt count and last error of a pending record.
func (s *Store) Retry(r *Record) error {
	return put(s.pending, pendingKey(r.Packet), r)
}

// MarkDelivered moves [r] from pending to delivered.
func (s *Store) MarkDelivered(r *Record) error {
	if err := put(s.delivered, r.Packet.GUID[:], r); err != nil {
		return err
	}
	return s.pending.Delete(pendingKey(r.Packet))
}

// MarkFailed moves [r] from pending to failed.
func (s *Store) MarkFailed(r *Record) error {
	if err := put(s.failed, r.Packet.GUID[:], r); err != nil {
		return err
	}
	return s.pending.Delete(pendingKey(r.Packet))
}

// Requeue moves a failed packet back to pending with a fresh attempt count.
func (s *Store) Requeue(guid [32]byte) error {
	b, err := s.failed.Get(guid[:])
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %x", ErrUnknownPacket, guid)
	}
	if err != nil {
		return err
	}
	r := &Record{}
	if err := json.Unmarshal(b, r); err != nil {
		return err
	}
	r.Attempts = 0
	r.LastError = ""
	if err := put(s.pending, pendingKey(r.Packet), r); err != nil {
		return err
	}
	return s.failed.Delete(guid[:])
}

func (s *Store) IsDelivered(guid [32]byte) (bool, error) {
	return s.delivered.Has(guid[:])
}

// Cursor is the source chain receipt index to resume scanning from.
func (s *Store) Cursor() (int, error) {
	cursor, err := database.GetUInt64(s.meta, cursorKey)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return int(cursor), err
}

func (s *Store) SetCursor(cursor int) error {
	return database.PutUInt64(s.meta, cursorKey, uint64(cursor))
}

func put(db database.Database, key []byte, r *Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return db.Put(key, b)
}

func list(db database.Database) ([]*Record, error) {
	iter := db.NewIterator()
	defer iter.Release()

	var records []*Record
	for iter.Next() {
		r := &Record{}
		if err := json.Unmarshal(iter.Value(), r); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, iter.Error()
}
