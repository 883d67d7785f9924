// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package host

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/log"
)

// PebbleExternal is an External persisting storage in a pebble database.
// Modifications are collected in a batch which is only written by Flush, so
// a failed invocation can be dropped as a whole using Discard. Receipts are
// kept in memory for the duration of an invocation.
type PebbleExternal struct {
	receiptLog
	db    *pebble.DB
	batch *pebble.Batch
}

// OpenPebbleExternal opens or creates the database in the given directory.
func OpenPebbleExternal(directory string) (*PebbleExternal, error) {
	db, err := pebble.Open(directory, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database in %s: %w", directory, err)
	}
	log.Debug("Opened runner database", "dir", directory)
	return &PebbleExternal{db: db, batch: db.NewIndexedBatch()}, nil
}

func (e *PebbleExternal) StorageGet(key []byte) ([]byte, error) {
	value, closer, err := e.batch.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte{}, value...), nil
}

func (e *PebbleExternal) StorageSet(key []byte, value []byte) error {
	return e.batch.Set(key, value, nil)
}

func (e *PebbleExternal) StorageRemove(key []byte) error {
	return e.batch.Delete(key, nil)
}

func (e *PebbleExternal) StorageRemoveSubtree(prefix []byte) (Released, error) {
	var released Released
	var keys [][]byte
	upper := upperBound(prefix)
	it, err := e.batch.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return released, err
	}
	for valid := it.First(); valid; valid = it.Next() {
		released.Records++
		released.Bytes += uint64(len(it.Key()) + len(it.Value()))
		if upper == nil {
			keys = append(keys, append([]byte{}, it.Key()...))
		}
	}
	if err := errors.Join(it.Error(), it.Close()); err != nil {
		return Released{}, err
	}
	if released.Records == 0 {
		return released, nil
	}
	if upper != nil {
		return released, e.batch.DeleteRange(prefix, upper, nil)
	}
	for _, key := range keys {
		if err := e.batch.Delete(key, nil); err != nil {
			return released, err
		}
	}
	return released, nil
}

// Flush writes all modifications of the current invocation to the database
// and starts a new batch.
func (e *PebbleExternal) Flush() error {
	if err := e.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	log.Trace("Flushed runner database", "records", e.batch.Count(), "receipts", len(e.receipts))
	if err := e.batch.Close(); err != nil {
		return err
	}
	e.batch = e.db.NewIndexedBatch()
	e.reset()
	return nil
}

// Discard drops all modifications of the current invocation.
func (e *PebbleExternal) Discard() error {
	err := e.batch.Close()
	e.batch = e.db.NewIndexedBatch()
	e.reset()
	return err
}

// Close discards pending modifications and closes the database.
func (e *PebbleExternal) Close() error {
	return errors.Join(e.batch.Close(), e.db.Close())
}

// upperBound returns the smallest key larger than all keys with the given
// prefix, or nil if there is none.
func upperBound(prefix []byte) []byte {
	limit := append([]byte{}, prefix...)
	for i := len(limit) - 1; i >= 0; i-- {
		if limit[i] < 0xff {
			limit[i]++
			return limit[:i+1]
		}
	}
	return nil
}
