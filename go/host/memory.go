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
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

// MemoryExternal is an External keeping all data in memory. Receipts are
// recorded and can be inspected through Receipts().
type MemoryExternal struct {
	receiptLog
	db *memorydb.Database
}

func NewMemoryExternal() *MemoryExternal {
	return &MemoryExternal{db: memorydb.New()}
}

func (e *MemoryExternal) StorageGet(key []byte) ([]byte, error) {
	if found, err := e.db.Has(key); err != nil || !found {
		return nil, err
	}
	return e.db.Get(key)
}

func (e *MemoryExternal) StorageSet(key []byte, value []byte) error {
	return e.db.Put(key, value)
}

func (e *MemoryExternal) StorageRemove(key []byte) error {
	return e.db.Delete(key)
}

func (e *MemoryExternal) StorageRemoveSubtree(prefix []byte) (Released, error) {
	var released Released
	it := e.db.NewIterator(prefix, nil)
	defer it.Release()
	for it.Next() {
		released.Records++
		released.Bytes += uint64(len(it.Key()) + len(it.Value()))
		if err := e.db.Delete(it.Key()); err != nil {
			return released, err
		}
	}
	return released, it.Error()
}

// Len returns the number of stored records.
func (e *MemoryExternal) Len() int {
	return e.db.Len()
}
