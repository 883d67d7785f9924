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

import "github.com/holiman/uint256"

//go:generate mockgen -source external.go -destination external_mock.go -package host

// External is the capability of the host chain offered to the runner. It
// provides access to the key/value storage of the account hosting the EVM
// and the means to emit receipts carrying actions to other accounts.
type External interface {
	// StorageGet returns the value stored under the given key or nil if the
	// key is not present.
	StorageGet(key []byte) ([]byte, error)
	StorageSet(key []byte, value []byte) error
	StorageRemove(key []byte) error
	// StorageRemoveSubtree removes all keys starting with the given prefix
	// and reports the amount of data released.
	StorageRemoveSubtree(prefix []byte) (Released, error)

	CreateReceipt(receiver AccountID) (ReceiptIndex, error)
	AppendActionTransfer(receipt ReceiptIndex, amount *uint256.Int) error
	AppendActionCreateAccount(receipt ReceiptIndex) error
}

// ReceiptIndex identifies a receipt created during the current invocation.
type ReceiptIndex uint64

// Released summarizes the records removed by a subtree removal.
type Released struct {
	Records uint64
	Bytes   uint64 // < sum of key and value lengths
}
