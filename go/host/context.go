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

// Gas is the unit of cost of the host chain.
type Gas = uint64

// Context describes the host-side circumstances of a single invocation of
// the runner.
type Context struct {
	// AccountID is the account hosting the EVM state.
	AccountID AccountID
	// SignerID is the account that signed the originating transaction.
	SignerID AccountID
	// PredecessorID is the immediate caller of this invocation.
	PredecessorID AccountID

	// CurrentAmount is the liquid balance of AccountID before the attached
	// deposit is credited.
	CurrentAmount uint256.Int
	// AttachedDeposit is the amount transferred along with this invocation.
	AttachedDeposit uint256.Int
	// StorageUsage is the number of bytes AccountID occupied before this
	// invocation.
	StorageUsage uint64

	PrepaidGas Gas
	IsView     bool

	BlockHeight uint64
	Timestamp   uint64
}
