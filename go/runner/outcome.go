// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package runner

import (
	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/holiman/uint256"
)

// Outcome summarizes a successful invocation for the host.
type Outcome struct {
	// Balance is the liquid balance of the hosting account after the
	// invocation.
	Balance      uint256.Int
	StorageUsage uint64
	ReturnData   []byte
	BurntGas     host.Gas
	UsedGas      host.Gas
	Logs         []tosca.Log
}

func encodeAddress(address tosca.Address) []byte {
	return address[:]
}

func encodeUint256(value *uint256.Int) []byte {
	encoded := value.Bytes32()
	return encoded[:]
}
