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
	"bytes"
	"testing"

	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestPrecompiled_AddressesDependOnRevision(t *testing.T) {
	pointEvaluation := tosca.Address{19: 0x0a}
	tests := map[string]struct {
		address  tosca.Address
		revision tosca.Revision
		want     bool
	}{
		"ecrecover istanbul":        {tosca.Address{19: 0x01}, tosca.R07_Istanbul, true},
		"identity london":           {tosca.Address{19: 0x04}, tosca.R10_London, true},
		"point evaluation shanghai": {pointEvaluation, tosca.R12_Shanghai, false},
		"point evaluation cancun":   {pointEvaluation, tosca.R13_Cancun, true},
		"regular address":           {tosca.Address{1}, tosca.R13_Cancun, false},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := isPrecompiled(test.address, test.revision); got != test.want {
				t.Errorf("unexpected result, wanted %t, got %t", test.want, got)
			}
		})
	}
}

func TestPrecompiled_IdentityChargesGasAndCopiesInput(t *testing.T) {
	identity := tosca.Address{19: 0x04}
	input := []byte{1, 2, 3}
	result, isPrecompiled := handlePrecompiled(tosca.R13_Cancun, input, identity, 1000)
	if !isPrecompiled {
		t.Fatalf("identity should be a precompiled contract")
	}
	if !result.Success || !bytes.Equal(result.Output, input) {
		t.Errorf("unexpected result %v", result)
	}
	// 15 base + 3 per word
	if want, got := tosca.Gas(1000-18), result.GasLeft; want != got {
		t.Errorf("unexpected gas left, wanted %d, got %d", want, got)
	}
}

func TestPrecompiled_InsufficientGasFails(t *testing.T) {
	sha256 := tosca.Address{19: 0x02}
	result, isPrecompiled := handlePrecompiled(tosca.R13_Cancun, []byte{1}, sha256, 10)
	if !isPrecompiled {
		t.Fatalf("sha256 should be a precompiled contract")
	}
	if result.Success || result.GasLeft != 0 {
		t.Errorf("unexpected result %v", result)
	}
}

func TestPrecompiled_KeccakOfEmptyIsNotPrecompiled(t *testing.T) {
	address := tosca.Address(crypto.Keccak256(nil)[12:])
	if _, isPrecompiled := handlePrecompiled(tosca.R13_Cancun, nil, address, 1000); isPrecompiled {
		t.Errorf("regular address reported as precompiled")
	}
}
