// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package geth

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/Fantom-foundation/evm-runner/go/runner"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/holiman/uint256"
	"go.uber.org/mock/gomock"
)

// storeAndReturnCode stores the first word of the input in slot 0 and
// returns the stored value.
var storeAndReturnCode = []byte{
	0x60, 0x00, 0x35, // CALLDATALOAD(0)
	0x60, 0x00, 0x55, // SSTORE(0, ...)
	0x60, 0x00, 0x54, // SLOAD(0)
	0x60, 0x00, 0x52, // MSTORE(0, ...)
	0x60, 0x20, 0x60, 0x00, 0xf3, // RETURN(0, 32)
}

var revertCode = []byte{0x60, 0x00, 0x60, 0x00, 0xfd}

var logCode = []byte{0x60, 0x00, 0x60, 0x00, 0xa0, 0x00}

// initCode produces init code deploying the given runtime code.
func initCode(runtime []byte) []byte {
	size := byte(len(runtime))
	res := []byte{
		0x60, size, 0x60, 0x0c, 0x60, 0x00, 0x39, // CODECOPY(0, 12, size)
		0x60, size, 0x60, 0x00, 0xf3, // RETURN(0, size)
	}
	return append(res, runtime...)
}

func TestGethVm_IsRegistered(t *testing.T) {
	interpreter, err := tosca.NewInterpreter("geth")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	if _, ok := interpreter.(*gethVm); !ok {
		t.Errorf("unexpected interpreter type %T", interpreter)
	}
}

func TestGethVm_RejectsUnsupportedRevision(t *testing.T) {
	_, err := newGethVm().Run(tosca.Parameters{
		BlockParameters: tosca.BlockParameters{Revision: tosca.R99_UnknownNextRevision},
	})
	var unsupported *tosca.ErrUnsupportedRevision
	if !errors.As(err, &unsupported) {
		t.Errorf("expected unsupported revision error, got %v", err)
	}
}

func TestGethVm_StorageIsAccessedThroughRunContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := tosca.NewMockRunContext(ctrl)
	recipient := tosca.Address{1}
	input := tosca.Word{31: 7}

	context.EXPECT().GetStorage(recipient, tosca.Key{}).Return(tosca.Word{}).Times(1)
	context.EXPECT().GetCommittedStorage(recipient, tosca.Key{}).Return(tosca.Word{}).AnyTimes()
	context.EXPECT().SetStorage(recipient, tosca.Key{}, input).Return(tosca.StorageAdded)
	context.EXPECT().GetStorage(recipient, tosca.Key{}).Return(input).AnyTimes()

	result, err := newGethVm().Run(tosca.Parameters{
		BlockParameters: tosca.BlockParameters{Revision: tosca.R13_Cancun},
		Context:         context,
		Kind:            tosca.Call,
		Gas:             100_000,
		Recipient:       recipient,
		Input:           input[:],
		Code:            storeAndReturnCode,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || !bytes.Equal(result.Output, input[:]) {
		t.Errorf("unexpected result %v", result)
	}
	if result.GasLeft <= 0 || result.GasLeft >= 100_000 {
		t.Errorf("unexpected gas left %d", result.GasLeft)
	}
}

func TestGethVm_FailuresAreReportedAsUnsuccessfulResults(t *testing.T) {
	codes := map[string][]byte{
		"invalid opcode":  {0xfe},
		"stack underflow": {0x01},
		"invalid jump":    {0x60, 0x05, 0x56},
		"out of gas":      {0x5b, 0x60, 0x00, 0x56},
	}
	for name, code := range codes {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			context := tosca.NewMockRunContext(ctrl)
			result, err := newGethVm().Run(tosca.Parameters{
				BlockParameters: tosca.BlockParameters{Revision: tosca.R13_Cancun},
				Context:         context,
				Gas:             1000,
				Code:            code,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Success || result.GasLeft != 0 {
				t.Errorf("unexpected result %v", result)
			}
		})
	}
}

func TestGethVm_RevertKeepsGasAndOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	context := tosca.NewMockRunContext(ctrl)
	result, err := newGethVm().Run(tosca.Parameters{
		BlockParameters: tosca.BlockParameters{Revision: tosca.R13_Cancun},
		Context:         context,
		Gas:             1000,
		Code:            revertCode,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || result.GasLeft != 1000-6 {
		t.Errorf("unexpected result %v", result)
	}
}

func TestMakeChainConfig_ActivatesForksUpToRevision(t *testing.T) {
	tests := map[tosca.Revision]struct {
		berlin, london, shanghai, cancun bool
	}{
		tosca.R07_Istanbul: {false, false, false, false},
		tosca.R09_Berlin:   {true, false, false, false},
		tosca.R10_London:   {true, true, false, false},
		tosca.R12_Shanghai: {true, true, true, false},
		tosca.R13_Cancun:   {true, true, true, true},
	}
	for revision, want := range tests {
		config := MakeChainConfig(nil, revision)
		rules := config.Rules(config.IstanbulBlock, revision >= tosca.R11_Paris, 0)
		if rules.IsBerlin != want.berlin || rules.IsLondon != want.london ||
			rules.IsShanghai != want.shanghai || rules.IsCancun != want.cancun {
			t.Errorf("unexpected rules for %v: %+v", revision, rules)
		}
	}
}

func newTestHostContext() *host.Context {
	return &host.Context{
		AccountID:     "evm.near",
		SignerID:      "alice.near",
		PredecessorID: "alice.near",
		CurrentAmount: *uint256.NewInt(1_000_000),
		PrepaidGas:    100_000_000_000_000,
	}
}

func deploy(t *testing.T, ext host.External, interpreter tosca.Interpreter, runtime []byte) tosca.Address {
	t.Helper()
	config := host.DefaultConfig()
	outcome, err := runner.Run(ext, newTestHostContext(), &config, interpreter, "deploy_code", initCode(runtime))
	if err != nil {
		t.Fatalf("failed to deploy: %v", err)
	}
	address := tosca.Address(outcome.ReturnData)
	outcome, err = runner.Run(ext, newTestHostContext(), &config, interpreter, "get_code", address[:])
	if err != nil || !bytes.Equal(outcome.ReturnData, runtime) {
		t.Fatalf("unexpected deployed code %x, err %v", outcome.ReturnData, err)
	}
	return address
}

func TestGethVm_ContractsCanBeDeployedAndCalled(t *testing.T) {
	interpreter, err := tosca.NewInterpreter("geth")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	ext := host.NewMemoryExternal()
	config := host.DefaultConfig()
	address := deploy(t, ext, interpreter, storeAndReturnCode)

	value := tosca.Word{6}
	args := (&runner.CallArgs{Address: address, Input: value[:]}).Encode()
	outcome, err := runner.Run(ext, newTestHostContext(), &config, interpreter, "call", args)
	if err != nil {
		t.Fatalf("failed to call: %v", err)
	}
	if !bytes.Equal(outcome.ReturnData, value[:]) {
		t.Errorf("unexpected return data %x", outcome.ReturnData)
	}
	if outcome.BurntGas == 0 {
		t.Errorf("call should consume gas")
	}

	slot := runner.GetStorageAtArgs{Address: address}
	outcome, err = runner.Run(ext, newTestHostContext(), &config, interpreter, "get_storage_at", slot.Encode())
	if err != nil || !bytes.Equal(outcome.ReturnData, value[:]) {
		t.Errorf("unexpected storage %x, err %v", outcome.ReturnData, err)
	}

	view := runner.ViewCallArgs{Address: address, Input: []byte{1}}
	outcome, err = runner.Run(ext, newTestHostContext(), &config, interpreter, "view", view.Encode())
	if err != nil {
		t.Fatalf("failed to run view: %v", err)
	}
	if want := (tosca.Word{1}); !bytes.Equal(outcome.ReturnData, want[:]) {
		t.Errorf("unexpected view result %x", outcome.ReturnData)
	}
	outcome, err = runner.Run(ext, newTestHostContext(), &config, interpreter, "get_storage_at", slot.Encode())
	if err != nil || !bytes.Equal(outcome.ReturnData, value[:]) {
		t.Errorf("view modified storage, got %x, err %v", outcome.ReturnData, err)
	}
}

func TestGethVm_RevertIsReported(t *testing.T) {
	interpreter, err := tosca.NewInterpreter("geth")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	ext := host.NewMemoryExternal()
	config := host.DefaultConfig()
	address := deploy(t, ext, interpreter, revertCode)

	args := (&runner.CallArgs{Address: address, Input: []byte{1}}).Encode()
	_, err = runner.Run(ext, newTestHostContext(), &config, interpreter, "call", args)
	var revert *runner.RevertError
	if !errors.As(err, &revert) {
		t.Errorf("expected revert, got %v", err)
	}
}

func TestGethVm_LogsAreReported(t *testing.T) {
	interpreter, err := tosca.NewInterpreter("geth")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	ext := host.NewMemoryExternal()
	config := host.DefaultConfig()
	address := deploy(t, ext, interpreter, logCode)

	args := (&runner.CallArgs{Address: address, Input: []byte{1}}).Encode()
	outcome, err := runner.Run(ext, newTestHostContext(), &config, interpreter, "call", args)
	if err != nil {
		t.Fatalf("failed to call: %v", err)
	}
	if len(outcome.Logs) != 1 || outcome.Logs[0].Address != address {
		t.Errorf("unexpected logs %v", outcome.Logs)
	}
}
