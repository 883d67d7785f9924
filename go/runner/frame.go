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
	"fmt"
	"math"

	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

const (
	MaxRecursiveDepth = 1024

	maxCodeSize          = 24576
	createGasCostPerByte = 200
)

var emptyCodeHash = tosca.Hash(crypto.Keccak256(nil))

// invocation is the state shared by all frames of a top-level execution.
type invocation struct {
	interpreter           tosca.Interpreter
	blockParameters       tosca.BlockParameters
	transactionParameters tosca.TransactionParameters
	// committed is the state at the begin of the invocation.
	committed StateView
	// err is the first error reported by the state. The RunContext interface
	// offers no way to report errors to the interpreter, so the execution
	// proceeds and is failed once the interpreter returns.
	err error
}

func (i *invocation) setError(err error) {
	if err != nil && i.err == nil {
		i.err = err
	}
}

// runContext is the tosca.RunContext offered to the interpreter running the
// code of a single call frame. All modifications are staged in overlays owned
// by the frame; the bottom overlay is merged into the state of the calling
// frame if the call succeeds. Snapshots are implemented by stacking further
// overlays on top.
type runContext struct {
	*invocation
	layers []*Overlay
	depth  int
	static bool
}

func newRunContext(inv *invocation, state *Overlay, depth int, static bool) *runContext {
	return &runContext{
		invocation: inv,
		layers:     []*Overlay{state},
		depth:      depth,
		static:     static,
	}
}

func (r *runContext) state() *Overlay {
	return r.layers[len(r.layers)-1]
}

func (r *runContext) child(static bool) *runContext {
	return newRunContext(r.invocation, NewOverlay(r.state()), r.depth+1, static)
}

// fold merges all snapshot layers into the bottom overlay of the frame.
func (r *runContext) fold() *Overlay {
	for i := len(r.layers) - 1; i > 0; i-- {
		r.setError(r.layers[i-1].Commit(r.layers[i]))
	}
	r.layers = r.layers[:1]
	return r.layers[0]
}

func (r *runContext) commit(child *runContext) {
	r.setError(r.state().Commit(child.fold()))
}

func (r *runContext) account(address tosca.Address) Account {
	account, err := r.state().GetAccount(address)
	r.setError(err)
	return account
}

func (r *runContext) setAccount(address tosca.Address, account Account) {
	r.setError(r.state().SetAccount(address, account))
}

func (r *runContext) AccountExists(address tosca.Address) bool {
	account := r.account(address)
	return !account.IsEmpty() || r.GetCodeSize(address) > 0
}

func (r *runContext) GetBalance(address tosca.Address) tosca.Value {
	account := r.account(address)
	return tosca.ValueFromUint256(&account.Balance)
}

func (r *runContext) SetBalance(address tosca.Address, value tosca.Value) {
	account := r.account(address)
	account.Balance = *value.ToUint256()
	r.setAccount(address, account)
}

func (r *runContext) GetNonce(address tosca.Address) uint64 {
	account := r.account(address)
	if !account.Nonce.IsUint64() {
		return math.MaxUint64
	}
	return account.Nonce.Uint64()
}

func (r *runContext) SetNonce(address tosca.Address, nonce uint64) {
	account := r.account(address)
	account.Nonce.SetUint64(nonce)
	r.setAccount(address, account)
}

func (r *runContext) GetCode(address tosca.Address) tosca.Code {
	code, err := r.state().CodeAt(address)
	r.setError(err)
	return code
}

func (r *runContext) GetCodeHash(address tosca.Address) tosca.Hash {
	if !r.AccountExists(address) {
		return tosca.Hash{}
	}
	return hashCode(r.GetCode(address))
}

func (r *runContext) GetCodeSize(address tosca.Address) int {
	return len(r.GetCode(address))
}

func (r *runContext) SetCode(address tosca.Address, code tosca.Code) {
	r.setError(r.state().SetCode(address, code))
}

func (r *runContext) GetStorage(address tosca.Address, key tosca.Key) tosca.Word {
	value, err := r.state().ReadStorageSlot(address, key)
	r.setError(err)
	return value
}

func (r *runContext) SetStorage(address tosca.Address, key tosca.Key, value tosca.Word) tosca.StorageStatus {
	original := r.GetCommittedStorage(address, key)
	current := r.GetStorage(address, key)
	r.setError(r.state().WriteStorageSlot(address, key, value))
	return tosca.GetStorageStatus(original, current, value)
}

func (r *runContext) GetCommittedStorage(address tosca.Address, key tosca.Key) tosca.Word {
	value, err := r.committed.ReadStorageSlot(address, key)
	r.setError(err)
	return value
}

func (r *runContext) SelfDestruct(address tosca.Address, beneficiary tosca.Address) bool {
	first, err := r.state().SelfDestruct(address, beneficiary)
	r.setError(err)
	return first
}

func (r *runContext) HasSelfDestructed(address tosca.Address) bool {
	return r.state().HasSelfDestructed(address)
}

func (r *runContext) CreateSnapshot() tosca.Snapshot {
	r.layers = append(r.layers, NewOverlay(r.state()))
	return tosca.Snapshot(len(r.layers) - 1)
}

func (r *runContext) RestoreSnapshot(snapshot tosca.Snapshot) {
	if snapshot < 1 {
		r.setError(fmt.Errorf("invalid snapshot %d", snapshot))
		return
	}
	if int(snapshot) < len(r.layers) {
		r.layers = r.layers[:snapshot]
	}
}

func (r *runContext) EmitLog(log tosca.Log) {
	r.state().EmitLog(log)
}

func (r *runContext) GetLogs() []tosca.Log {
	return r.state().Logs()
}

func (r *runContext) Call(kind tosca.CallKind, parameters tosca.CallParameters) (tosca.CallResult, error) {
	outcome, err := r.call(kind, parameters)
	return outcome.result, err
}

// callOutcome is the result of a call as seen by the runner.
type callOutcome struct {
	result   tosca.CallResult
	reverted bool
}

func (r *runContext) call(kind tosca.CallKind, parameters tosca.CallParameters) (callOutcome, error) {
	log.Trace("Running frame", "kind", kind, "depth", r.depth,
		"sender", parameters.Sender, "recipient", parameters.Recipient, "gas", parameters.Gas)
	if kind == tosca.Create || kind == tosca.Create2 {
		return r.executeCreate(kind, parameters)
	}
	return r.executeCall(kind, parameters)
}

func (r *runContext) executeCall(kind tosca.CallKind, parameters tosca.CallParameters) (callOutcome, error) {
	errResult := callOutcome{result: tosca.CallResult{GasLeft: parameters.Gas}}
	if r.depth > MaxRecursiveDepth {
		return errResult, nil
	}
	if kind == tosca.Call || kind == tosca.CallCode {
		if !canTransferValue(r, parameters.Value, parameters.Sender, &parameters.Recipient) {
			return errResult, nil
		}
	}
	revision := r.blockParameters.Revision
	recipient := parameters.Recipient

	if revision >= tosca.R09_Berlin &&
		!isPrecompiled(recipient, revision) &&
		!r.AccountExists(recipient) &&
		parameters.Value.IsZero() {
		return callOutcome{result: tosca.CallResult{Success: true, GasLeft: parameters.Gas}}, nil
	}

	child := r.child(r.static || kind == tosca.StaticCall)
	if kind == tosca.Call || kind == tosca.CallCode {
		transferValue(child, parameters.Value, parameters.Sender, recipient)
	}

	if result, isPrecompiled := handlePrecompiled(revision, parameters.Input, recipient, parameters.Gas); isPrecompiled {
		if !result.Success {
			result.GasLeft = 0
			return callOutcome{result: result}, nil
		}
		r.commit(child)
		return callOutcome{result: result}, nil
	}

	codeAddress := recipient
	if kind == tosca.DelegateCall || kind == tosca.CallCode {
		codeAddress = parameters.CodeAddress
	}
	code := r.GetCode(codeAddress)
	if len(code) == 0 {
		r.commit(child)
		return callOutcome{result: tosca.CallResult{Success: true, GasLeft: parameters.Gas}}, nil
	}
	codeHash := r.GetCodeHash(codeAddress)

	result, err := r.interpreter.Run(tosca.Parameters{
		BlockParameters:       r.blockParameters,
		TransactionParameters: r.transactionParameters,
		Context:               child,
		Kind:                  kind,
		Static:                child.static,
		Depth:                 r.depth,
		Gas:                   parameters.Gas,
		Recipient:             recipient,
		Sender:                parameters.Sender,
		Input:                 parameters.Input,
		Value:                 parameters.Value,
		CodeHash:              &codeHash,
		Code:                  code,
	})
	if err != nil {
		return callOutcome{}, err
	}

	outcome := callOutcome{result: tosca.CallResult{
		Output:    result.Output,
		GasLeft:   result.GasLeft,
		GasRefund: result.GasRefund,
		Success:   result.Success,
	}}
	if !result.Success {
		outcome.reverted = isRevert(result)
		if !outcome.reverted {
			outcome.result.GasLeft = 0
		}
		return outcome, nil
	}
	r.commit(child)
	return outcome, nil
}

func (r *runContext) executeCreate(kind tosca.CallKind, parameters tosca.CallParameters) (callOutcome, error) {
	errResult := callOutcome{result: tosca.CallResult{GasLeft: parameters.Gas}}
	if r.depth > MaxRecursiveDepth {
		return errResult, nil
	}
	if !canTransferValue(r, parameters.Value, parameters.Sender, nil) {
		return errResult, nil
	}
	nonce := r.GetNonce(parameters.Sender)
	if nonce == math.MaxUint64 {
		return errResult, nil
	}
	r.SetNonce(parameters.Sender, nonce+1)

	code := tosca.Code(parameters.Input)
	codeHash := hashCode(code)
	createdAddress, err := createAddress(kind, parameters.Sender, nonce, parameters.Salt, codeHash)
	if err != nil {
		return errResult, nil
	}

	if r.GetNonce(createdAddress) != 0 ||
		(r.GetCodeHash(createdAddress) != (tosca.Hash{}) &&
			r.GetCodeHash(createdAddress) != emptyCodeHash) {
		return callOutcome{}, nil
	}

	child := r.child(r.static)
	child.state().Recreate(createdAddress)
	child.SetNonce(createdAddress, 1)
	transferValue(child, parameters.Value, parameters.Sender, createdAddress)

	result, err := r.interpreter.Run(tosca.Parameters{
		BlockParameters:       r.blockParameters,
		TransactionParameters: r.transactionParameters,
		Context:               child,
		Kind:                  kind,
		Static:                child.static,
		Depth:                 r.depth,
		Gas:                   parameters.Gas,
		Recipient:             createdAddress,
		Sender:                parameters.Sender,
		Value:                 parameters.Value,
		CodeHash:              &codeHash,
		Code:                  code,
	})
	if err != nil {
		return callOutcome{}, err
	}
	if !result.Success {
		if isRevert(result) {
			return callOutcome{
				result:   tosca.CallResult{Output: result.Output, GasLeft: result.GasLeft, CreatedAddress: createdAddress},
				reverted: true,
			}, nil
		}
		return callOutcome{}, nil
	}

	outCode := result.Output
	success := len(outCode) <= maxCodeSize
	if r.blockParameters.Revision >= tosca.R10_London && len(outCode) > 0 && outCode[0] == 0xEF {
		success = false
	}
	createGas := tosca.Gas(len(outCode) * createGasCostPerByte)
	if result.GasLeft < createGas {
		success = false
	}
	if !success {
		return callOutcome{}, nil
	}

	child.SetCode(createdAddress, tosca.Code(outCode))
	r.commit(child)
	return callOutcome{result: tosca.CallResult{
		GasLeft:        result.GasLeft - createGas,
		GasRefund:      result.GasRefund,
		Success:        true,
		CreatedAddress: createdAddress,
	}}, nil
}

func isRevert(result tosca.Result) bool {
	return !result.Success && (result.GasLeft > 0 || len(result.Output) > 0)
}

func hashCode(code tosca.Code) tosca.Hash {
	return tosca.Hash(crypto.Keccak256(code))
}

func createAddress(
	kind tosca.CallKind,
	sender tosca.Address,
	nonce uint64,
	salt tosca.Hash,
	initHash tosca.Hash,
) (tosca.Address, error) {
	if kind == tosca.Create {
		return ContractAddress(sender, uint256.NewInt(nonce))
	}
	return tosca.Address(crypto.CreateAddress2(common.Address(sender), common.Hash(salt), initHash[:])), nil
}

func canTransferValue(
	context tosca.WorldState,
	value tosca.Value,
	sender tosca.Address,
	recipient *tosca.Address,
) bool {
	if value.IsZero() {
		return true
	}
	senderBalance := context.GetBalance(sender)
	if senderBalance.Cmp(value) < 0 {
		return false
	}
	if recipient == nil || sender == *recipient {
		return true
	}
	receiverBalance := context.GetBalance(*recipient)
	updatedBalance := tosca.Add(receiverBalance, value)
	return updatedBalance.Cmp(receiverBalance) >= 0 && updatedBalance.Cmp(value) >= 0
}

// transferValue moves value between accounts; canTransferValue must have
// been checked before.
func transferValue(
	context tosca.WorldState,
	value tosca.Value,
	sender tosca.Address,
	recipient tosca.Address,
) {
	if value.IsZero() || sender == recipient {
		return
	}
	senderBalance := context.GetBalance(sender)
	receiverBalance := context.GetBalance(recipient)
	context.SetBalance(sender, tosca.Sub(senderBalance, value))
	context.SetBalance(recipient, tosca.Add(receiverBalance, value))
}
