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
	"time"

	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// EvmContext executes the operations of a single invocation of the runner
// on the EVM state of the hosting account.
type EvmContext struct {
	ctx         host.Context
	ext         host.External
	config      host.Config
	interpreter tosca.Interpreter

	gas   *GasMeter
	state *rootState
	meta  *MetaAuthenticator

	// currentAmount is the liquid balance of the hosting account, including
	// the attached deposit.
	currentAmount uint256.Int
}

func NewEvmContext(ext host.External, ctx *host.Context, config *host.Config, interpreter tosca.Interpreter) *EvmContext {
	current := ctx.CurrentAmount
	if _, overflow := current.AddOverflow(&ctx.CurrentAmount, &ctx.AttachedDeposit); overflow {
		current = ctx.CurrentAmount
	}
	return &EvmContext{
		ctx:           *ctx,
		ext:           ext,
		config:        *config,
		interpreter:   interpreter,
		gas:           NewGasMeter(config, ctx.PrepaidGas, ctx.IsView),
		state:         newRootState(ext, config.StorageRecordOverhead),
		meta:          NewMetaAuthenticator(config, ctx.AccountID),
		currentAmount: current,
	}
}

// DeployCode creates a contract from the given init code. The predecessor is
// credited the attached deposit, which is then transferred to the contract.
func (c *EvmContext) DeployCode(code []byte) (tosca.Address, error) {
	sender := AccountIDToAddress(c.ctx.PredecessorID)
	state := NewOverlay(c.state)
	if err := AddBalance(state, sender, &c.ctx.AttachedDeposit); err != nil {
		return tosca.Address{}, err
	}
	result, err := c.execute(state, message{
		kind:   tosca.Create,
		origin: sender,
		sender: sender,
		value:  c.ctx.AttachedDeposit,
		input:  code,
	})
	if err != nil {
		return tosca.Address{}, err
	}
	return result.CreatedAddress, c.commit(state)
}

// Call runs the contract named by the arguments on behalf of the predecessor.
func (c *EvmContext) Call(data []byte) ([]byte, error) {
	args, err := ParseCallArgs(data)
	if err != nil {
		return nil, err
	}
	sender := AccountIDToAddress(c.ctx.PredecessorID)
	state := NewOverlay(c.state)
	if err := AddBalance(state, sender, &c.ctx.AttachedDeposit); err != nil {
		return nil, err
	}
	result, err := c.execute(state, message{
		kind:      tosca.Call,
		origin:    AccountIDToAddress(c.ctx.SignerID),
		sender:    sender,
		recipient: args.Address,
		value:     c.ctx.AttachedDeposit,
		input:     args.Input,
	})
	if err != nil {
		return nil, err
	}
	return result.Output, c.commit(state)
}

// MetaCall runs a call on behalf of the signer of the arguments. The nonce of
// the signer only advances if the call succeeds.
func (c *EvmContext) MetaCall(data []byte) ([]byte, error) {
	args, err := ParseMetaCallArgs(data)
	if err != nil {
		return nil, err
	}
	state := NewOverlay(c.state)
	sender, err := c.meta.Authenticate(state, &args)
	if err != nil {
		return nil, err
	}
	if err := AddBalance(state, sender, &c.ctx.AttachedDeposit); err != nil {
		return nil, err
	}
	result, err := c.execute(state, message{
		kind:      tosca.Call,
		origin:    sender,
		sender:    sender,
		recipient: args.Address,
		value:     c.ctx.AttachedDeposit,
		input:     args.Input,
	})
	if err != nil {
		return nil, err
	}
	return result.Output, c.commit(state)
}

// ViewCall runs a call whose effects are discarded.
func (c *EvmContext) ViewCall(data []byte) ([]byte, error) {
	args, err := ParseViewCallArgs(data)
	if err != nil {
		return nil, err
	}
	state := NewOverlay(c.state)
	result, err := c.execute(state, message{
		kind:      tosca.Call,
		origin:    args.Sender,
		sender:    args.Sender,
		recipient: args.Address,
		value:     args.Amount,
		input:     args.Input,
	})
	discardedCounter.Inc(1)
	if err != nil {
		return nil, err
	}
	return result.Output, nil
}

func (c *EvmContext) GetCode(data []byte) ([]byte, error) {
	args, err := ParseAddressArgs(data)
	if err != nil {
		return nil, err
	}
	code, err := c.state.CodeAt(args.Address)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, code...), nil
}

func (c *EvmContext) GetStorageAt(data []byte) ([]byte, error) {
	args, err := ParseGetStorageAtArgs(data)
	if err != nil {
		return nil, err
	}
	value, err := c.state.ReadStorageSlot(args.Address, args.Key)
	if err != nil {
		return nil, err
	}
	return value[:], nil
}

func (c *EvmContext) GetBalance(data []byte) (uint256.Int, error) {
	args, err := ParseAddressArgs(data)
	if err != nil {
		return uint256.Int{}, err
	}
	return BalanceOf(c.state, args.Address)
}

func (c *EvmContext) GetNonce(data []byte) (uint256.Int, error) {
	args, err := ParseAddressArgs(data)
	if err != nil {
		return uint256.Int{}, err
	}
	return NonceOf(c.state, args.Address)
}

// Deposit credits the attached deposit to the given address and returns its
// new balance.
func (c *EvmContext) Deposit(data []byte) (uint256.Int, error) {
	args, err := ParseAddressArgs(data)
	if err != nil {
		return uint256.Int{}, err
	}
	if c.ctx.AttachedDeposit.IsZero() {
		return uint256.Int{}, ErrMissingDeposit
	}
	if err := AddBalance(c.state, args.Address, &c.ctx.AttachedDeposit); err != nil {
		return uint256.Int{}, err
	}
	return BalanceOf(c.state, args.Address)
}

// Withdraw moves funds of the predecessor out of the EVM to a host account.
func (c *EvmContext) Withdraw(data []byte) error {
	args, err := ParseWithdrawArgs(data)
	if err != nil {
		return err
	}
	sender := AccountIDToAddress(c.ctx.PredecessorID)
	balance, err := BalanceOf(c.state, sender)
	if err != nil {
		return err
	}
	if args.Amount.Gt(&balance) {
		return ErrInsufficientFunds
	}
	if err := SubBalance(c.state, sender, &args.Amount); err != nil {
		return err
	}
	receipt, err := c.ext.CreateReceipt(args.AccountID)
	if err != nil {
		return err
	}
	if _, underflow := c.currentAmount.SubOverflow(&c.currentAmount, &args.Amount); underflow {
		return ErrInsufficientFunds
	}
	if err := c.gas.PayForNewReceipt(false, nil); err != nil {
		return err
	}
	if err := c.gas.PayAction(c.config.Fees.Transfer, false); err != nil {
		return err
	}
	return c.ext.AppendActionTransfer(receipt, &args.Amount)
}

// Transfer moves funds of the predecessor to another EVM address.
func (c *EvmContext) Transfer(data []byte) error {
	args, err := ParseTransferArgs(data)
	if err != nil {
		return err
	}
	sender := AccountIDToAddress(c.ctx.PredecessorID)
	balance, err := BalanceOf(c.state, sender)
	if err != nil {
		return err
	}
	if args.Amount.Gt(&balance) {
		return ErrInsufficientFunds
	}
	return TransferBalance(c.state, sender, args.Address, &args.Amount)
}

// CreateEvm creates a sub-account of the hosting account and sends the
// attached deposit to it.
func (c *EvmContext) CreateEvm(data []byte) error {
	args, err := ParseCreateArgs(data)
	if err != nil {
		return err
	}
	if !host.IsValidSubAccountID(c.ctx.AccountID, args.AccountID) {
		return ErrInvalidSubAccount
	}
	if c.ctx.AttachedDeposit.Lt(&c.config.EvmDeposit) {
		return ErrInsufficientDeposit
	}
	if _, underflow := c.currentAmount.SubOverflow(&c.currentAmount, &c.ctx.AttachedDeposit); underflow {
		return ErrInsufficientFunds
	}
	receipt, err := c.ext.CreateReceipt(args.AccountID)
	if err != nil {
		return err
	}
	if err := c.gas.PayForNewReceipt(false, nil); err != nil {
		return err
	}
	if err := c.gas.PayAction(c.config.Fees.CreateAccount, false); err != nil {
		return err
	}
	if err := c.ext.AppendActionCreateAccount(receipt); err != nil {
		return err
	}
	if err := c.gas.PayAction(c.config.Fees.Transfer, false); err != nil {
		return err
	}
	return c.ext.AppendActionTransfer(receipt, &c.ctx.AttachedDeposit)
}

// message describes a top-level execution.
type message struct {
	kind      tosca.CallKind
	origin    tosca.Address
	sender    tosca.Address
	recipient tosca.Address
	value     uint256.Int
	input     []byte
}

// execute runs a message against the given overlay and charges the consumed
// EVM gas. Reverted and failed executions are reported as errors; in this
// case the overlay must be discarded.
func (c *EvmContext) execute(state *Overlay, msg message) (tosca.CallResult, error) {
	start := time.Now()
	defer executionTimer.UpdateSince(start)

	balance, err := BalanceOf(state, msg.sender)
	if err != nil {
		return tosca.CallResult{}, err
	}
	if balance.Lt(&msg.value) {
		return tosca.CallResult{}, ErrInsufficientFunds
	}

	gas := c.gas.EvmGasAllowance()
	inv := &invocation{
		interpreter: c.interpreter,
		blockParameters: tosca.BlockParameters{
			ChainID:     tosca.Word(uint256.NewInt(c.config.ChainID).Bytes32()),
			BlockNumber: int64(c.ctx.BlockHeight),
			Timestamp:   int64(c.ctx.Timestamp),
			GasLimit:    tosca.Gas(c.config.MaxEvmGas),
			Revision:    c.config.Revision,
		},
		transactionParameters: tosca.TransactionParameters{
			Origin: msg.origin,
		},
		committed: c.state,
	}
	frame := newRunContext(inv, state, 0, false)
	outcome, err := frame.call(msg.kind, tosca.CallParameters{
		Sender:    msg.sender,
		Recipient: msg.recipient,
		Value:     tosca.ValueFromUint256(&msg.value),
		Input:     msg.input,
		Gas:       tosca.Gas(gas),
	})
	if err != nil {
		log.Warn("Interpreter failed", "kind", msg.kind, "recipient", msg.recipient, "err", err)
		return tosca.CallResult{}, fmt.Errorf("%w: %w", ErrUnknownExecution, err)
	}
	if inv.err != nil {
		return tosca.CallResult{}, fmt.Errorf("failed to access state: %w", inv.err)
	}

	result := outcome.result
	used := gas
	if result.GasLeft >= 0 && uint64(result.GasLeft) <= gas {
		used = gas - uint64(result.GasLeft)
	}
	if result.Success && result.GasRefund > 0 {
		used -= min(uint64(result.GasRefund), used/c.refundQuotient())
	}
	if err := c.gas.PayEvmGas(used); err != nil {
		return tosca.CallResult{}, err
	}
	if !result.Success {
		if outcome.reverted {
			return tosca.CallResult{}, &RevertError{Output: result.Output}
		}
		// Running dry on an allowance cut by the host budget means the
		// execution hit a host gas limit.
		if used == gas && gas < c.config.MaxEvmGas {
			return tosca.CallResult{}, c.gas.Exhaust()
		}
		return tosca.CallResult{}, ErrEvmExecutionFailed
	}
	return result, nil
}

// refundQuotient bounds the refunded share of the consumed EVM gas.
func (c *EvmContext) refundQuotient() uint64 {
	if c.config.Revision >= tosca.R10_London {
		return 5
	}
	return 2
}

func (c *EvmContext) commit(state *Overlay) error {
	if err := c.state.Commit(state); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	committedCounter.Inc(1)
	return nil
}

// outcome summarizes the effects of the invocation.
func (c *EvmContext) outcome(returnData []byte) *Outcome {
	return &Outcome{
		Balance:      c.currentAmount,
		StorageUsage: c.state.StorageUsage(c.ctx.StorageUsage),
		ReturnData:   returnData,
		BurntGas:     c.gas.BurntGas(),
		UsedGas:      c.gas.UsedGas(),
		Logs:         c.state.Logs(),
	}
}
