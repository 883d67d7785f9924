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
	"errors"
	"fmt"

	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/ethereum/go-ethereum/log"
)

// Method enumerates the operations offered by the runner.
type Method int

const (
	MethodDeployCode Method = iota
	MethodCall
	MethodMetaCall
	MethodDeposit
	MethodWithdraw
	MethodTransfer
	MethodCreate
	MethodView
	MethodGetCode
	MethodGetStorageAt
	MethodGetNonce
	MethodGetBalance
)

var methodNames = map[string]Method{
	"deploy_code":    MethodDeployCode,
	"call":           MethodCall,
	"meta_call":      MethodMetaCall,
	"deposit":        MethodDeposit,
	"withdraw":       MethodWithdraw,
	"transfer":       MethodTransfer,
	"create":         MethodCreate,
	"view":           MethodView,
	"get_code":       MethodGetCode,
	"get_storage_at": MethodGetStorageAt,
	"get_nonce":      MethodGetNonce,
	"get_balance":    MethodGetBalance,

	// legacy names
	"call_function":      MethodCall,
	"view_function_call": MethodView,
}

// ParseMethod resolves a method name, including legacy aliases.
func ParseMethod(name string) (Method, error) {
	method, found := methodNames[name]
	if !found {
		return 0, fmt.Errorf("%w: %q", ErrMethodNotFound, name)
	}
	return method, nil
}

func (m Method) String() string {
	switch m {
	case MethodDeployCode:
		return "deploy_code"
	case MethodCall:
		return "call"
	case MethodMetaCall:
		return "meta_call"
	case MethodDeposit:
		return "deposit"
	case MethodWithdraw:
		return "withdraw"
	case MethodTransfer:
		return "transfer"
	case MethodCreate:
		return "create"
	case MethodView:
		return "view"
	case MethodGetCode:
		return "get_code"
	case MethodGetStorageAt:
		return "get_storage_at"
	case MethodGetNonce:
		return "get_nonce"
	case MethodGetBalance:
		return "get_balance"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// IsView reports whether the method leaves the state untouched.
func (m Method) IsView() bool {
	switch m {
	case MethodView, MethodGetCode, MethodGetStorageAt, MethodGetNonce, MethodGetBalance:
		return true
	}
	return false
}

// Dispatch runs the given method and encodes its result.
func (c *EvmContext) Dispatch(method Method, args []byte) ([]byte, error) {
	switch method {
	case MethodDeployCode:
		address, err := c.DeployCode(args)
		return encodeAddress(address), err
	case MethodCall:
		return c.Call(args)
	case MethodMetaCall:
		return c.MetaCall(args)
	case MethodDeposit:
		balance, err := c.Deposit(args)
		return encodeUint256(&balance), err
	case MethodWithdraw:
		return []byte{}, c.Withdraw(args)
	case MethodTransfer:
		return []byte{}, c.Transfer(args)
	case MethodCreate:
		return []byte{}, c.CreateEvm(args)
	case MethodView:
		return c.ViewCall(args)
	case MethodGetCode:
		return c.GetCode(args)
	case MethodGetStorageAt:
		return c.GetStorageAt(args)
	case MethodGetNonce:
		nonce, err := c.GetNonce(args)
		return encodeUint256(&nonce), err
	case MethodGetBalance:
		balance, err := c.GetBalance(args)
		return encodeUint256(&balance), err
	}
	return nil, fmt.Errorf("%w: %v", ErrMethodNotFound, method)
}

// Run executes a single invocation of the runner. An outcome is only
// produced on success. Errors are either classified by Kind or wrap
// ErrUnknownExecution.
func Run(
	ext host.External,
	ctx *host.Context,
	config *host.Config,
	interpreter tosca.Interpreter,
	methodName string,
	args []byte,
) (*Outcome, error) {
	dispatchedMeter.Mark(1)
	method, err := ParseMethod(methodName)
	if err != nil {
		failedMeter.Mark(1)
		return nil, err
	}

	context := NewEvmContext(ext, ctx, config, interpreter)
	log.Debug("Running method", "method", method, "account", ctx.AccountID,
		"predecessor", ctx.PredecessorID, "args", len(args), "gas", ctx.PrepaidGas)
	result, err := context.Dispatch(method, args)
	if err != nil {
		failedMeter.Mark(1)
		kind := Kind(err)
		if kind == KindUnknown {
			log.Warn("Method failed", "method", method, "err", err)
			if !errors.Is(err, ErrUnknownExecution) {
				err = fmt.Errorf("%w: %w", ErrUnknownExecution, err)
			}
		} else {
			log.Debug("Method failed", "method", method, "kind", kind, "err", err)
		}
		return nil, err
	}

	outcome := context.outcome(result)
	burntGasMeter.Mark(int64(outcome.BurntGas))
	usedGasMeter.Mark(int64(outcome.UsedGas))
	log.Debug("Method completed", "method", method, "burnt", outcome.BurntGas,
		"used", outcome.UsedGas, "storage", outcome.StorageUsage, "logs", len(outcome.Logs))
	return outcome, nil
}
