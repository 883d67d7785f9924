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

	"github.com/Fantom-foundation/evm-runner/go/tosca"
)

// Conditions reported to the host. Each invocation failing with one of these
// produces no outcome.
const (
	ErrArgumentParse = tosca.ConstError("argument parse error")

	ErrInsufficientFunds   = tosca.ConstError("insufficient funds")
	ErrInsufficientDeposit = tosca.ConstError("insufficient deposit")
	ErrMissingDeposit      = tosca.ConstError("missing deposit")

	ErrInvalidSubAccount         = tosca.ConstError("invalid sub-account")
	ErrInvalidEcRecoverSignature = tosca.ConstError("invalid ecrecover signature")
	ErrInvalidNonce              = tosca.ConstError("invalid nonce")

	ErrGasLimitExceeded = tosca.ConstError("gas limit exceeded")
	ErrGasExceeded      = tosca.ConstError("exceeded the prepaid gas")
	ErrIntegerOverflow  = tosca.ConstError("integer overflow")
	ErrBurntExceedsUsed = tosca.ConstError("burnt gas exceeds used gas")

	ErrMethodNotFound = tosca.ConstError("method not found")

	ErrEvmExecutionFailed = tosca.ConstError("evm execution failed")
	ErrUnknownExecution   = tosca.ConstError("unknown execution error")
)

// RevertError is returned if the executed code ended in a REVERT.
type RevertError struct {
	Output []byte
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("execution reverted: 0x%x", e.Output)
}

// ErrorKind is the class of an error as seen by the host.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindArgument
	KindBalance
	KindIdentity
	KindResource
	KindDispatch
	KindExecution
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindArgument:
		return "argument"
	case KindBalance:
		return "balance"
	case KindIdentity:
		return "identity"
	case KindResource:
		return "resource"
	case KindDispatch:
		return "dispatch"
	case KindExecution:
		return "execution"
	}
	return "unknown"
}

// Kind classifies the given error. Errors not originating from this package
// are reported as KindUnknown.
func Kind(err error) ErrorKind {
	var revert *RevertError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrArgumentParse):
		return KindArgument
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientDeposit),
		errors.Is(err, ErrMissingDeposit):
		return KindBalance
	case errors.Is(err, ErrInvalidSubAccount),
		errors.Is(err, ErrInvalidEcRecoverSignature),
		errors.Is(err, ErrInvalidNonce):
		return KindIdentity
	case errors.Is(err, ErrGasLimitExceeded),
		errors.Is(err, ErrGasExceeded),
		errors.Is(err, ErrIntegerOverflow),
		errors.Is(err, ErrBurntExceedsUsed):
		return KindResource
	case errors.Is(err, ErrMethodNotFound):
		return KindDispatch
	case errors.Is(err, ErrEvmExecutionFailed), errors.As(err, &revert):
		return KindExecution
	}
	return KindUnknown
}
