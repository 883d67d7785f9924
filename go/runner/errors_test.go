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
	"testing"
)

func TestKind_ClassifiesErrors(t *testing.T) {
	tests := map[string]struct {
		err  error
		want ErrorKind
	}{
		"nil":               {nil, KindNone},
		"argument":          {ErrArgumentParse, KindArgument},
		"funds":             {ErrInsufficientFunds, KindBalance},
		"deposit":           {ErrInsufficientDeposit, KindBalance},
		"missing deposit":   {ErrMissingDeposit, KindBalance},
		"sub-account":       {ErrInvalidSubAccount, KindIdentity},
		"signature":         {ErrInvalidEcRecoverSignature, KindIdentity},
		"nonce":             {ErrInvalidNonce, KindIdentity},
		"gas limit":         {ErrGasLimitExceeded, KindResource},
		"gas":               {ErrGasExceeded, KindResource},
		"overflow":          {ErrIntegerOverflow, KindResource},
		"method":            {ErrMethodNotFound, KindDispatch},
		"execution":         {ErrEvmExecutionFailed, KindExecution},
		"revert":            {&RevertError{Output: []byte{1}}, KindExecution},
		"wrapped":           {fmt.Errorf("context: %w", ErrInvalidNonce), KindIdentity},
		"wrapped revert":    {fmt.Errorf("context: %w", &RevertError{}), KindExecution},
		"unknown execution": {ErrUnknownExecution, KindUnknown},
		"foreign":           {errors.New("boom"), KindUnknown},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := Kind(test.err); got != test.want {
				t.Errorf("unexpected kind, wanted %v, got %v", test.want, got)
			}
		})
	}
}

func TestRevertError_PrintsOutput(t *testing.T) {
	err := &RevertError{Output: []byte{0xab, 0xcd}}
	if want, got := "execution reverted: 0xabcd", err.Error(); want != got {
		t.Errorf("unexpected message, wanted %q, got %q", want, got)
	}
}
