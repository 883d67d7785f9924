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
	"math/bits"

	"github.com/Fantom-foundation/evm-runner/go/host"
)

// GasMeter tracks the host gas consumed by an invocation. Burnt gas is spent
// regardless of the outcome; used gas additionally covers the execution of
// receipts emitted by the invocation. Both counters only grow.
type GasMeter struct {
	burnt    host.Gas
	used     host.Gas
	maxBurnt host.Gas
	prepaid  host.Gas
	isView   bool
	fees     host.Fees
	evmCost  host.Gas
	maxEvm   uint64
}

// NewGasMeter creates a meter for an invocation with the given prepaid gas.
// The burnt gas ceiling depends on whether the invocation is a view.
func NewGasMeter(config *host.Config, prepaid host.Gas, isView bool) *GasMeter {
	maxBurnt := config.MaxGasBurnt
	if isView {
		maxBurnt = config.MaxGasBurntView
	}
	return &GasMeter{
		maxBurnt: maxBurnt,
		prepaid:  prepaid,
		isView:   isView,
		fees:     config.Fees,
		evmCost:  config.EvmGasCost,
		maxEvm:   config.MaxEvmGas,
	}
}

func (m *GasMeter) BurntGas() host.Gas {
	return m.burnt
}

func (m *GasMeter) UsedGas() host.Gas {
	return m.used
}

// PayBase charges a cost that is both burnt and used.
func (m *GasMeter) PayBase(cost host.Gas) error {
	return m.deduct(cost, cost)
}

// PayAccumulated charges burn gas as burnt and use gas as used. The burnt
// share may not exceed the used one.
func (m *GasMeter) PayAccumulated(burn, use host.Gas) error {
	return m.deduct(burn, use)
}

// PayAction charges the send fee of an action as burnt and the send and
// execution fees as used.
func (m *GasMeter) PayAction(fee host.Fee, sir bool) error {
	burn := fee.SendFee(sir)
	use, carry := bits.Add64(burn, fee.ExecFee(), 0)
	if carry != 0 {
		return ErrIntegerOverflow
	}
	return m.deduct(burn, use)
}

// PayForNewReceipt charges the creation of a receipt without actions. The
// data dependencies list for each dependency whether sender and receiver are
// the same account; both sending and executing data receipts are burnt.
func (m *GasMeter) PayForNewReceipt(sir bool, dataDependencies []bool) error {
	burn := m.fees.ActionReceiptCreation.SendFee(sir)
	use := m.fees.ActionReceiptCreation.ExecFee()
	var carry uint64
	for _, dependencySir := range dataDependencies {
		base := m.fees.DataReceiptCreationBase
		burn, carry = addChecked(burn, base.SendFee(dependencySir), carry)
		burn, carry = addChecked(burn, base.ExecFee(), carry)
	}
	use, carry = addChecked(use, burn, carry)
	if carry != 0 {
		return ErrIntegerOverflow
	}
	return m.deduct(burn, use)
}

// PayEvmGas charges the host gas equivalent of the given amount of EVM gas.
func (m *GasMeter) PayEvmGas(evmGas uint64) error {
	hi, cost := bits.Mul64(evmGas, m.evmCost)
	if hi != 0 {
		return ErrIntegerOverflow
	}
	return m.deduct(cost, cost)
}

// Exhaust charges one unit more than the remaining gas and reports the
// limit that was hit.
func (m *GasMeter) Exhaust() error {
	remaining := m.Remaining()
	if remaining == ^host.Gas(0) {
		return ErrIntegerOverflow
	}
	return m.deduct(remaining+1, remaining+1)
}

// Remaining is the gas that can still be charged before hitting a limit.
func (m *GasMeter) Remaining() host.Gas {
	remaining := m.maxBurnt - m.burnt
	if !m.isView {
		remaining = min(remaining, m.prepaid-m.used)
	}
	return remaining
}

// EvmGasAllowance is the amount of EVM gas an interpreter may consume
// without exceeding the remaining gas.
func (m *GasMeter) EvmGasAllowance() uint64 {
	return min(m.Remaining()/m.evmCost, m.maxEvm)
}

func (m *GasMeter) deduct(burn, use host.Gas) error {
	if burn > use {
		return ErrBurntExceedsUsed
	}
	newBurnt, carryBurnt := bits.Add64(m.burnt, burn, 0)
	newUsed, carryUsed := bits.Add64(m.used, use, 0)
	if carryBurnt != 0 || carryUsed != 0 {
		return ErrIntegerOverflow
	}
	if newBurnt <= m.maxBurnt && (m.isView || newUsed <= m.prepaid) {
		m.burnt = newBurnt
		m.used = newUsed
		return nil
	}

	usedLimit := m.prepaid
	if m.isView {
		usedLimit = max(m.prepaid, m.maxBurnt)
	}
	m.burnt = min(newBurnt, m.maxBurnt, usedLimit)
	m.used = max(m.used, min(newUsed, usedLimit), m.burnt)
	if newBurnt > m.maxBurnt {
		return ErrGasLimitExceeded
	}
	return ErrGasExceeded
}

func addChecked(a, b, carry uint64) (uint64, uint64) {
	sum, c := bits.Add64(a, b, 0)
	return sum, carry | c
}
