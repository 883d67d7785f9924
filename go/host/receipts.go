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

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ActionKind enumerates the host actions a receipt may carry.
type ActionKind int

const (
	ActionTransfer ActionKind = iota
	ActionCreateAccount
)

func (k ActionKind) String() string {
	switch k {
	case ActionTransfer:
		return "transfer"
	case ActionCreateAccount:
		return "create_account"
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Action is a single step of a receipt.
type Action struct {
	Kind   ActionKind
	Amount uint256.Int // < only relevant for transfers
}

// Receipt is an outgoing message to another account of the host chain.
type Receipt struct {
	Receiver AccountID
	Actions  []Action
}

// receiptLog records the receipts requested through an External.
type receiptLog struct {
	receipts []Receipt
}

func (l *receiptLog) CreateReceipt(receiver AccountID) (ReceiptIndex, error) {
	l.receipts = append(l.receipts, Receipt{Receiver: receiver})
	return ReceiptIndex(len(l.receipts) - 1), nil
}

func (l *receiptLog) AppendActionTransfer(receipt ReceiptIndex, amount *uint256.Int) error {
	return l.appendAction(receipt, Action{Kind: ActionTransfer, Amount: *amount})
}

func (l *receiptLog) AppendActionCreateAccount(receipt ReceiptIndex) error {
	return l.appendAction(receipt, Action{Kind: ActionCreateAccount})
}

func (l *receiptLog) appendAction(receipt ReceiptIndex, action Action) error {
	if receipt >= ReceiptIndex(len(l.receipts)) {
		return fmt.Errorf("unknown receipt %d", receipt)
	}
	l.receipts[receipt].Actions = append(l.receipts[receipt].Actions, action)
	return nil
}

// Receipts lists the receipts created so far.
func (l *receiptLog) Receipts() []Receipt {
	return l.receipts
}

func (l *receiptLog) reset() {
	l.receipts = nil
}
