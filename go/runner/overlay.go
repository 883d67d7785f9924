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
	"slices"

	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"golang.org/x/exp/maps"
)

// Overlay is a StateView staging the modifications of a single call frame on
// top of a parent view. Reads are served from the staged modifications first
// and fall back to the parent. The parent is not modified until the overlay
// is committed into it; discarding an overlay is done by dropping it.
type Overlay struct {
	parent StateView

	accounts  map[tosca.Address]Account
	code      map[tosca.Address]tosca.Code
	storage   map[slot]tosca.Word
	destroyed map[tosca.Address]struct{}
	recreated map[tosca.Address]struct{}
	logs      []tosca.Log
}

type slot struct {
	address tosca.Address
	key     tosca.Key
}

func NewOverlay(parent StateView) *Overlay {
	return &Overlay{
		parent:    parent,
		accounts:  map[tosca.Address]Account{},
		code:      map[tosca.Address]tosca.Code{},
		storage:   map[slot]tosca.Word{},
		destroyed: map[tosca.Address]struct{}{},
		recreated: map[tosca.Address]struct{}{},
	}
}

func (o *Overlay) Parent() StateView {
	return o.parent
}

func (o *Overlay) CodeAt(address tosca.Address) (tosca.Code, error) {
	if code, found := o.code[address]; found {
		return code, nil
	}
	if o.isPurged(address) {
		return nil, nil
	}
	return o.parent.CodeAt(address)
}

func (o *Overlay) SetCode(address tosca.Address, code tosca.Code) error {
	o.code[address] = bytes.Clone(code)
	return nil
}

func (o *Overlay) GetAccount(address tosca.Address) (Account, error) {
	if account, found := o.accounts[address]; found {
		return account, nil
	}
	return o.parent.GetAccount(address)
}

func (o *Overlay) SetAccount(address tosca.Address, account Account) error {
	o.accounts[address] = account
	return nil
}

func (o *Overlay) ReadStorageSlot(address tosca.Address, key tosca.Key) (tosca.Word, error) {
	if value, found := o.storage[slot{address, key}]; found {
		return value, nil
	}
	if o.isPurged(address) {
		return tosca.Word{}, nil
	}
	return o.parent.ReadStorageSlot(address, key)
}

func (o *Overlay) WriteStorageSlot(address tosca.Address, key tosca.Key, value tosca.Word) error {
	o.storage[slot{address, key}] = value
	return nil
}

// ClearContractInfo drops staged code and storage of an address and hides
// those of the parent.
func (o *Overlay) ClearContractInfo(address tosca.Address) error {
	o.Recreate(address)
	return nil
}

// Recreate marks an address as being created in this frame. Code and storage
// left over from an earlier incarnation of the address become invisible.
func (o *Overlay) Recreate(address tosca.Address) {
	o.dropContract(address)
	o.recreated[address] = struct{}{}
}

// SelfDestruct moves the balance of an address to the beneficiary and
// destroys the address. The result is true if the address was not destroyed
// before in the current call stack.
func (o *Overlay) SelfDestruct(address, beneficiary tosca.Address) (bool, error) {
	first := !o.HasSelfDestructed(address)
	balance, err := BalanceOf(o, address)
	if err != nil {
		return false, err
	}
	if err := AddBalance(o, beneficiary, &balance); err != nil {
		return false, err
	}
	o.markDestroyed(address)
	o.accounts[address] = Account{}
	return first, nil
}

// HasSelfDestructed checks whether an address was destroyed in this overlay
// or any overlay below it.
func (o *Overlay) HasSelfDestructed(address tosca.Address) bool {
	for cur := o; cur != nil; {
		if _, found := cur.destroyed[address]; found {
			return true
		}
		cur, _ = cur.parent.(*Overlay)
	}
	return false
}

func (o *Overlay) EmitLog(log tosca.Log) {
	o.logs = append(o.logs, log)
}

// Logs lists the logs of the parent followed by the logs of this overlay.
func (o *Overlay) Logs() []tosca.Log {
	return append(slices.Clone(o.parent.Logs()), o.logs...)
}

func (o *Overlay) appendLogs(logs []tosca.Log) {
	o.logs = append(o.logs, logs...)
}

// Commit merges the modifications of a child overlay into this overlay.
func (o *Overlay) Commit(child *Overlay) error {
	for _, address := range sortedAddresses(child.destroyed) {
		o.markDestroyed(address)
	}
	for _, address := range sortedAddresses(child.recreated) {
		o.Recreate(address)
	}
	return child.apply(o)
}

func (o *Overlay) markDestroyed(address tosca.Address) {
	o.dropContract(address)
	o.destroyed[address] = struct{}{}
}

func (o *Overlay) dropContract(address tosca.Address) {
	delete(o.code, address)
	maps.DeleteFunc(o.storage, func(s slot, _ tosca.Word) bool {
		return s.address == address
	})
}

func (o *Overlay) isPurged(address tosca.Address) bool {
	_, destroyed := o.destroyed[address]
	_, recreated := o.recreated[address]
	return destroyed || recreated
}

// purged lists all destroyed and recreated addresses in sorted order.
func (o *Overlay) purged() []tosca.Address {
	all := maps.Clone(o.destroyed)
	maps.Copy(all, o.recreated)
	return sortedAddresses(all)
}

type logTarget interface {
	StateView
	appendLogs([]tosca.Log)
}

// apply writes the staged code, accounts, and storage to the target and
// appends the logs, in this order. Purging of destroyed and recreated
// addresses is left to the target.
func (o *Overlay) apply(target logTarget) error {
	for _, address := range sortedAddresses(o.code) {
		if err := target.SetCode(address, o.code[address]); err != nil {
			return err
		}
	}
	for _, address := range sortedAddresses(o.accounts) {
		if err := target.SetAccount(address, o.accounts[address]); err != nil {
			return err
		}
	}
	slots := maps.Keys(o.storage)
	slices.SortFunc(slots, compareSlots)
	for _, s := range slots {
		if err := target.WriteStorageSlot(s.address, s.key, o.storage[s]); err != nil {
			return err
		}
	}
	target.appendLogs(o.logs)
	return nil
}

func sortedAddresses[V any](set map[tosca.Address]V) []tosca.Address {
	res := maps.Keys(set)
	slices.SortFunc(res, func(a, b tosca.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return res
}

func compareSlots(a, b slot) int {
	if c := bytes.Compare(a.address[:], b.address[:]); c != 0 {
		return c
	}
	return bytes.Compare(a.key[:], b.key[:])
}
