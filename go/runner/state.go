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

	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// StateView is the read/write capability on the EVM state used by the runner.
// It is implemented by the root view persisting data through the host and by
// Overlays staging modifications of a single call frame.
type StateView interface {
	// CodeAt returns the code of the given address, nil if there is none.
	CodeAt(tosca.Address) (tosca.Code, error)
	SetCode(tosca.Address, tosca.Code) error

	// GetAccount returns the account record of the given address. Accounts
	// never written read as zero balance and zero nonce.
	GetAccount(tosca.Address) (Account, error)
	SetAccount(tosca.Address, Account) error

	ReadStorageSlot(tosca.Address, tosca.Key) (tosca.Word, error)
	WriteStorageSlot(tosca.Address, tosca.Key, tosca.Word) error

	// ClearContractInfo drops the code and storage of an address, retaining
	// its account record.
	ClearContractInfo(tosca.Address) error

	// Commit applies all modifications staged in the given overlay.
	Commit(*Overlay) error

	// Logs lists the logs emitted so far.
	Logs() []tosca.Log
}

// Account is the record kept for every EVM address.
type Account struct {
	Balance uint256.Int
	Nonce   uint256.Int
}

func (a *Account) IsEmpty() bool {
	return a.Balance.IsZero() && a.Nonce.IsZero()
}

// accountRecord is the RLP encoding of an Account.
type accountRecord struct {
	Balance *uint256.Int
	Nonce   *uint256.Int
}

func encodeAccount(account *Account) ([]byte, error) {
	return rlp.EncodeToBytes(&accountRecord{Balance: &account.Balance, Nonce: &account.Nonce})
}

func decodeAccount(data []byte) (Account, error) {
	var record accountRecord
	if err := rlp.DecodeBytes(data, &record); err != nil {
		return Account{}, fmt.Errorf("invalid account record: %w", err)
	}
	var res Account
	if record.Balance != nil {
		res.Balance = *record.Balance
	}
	if record.Nonce != nil {
		res.Nonce = *record.Nonce
	}
	return res, nil
}

// rootState is the StateView persisting all data through the host. It keeps
// track of the storage usage changes caused by its modifications.
type rootState struct {
	ext      host.External
	overhead int64
	usage    int64
	logs     []tosca.Log
}

func newRootState(ext host.External, recordOverhead uint64) *rootState {
	return &rootState{ext: ext, overhead: int64(recordOverhead)}
}

func (s *rootState) CodeAt(address tosca.Address) (tosca.Code, error) {
	code, err := s.ext.StorageGet(CodeKey(address))
	if err != nil || len(code) == 0 {
		return nil, err
	}
	return code, nil
}

func (s *rootState) SetCode(address tosca.Address, code tosca.Code) error {
	if len(code) == 0 {
		return s.remove(CodeKey(address))
	}
	return s.set(CodeKey(address), code)
}

func (s *rootState) GetAccount(address tosca.Address) (Account, error) {
	data, err := s.ext.StorageGet(AccountKey(address))
	if err != nil || data == nil {
		return Account{}, err
	}
	return decodeAccount(data)
}

func (s *rootState) SetAccount(address tosca.Address, account Account) error {
	if account.IsEmpty() {
		return s.remove(AccountKey(address))
	}
	data, err := encodeAccount(&account)
	if err != nil {
		return err
	}
	return s.set(AccountKey(address), data)
}

func (s *rootState) ReadStorageSlot(address tosca.Address, key tosca.Key) (tosca.Word, error) {
	var res tosca.Word
	data, err := s.ext.StorageGet(StorageKey(address, key))
	if err != nil {
		return res, err
	}
	if len(data) != len(res) && data != nil {
		return res, fmt.Errorf("invalid storage slot of %v, got %d bytes", address, len(data))
	}
	copy(res[:], data)
	return res, nil
}

func (s *rootState) WriteStorageSlot(address tosca.Address, key tosca.Key, value tosca.Word) error {
	if value == (tosca.Word{}) {
		return s.remove(StorageKey(address, key))
	}
	return s.set(StorageKey(address, key), value[:])
}

func (s *rootState) ClearContractInfo(address tosca.Address) error {
	released, err := s.ext.StorageRemoveSubtree(address[:])
	if err != nil {
		return err
	}
	s.usage -= int64(released.Bytes) + int64(released.Records)*s.overhead
	return s.remove(CodeKey(address))
}

func (s *rootState) Commit(o *Overlay) error {
	for _, address := range o.purged() {
		if err := s.ClearContractInfo(address); err != nil {
			return err
		}
	}
	return o.apply(s)
}

func (s *rootState) Logs() []tosca.Log {
	return s.logs
}

func (s *rootState) appendLogs(logs []tosca.Log) {
	s.logs = append(s.logs, logs...)
}

// StorageUsage applies the usage changes of this view to the given initial
// usage. The result saturates at zero.
func (s *rootState) StorageUsage(initial uint64) uint64 {
	if s.usage < 0 && uint64(-s.usage) > initial {
		return 0
	}
	return uint64(int64(initial) + s.usage)
}

func (s *rootState) set(key, value []byte) error {
	previous, err := s.ext.StorageGet(key)
	if err != nil {
		return err
	}
	if err := s.ext.StorageSet(key, value); err != nil {
		return err
	}
	if previous == nil {
		s.usage += int64(len(key)+len(value)) + s.overhead
	} else {
		s.usage += int64(len(value) - len(previous))
	}
	return nil
}

func (s *rootState) remove(key []byte) error {
	previous, err := s.ext.StorageGet(key)
	if err != nil || previous == nil {
		return err
	}
	if err := s.ext.StorageRemove(key); err != nil {
		return err
	}
	s.usage -= int64(len(key)+len(previous)) + s.overhead
	return nil
}

// BalanceOf returns the balance of an address.
func BalanceOf(s StateView, address tosca.Address) (uint256.Int, error) {
	account, err := s.GetAccount(address)
	return account.Balance, err
}

// NonceOf returns the nonce of an address.
func NonceOf(s StateView, address tosca.Address) (uint256.Int, error) {
	account, err := s.GetAccount(address)
	return account.Nonce, err
}

// AddBalance credits the given amount to an address.
func AddBalance(s StateView, address tosca.Address, amount *uint256.Int) error {
	account, err := s.GetAccount(address)
	if err != nil {
		return err
	}
	if _, overflow := account.Balance.AddOverflow(&account.Balance, amount); overflow {
		return ErrIntegerOverflow
	}
	return s.SetAccount(address, account)
}

// SubBalance debits the given amount from an address.
func SubBalance(s StateView, address tosca.Address, amount *uint256.Int) error {
	account, err := s.GetAccount(address)
	if err != nil {
		return err
	}
	if _, underflow := account.Balance.SubOverflow(&account.Balance, amount); underflow {
		return ErrInsufficientFunds
	}
	return s.SetAccount(address, account)
}

// TransferBalance moves the given amount between two addresses.
func TransferBalance(s StateView, from, to tosca.Address, amount *uint256.Int) error {
	if err := SubBalance(s, from, amount); err != nil {
		return err
	}
	return AddBalance(s, to, amount)
}

// SetNonce updates the nonce of an address.
func SetNonce(s StateView, address tosca.Address, nonce *uint256.Int) error {
	account, err := s.GetAccount(address)
	if err != nil {
		return err
	}
	account.Nonce = *nonce
	return s.SetAccount(address, account)
}

// NextNonce returns the current nonce of an address and increments the
// stored one.
func NextNonce(s StateView, address tosca.Address) (uint256.Int, error) {
	account, err := s.GetAccount(address)
	if err != nil {
		return uint256.Int{}, err
	}
	current := account.Nonce
	if _, overflow := account.Nonce.AddOverflow(&current, uint256.NewInt(1)); overflow {
		return uint256.Int{}, ErrIntegerOverflow
	}
	return current, s.SetAccount(address, account)
}
