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
	"encoding/binary"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/holiman/uint256"
)

// This file defines the argument layouts of the runner methods. Structured
// arguments use little-endian length prefixes and 128-bit little-endian
// amounts; addresses, keys, and 256-bit values are stored as-is.

const (
	addressLength = len(tosca.Address{})
	wordLength    = len(tosca.Word{})
	amountLength  = 16
	lengthPrefix  = 4

	// minMetaCallLength covers signature, nonce, and address. Meta calls
	// need at least one byte of input on top.
	minMetaCallLength = SignatureLength + wordLength + addressLength
)

// CallArgs is the argument of a call: a target address followed by the
// call input.
type CallArgs struct {
	Address tosca.Address
	Input   []byte
}

func ParseCallArgs(data []byte) (CallArgs, error) {
	if len(data) <= addressLength {
		return CallArgs{}, fmt.Errorf("%w: call needs more than %d bytes, got %d", ErrArgumentParse, addressLength, len(data))
	}
	return CallArgs{
		Address: tosca.Address(data[:addressLength]),
		Input:   data[addressLength:],
	}, nil
}

func (a *CallArgs) Encode() []byte {
	return append(slices.Clone(a.Address[:]), a.Input...)
}

// MetaCallArgs is the argument of a meta call: a signature and a nonce
// followed by the signed payload, which is the address and input of the call.
type MetaCallArgs struct {
	Signature [SignatureLength]byte
	Nonce     uint256.Int
	Address   tosca.Address
	Input     []byte
	Payload   []byte
}

func ParseMetaCallArgs(data []byte) (MetaCallArgs, error) {
	if len(data) <= minMetaCallLength {
		return MetaCallArgs{}, fmt.Errorf("%w: meta call needs more than %d bytes, got %d", ErrArgumentParse, minMetaCallLength, len(data))
	}
	var res MetaCallArgs
	copy(res.Signature[:], data[:SignatureLength])
	res.Nonce.SetBytes(data[SignatureLength : SignatureLength+wordLength])
	res.Payload = data[SignatureLength+wordLength:]
	res.Address = tosca.Address(res.Payload[:addressLength])
	res.Input = res.Payload[addressLength:]
	return res, nil
}

// EncodeMetaCallArgs assembles the argument of a meta call.
func EncodeMetaCallArgs(signature *[SignatureLength]byte, nonce *uint256.Int, payload []byte) []byte {
	res := make([]byte, 0, SignatureLength+wordLength+len(payload))
	res = append(res, signature[:]...)
	encodedNonce := nonce.Bytes32()
	res = append(res, encodedNonce[:]...)
	return append(res, payload...)
}

// ViewCallArgs is the argument of a view call.
type ViewCallArgs struct {
	Sender  tosca.Address
	Address tosca.Address
	Amount  uint256.Int
	Input   []byte
}

func ParseViewCallArgs(data []byte) (ViewCallArgs, error) {
	var res ViewCallArgs
	r := argReader{data: data}
	res.Sender = tosca.Address(r.read(addressLength))
	res.Address = tosca.Address(r.read(addressLength))
	res.Amount.SetBytes(r.read(wordLength))
	res.Input = r.bytes()
	return res, r.finish("view call")
}

func (a *ViewCallArgs) Encode() []byte {
	var w argWriter
	w.write(a.Sender[:])
	w.write(a.Address[:])
	amount := a.Amount.Bytes32()
	w.write(amount[:])
	w.bytes(a.Input)
	return w.data
}

// AddressArgs is the argument of methods addressing a single account.
type AddressArgs struct {
	Address tosca.Address
}

func ParseAddressArgs(data []byte) (AddressArgs, error) {
	r := argReader{data: data}
	res := AddressArgs{Address: tosca.Address(r.read(addressLength))}
	return res, r.finish("address")
}

// GetStorageAtArgs addresses a single storage slot.
type GetStorageAtArgs struct {
	Address tosca.Address
	Key     tosca.Key
}

func ParseGetStorageAtArgs(data []byte) (GetStorageAtArgs, error) {
	r := argReader{data: data}
	res := GetStorageAtArgs{
		Address: tosca.Address(r.read(addressLength)),
		Key:     tosca.Key(r.read(wordLength)),
	}
	return res, r.finish("storage slot")
}

func (a *GetStorageAtArgs) Encode() []byte {
	return append(slices.Clone(a.Address[:]), a.Key[:]...)
}

// WithdrawArgs names the host account receiving a withdrawal.
type WithdrawArgs struct {
	AccountID host.AccountID
	Amount    uint256.Int
}

func ParseWithdrawArgs(data []byte) (WithdrawArgs, error) {
	var res WithdrawArgs
	r := argReader{data: data}
	id := r.bytes()
	if r.err == nil && !utf8.Valid(id) {
		r.err = fmt.Errorf("account id is not valid UTF-8")
	}
	res.AccountID = host.AccountID(id)
	res.Amount = r.amount()
	return res, r.finish("withdraw")
}

func (a *WithdrawArgs) Encode() ([]byte, error) {
	var w argWriter
	w.bytes([]byte(a.AccountID))
	if err := w.amount(&a.Amount); err != nil {
		return nil, err
	}
	return w.data, nil
}

// TransferArgs names the EVM address receiving a transfer.
type TransferArgs struct {
	Address tosca.Address
	Amount  uint256.Int
}

func ParseTransferArgs(data []byte) (TransferArgs, error) {
	var res TransferArgs
	r := argReader{data: data}
	res.Address = tosca.Address(r.read(addressLength))
	res.Amount = r.amount()
	return res, r.finish("transfer")
}

func (a *TransferArgs) Encode() ([]byte, error) {
	var w argWriter
	w.write(a.Address[:])
	if err := w.amount(&a.Amount); err != nil {
		return nil, err
	}
	return w.data, nil
}

// CreateArgs names the sub-account to be created.
type CreateArgs struct {
	AccountID host.AccountID
}

func ParseCreateArgs(data []byte) (CreateArgs, error) {
	if !utf8.Valid(data) {
		return CreateArgs{}, fmt.Errorf("%w: account id is not valid UTF-8", ErrArgumentParse)
	}
	return CreateArgs{AccountID: host.AccountID(data)}, nil
}

// argReader decodes arguments piece by piece. The first failure is retained
// and all subsequent reads produce zero values.
type argReader struct {
	data []byte
	pos  int
	err  error
}

func (r *argReader) read(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if n < 0 || len(r.data)-r.pos < n {
		r.err = fmt.Errorf("unexpected end of input at offset %d, wanted %d bytes", r.pos, n)
		return make([]byte, max(n, 0))
	}
	res := r.data[r.pos : r.pos+n]
	r.pos += n
	return res
}

func (r *argReader) bytes() []byte {
	size := binary.LittleEndian.Uint32(r.read(lengthPrefix))
	if uint64(size) > uint64(len(r.data)-r.pos) {
		if r.err == nil {
			r.err = fmt.Errorf("length %d at offset %d exceeds input", size, r.pos-lengthPrefix)
		}
		return nil
	}
	return r.read(int(size))
}

func (r *argReader) amount() uint256.Int {
	var res uint256.Int
	encoded := r.read(amountLength)
	res.SetBytes(reversed(encoded))
	return res
}

func (r *argReader) finish(what string) error {
	if r.err == nil && r.pos != len(r.data) {
		r.err = fmt.Errorf("%d trailing bytes", len(r.data)-r.pos)
	}
	if r.err != nil {
		return fmt.Errorf("%w: invalid %s arguments: %v", ErrArgumentParse, what, r.err)
	}
	return nil
}

type argWriter struct {
	data []byte
}

func (w *argWriter) write(data []byte) {
	w.data = append(w.data, data...)
}

func (w *argWriter) bytes(data []byte) {
	w.data = binary.LittleEndian.AppendUint32(w.data, uint32(len(data)))
	w.write(data)
}

func (w *argWriter) amount(value *uint256.Int) error {
	if value.BitLen() > 8*amountLength {
		return fmt.Errorf("%w: amount %v exceeds 128 bits", ErrIntegerOverflow, value)
	}
	encoded := value.Bytes32()
	w.write(reversed(encoded[wordLength-amountLength:]))
	return nil
}

func reversed(data []byte) []byte {
	res := slices.Clone(data)
	slices.Reverse(res)
	return res
}
