// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package tosca

//go:generate mockgen -source run_context.go -destination run_context_mock.go -package tosca

// WorldState is the view on accounts, code, and storage offered to an
// interpreter. All modifications are staged in the call frame the
// interpreter is running in and only become visible to the enclosing frame
// once the frame completes successfully.
type WorldState interface {
	AccountExists(Address) bool

	GetBalance(Address) Value
	SetBalance(Address, Value)

	GetNonce(Address) uint64
	SetNonce(Address, uint64)

	GetCode(Address) Code
	GetCodeHash(Address) Hash
	GetCodeSize(Address) int
	SetCode(Address, Code)

	GetStorage(Address, Key) Word
	SetStorage(Address, Key, Word) StorageStatus

	// Destroys addr and transfers its balance to beneficiary.
	// Returns true if it is the first time destroying this addr in the
	// ongoing frame, false otherwise.
	SelfDestruct(addr Address, beneficiary Address) bool
}

// RunContext provides an interface to access and manipulate state as needed
// by individual EVM instructions, including the ability to start nested calls.
type RunContext interface {
	WorldState

	// GetCommittedStorage returns the value of a slot at the beginning of
	// the current invocation.
	GetCommittedStorage(Address, Key) Word
	HasSelfDestructed(Address) bool

	// CreateSnapshot and RestoreSnapshot allow interpreters handling nested
	// calls internally to discard partial effects of failed sub-calls.
	CreateSnapshot() Snapshot
	RestoreSnapshot(Snapshot)

	EmitLog(Log)
	GetLogs() []Log

	Call(kind CallKind, parameter CallParameters) (CallResult, error)
}

// Snapshot is a type used to represent a restore point within a call frame.
type Snapshot int
