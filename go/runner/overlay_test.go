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
	"errors"
	"maps"
	"slices"
	"testing"

	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/holiman/uint256"
	"go.uber.org/mock/gomock"
	"pgregory.net/rand"
)

func TestOverlay_StateManagement(t *testing.T) {
	state, _ := newTestRoot()
	addr0, addr1 := tosca.Address{}, tosca.Address{1}
	code := tosca.Code{0, 1, 2}
	nonce := uint256.NewInt(103030303)
	balance := uint256.NewInt(3838209)
	key0, key1 := tosca.Key{4}, tosca.Key{5}
	value0, value1 := tosca.Word{6}, tosca.Word{7}

	if err := state.SetCode(addr0, code); err != nil {
		t.Fatalf("failed to set code: %v", err)
	}
	if got, _ := state.CodeAt(addr0); !bytes.Equal(got, code) {
		t.Errorf("unexpected code, wanted %x, got %x", code, got)
	}
	if got, _ := state.CodeAt(addr1); got != nil {
		t.Errorf("unexpected code, got %x", got)
	}

	if err := SetNonce(state, addr0, nonce); err != nil {
		t.Fatalf("failed to set nonce: %v", err)
	}
	if got, _ := NonceOf(state, addr0); !got.Eq(nonce) {
		t.Errorf("unexpected nonce, wanted %v, got %v", nonce, &got)
	}
	if got, _ := NonceOf(state, addr1); !got.IsZero() {
		t.Errorf("unexpected nonce, got %v", &got)
	}

	if err := AddBalance(state, addr0, balance); err != nil {
		t.Fatalf("failed to set balance: %v", err)
	}
	if got, _ := BalanceOf(state, addr0); !got.Eq(balance) {
		t.Errorf("unexpected balance, wanted %v, got %v", balance, &got)
	}
	if got, _ := BalanceOf(state, addr1); !got.IsZero() {
		t.Errorf("unexpected balance, got %v", &got)
	}

	if err := state.WriteStorageSlot(addr0, key0, value0); err != nil {
		t.Fatalf("failed to write slot: %v", err)
	}
	if got, _ := state.ReadStorageSlot(addr0, key0); got != value0 {
		t.Errorf("unexpected value, wanted %v, got %v", value0, got)
	}
	if got, _ := state.ReadStorageSlot(addr1, key0); got != (tosca.Word{}) {
		t.Errorf("unexpected value, got %v", got)
	}
	if got, _ := state.ReadStorageSlot(addr0, key1); got != (tosca.Word{}) {
		t.Errorf("unexpected value, got %v", got)
	}

	next := NewOverlay(state)
	if err := next.WriteStorageSlot(addr1, key1, value1); err != nil {
		t.Fatalf("failed to write slot: %v", err)
	}
	if got, _ := next.ReadStorageSlot(addr1, key1); got != value1 {
		t.Errorf("unexpected value, wanted %v, got %v", value1, got)
	}
	if got, _ := next.ReadStorageSlot(addr0, key0); got != value0 {
		t.Errorf("parent values should be visible, got %v", got)
	}
	if got, _ := state.ReadStorageSlot(addr1, key1); got != (tosca.Word{}) {
		t.Errorf("uncommitted value visible in parent, got %v", got)
	}

	if err := state.Commit(next); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	if got, _ := state.ReadStorageSlot(addr1, key1); got != value1 {
		t.Errorf("unexpected value after commit, wanted %v, got %v", value1, got)
	}
	if got, _ := state.ReadStorageSlot(addr0, key0); got != value0 {
		t.Errorf("unexpected value after commit, wanted %v, got %v", value0, got)
	}
}

func TestOverlay_DiscardLeavesParentUnchanged(t *testing.T) {
	state, ext := newTestRoot()
	address := tosca.Address{1}
	if err := state.WriteStorageSlot(address, tosca.Key{1}, tosca.Word{1}); err != nil {
		t.Fatalf("failed to write slot: %v", err)
	}
	before := ext.Len()

	overlay := NewOverlay(state)
	if err := overlay.WriteStorageSlot(address, tosca.Key{1}, tosca.Word{2}); err != nil {
		t.Fatalf("failed to write slot: %v", err)
	}
	if err := overlay.SetCode(address, tosca.Code{1}); err != nil {
		t.Fatalf("failed to set code: %v", err)
	}
	if err := AddBalance(overlay, address, uint256.NewInt(1)); err != nil {
		t.Fatalf("failed to add balance: %v", err)
	}
	if _, err := overlay.SelfDestruct(address, tosca.Address{2}); err != nil {
		t.Fatalf("failed to self-destruct: %v", err)
	}

	if got, _ := state.ReadStorageSlot(address, tosca.Key{1}); got != (tosca.Word{1}) {
		t.Errorf("parent was modified, got %v", got)
	}
	if got, _ := state.CodeAt(address); got != nil {
		t.Errorf("parent was modified, got code %x", got)
	}
	if ext.Len() != before {
		t.Errorf("host storage was modified")
	}
}

func TestOverlay_LastWriteWins(t *testing.T) {
	state, _ := newTestRoot()
	overlay := NewOverlay(state)
	for i := byte(1); i <= 3; i++ {
		if err := overlay.WriteStorageSlot(tosca.Address{1}, tosca.Key{1}, tosca.Word{i}); err != nil {
			t.Fatalf("failed to write slot: %v", err)
		}
	}
	if err := state.Commit(overlay); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	if got, _ := state.ReadStorageSlot(tosca.Address{1}, tosca.Key{1}); got != (tosca.Word{3}) {
		t.Errorf("unexpected value, wanted %v, got %v", tosca.Word{3}, got)
	}
}

func TestOverlay_RandomWritesAreVisibleUntilDiscardedAndCommitted(t *testing.T) {
	type location struct {
		address tosca.Address
		key     tosca.Key
	}
	rnd := rand.New(0)
	state, _ := newTestRoot()
	overlay := NewOverlay(state)
	want := map[location]tosca.Word{}

	check := func(view StateView, want map[location]tosca.Word) {
		t.Helper()
		for address := byte(0); address < 4; address++ {
			for key := byte(0); key < 8; key++ {
				loc := location{tosca.Address{address}, tosca.Key{key}}
				got, err := view.ReadStorageSlot(loc.address, loc.key)
				if err != nil {
					t.Fatalf("failed to read slot: %v", err)
				}
				if got != want[loc] {
					t.Fatalf("unexpected value at %v, wanted %v, got %v", loc, want[loc], got)
				}
			}
		}
	}

	for round := 0; round < 30; round++ {
		child := NewOverlay(overlay)
		written := maps.Clone(want)
		writes := 1 + rnd.Intn(10)
		for i := 0; i < writes; i++ {
			loc := location{tosca.Address{byte(rnd.Intn(4))}, tosca.Key{byte(rnd.Intn(8))}}
			var value tosca.Word
			_, _ = rnd.Read(value[:])
			if err := child.WriteStorageSlot(loc.address, loc.key, value); err != nil {
				t.Fatalf("failed to write slot: %v", err)
			}
			written[loc] = value
		}
		check(child, written)
		check(overlay, want)
		if rnd.Intn(2) == 0 {
			if err := overlay.Commit(child); err != nil {
				t.Fatalf("failed to commit: %v", err)
			}
			want = written
		}
		check(overlay, want)
	}

	check(state, nil)
	if err := state.Commit(overlay); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	check(state, want)
}

func TestOverlay_SelfDestructMovesBalanceAndHidesContract(t *testing.T) {
	state, _ := newTestRoot()
	address, beneficiary := tosca.Address{1}, tosca.Address{2}
	if err := AddBalance(state, address, uint256.NewInt(10)); err != nil {
		t.Fatalf("failed to add balance: %v", err)
	}
	if err := state.SetCode(address, tosca.Code{1}); err != nil {
		t.Fatalf("failed to set code: %v", err)
	}
	if err := state.WriteStorageSlot(address, tosca.Key{1}, tosca.Word{1}); err != nil {
		t.Fatalf("failed to write slot: %v", err)
	}

	overlay := NewOverlay(state)
	child := NewOverlay(overlay)
	first, err := child.SelfDestruct(address, beneficiary)
	if err != nil || !first {
		t.Fatalf("unexpected self-destruct result %t, err %v", first, err)
	}
	if err := overlay.Commit(child); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	if !NewOverlay(overlay).HasSelfDestructed(address) {
		t.Errorf("destruction should be visible in nested overlays")
	}
	if first, _ := NewOverlay(overlay).SelfDestruct(address, beneficiary); first {
		t.Errorf("second self-destruct should not be reported as first")
	}
	if got, _ := overlay.CodeAt(address); got != nil {
		t.Errorf("code of destroyed contract visible, got %x", got)
	}
	if got, _ := overlay.ReadStorageSlot(address, tosca.Key{1}); got != (tosca.Word{}) {
		t.Errorf("storage of destroyed contract visible, got %v", got)
	}

	if err := state.Commit(overlay); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	if got, _ := state.CodeAt(address); got != nil {
		t.Errorf("code of destroyed contract retained, got %x", got)
	}
	if got, _ := state.ReadStorageSlot(address, tosca.Key{1}); got != (tosca.Word{}) {
		t.Errorf("storage of destroyed contract retained, got %v", got)
	}
	if got, _ := BalanceOf(state, address); !got.IsZero() {
		t.Errorf("balance of destroyed contract retained, got %v", &got)
	}
	if got, _ := BalanceOf(state, beneficiary); got.Uint64() != 10 {
		t.Errorf("unexpected beneficiary balance, got %v", &got)
	}
}

func TestOverlay_DestroyThenRecreate(t *testing.T) {
	state, _ := newTestRoot()
	address, beneficiary := tosca.Address{1}, tosca.Address{2}
	if err := state.WriteStorageSlot(address, tosca.Key{1}, tosca.Word{1}); err != nil {
		t.Fatalf("failed to write slot: %v", err)
	}
	if err := state.SetCode(address, tosca.Code{1}); err != nil {
		t.Fatalf("failed to set code: %v", err)
	}

	overlay := NewOverlay(state)
	if _, err := overlay.SelfDestruct(address, beneficiary); err != nil {
		t.Fatalf("failed to self-destruct: %v", err)
	}
	child := NewOverlay(overlay)
	child.Recreate(address)
	if err := child.WriteStorageSlot(address, tosca.Key{2}, tosca.Word{2}); err != nil {
		t.Fatalf("failed to write slot: %v", err)
	}
	if err := child.SetCode(address, tosca.Code{2}); err != nil {
		t.Fatalf("failed to set code: %v", err)
	}
	if err := overlay.Commit(child); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	if err := state.Commit(overlay); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	if got, _ := state.ReadStorageSlot(address, tosca.Key{1}); got != (tosca.Word{}) {
		t.Errorf("storage of previous incarnation retained, got %v", got)
	}
	if got, _ := state.ReadStorageSlot(address, tosca.Key{2}); got != (tosca.Word{2}) {
		t.Errorf("storage of new incarnation lost, got %v", got)
	}
	if got, _ := state.CodeAt(address); !bytes.Equal(got, tosca.Code{2}) {
		t.Errorf("unexpected code, got %x", got)
	}
}

func TestOverlay_LogsAreOrderedAndDiscardedWithOverlay(t *testing.T) {
	state, _ := newTestRoot()
	overlay := NewOverlay(state)
	overlay.EmitLog(tosca.Log{Address: tosca.Address{1}})

	discarded := NewOverlay(overlay)
	discarded.EmitLog(tosca.Log{Address: tosca.Address{2}})

	committed := NewOverlay(overlay)
	committed.EmitLog(tosca.Log{Address: tosca.Address{3}})
	if want, got := 2, len(committed.Logs()); want != got {
		t.Errorf("unexpected number of visible logs, wanted %d, got %d", want, got)
	}
	if err := overlay.Commit(committed); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	if err := state.Commit(overlay); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	var got []tosca.Address
	for _, log := range state.Logs() {
		got = append(got, log.Address)
	}
	want := []tosca.Address{{1}, {3}}
	if !slices.Equal(want, got) {
		t.Errorf("unexpected logs, wanted %v, got %v", want, got)
	}
}

func TestOverlay_CommitAppliesPurgeCodeAccountsAndStorageInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	ext := host.NewMockExternal(ctrl)
	address := tosca.Address{1}
	account := Account{Balance: *uint256.NewInt(1)}
	accountData, err := encodeAccount(&account)
	if err != nil {
		t.Fatalf("failed to encode account: %v", err)
	}

	ext.EXPECT().StorageGet(gomock.Any()).Return(nil, nil).AnyTimes()
	gomock.InOrder(
		ext.EXPECT().StorageRemoveSubtree(address[:]).Return(host.Released{}, nil),
		ext.EXPECT().StorageSet(CodeKey(address), []byte{1}),
		ext.EXPECT().StorageSet(AccountKey(address), accountData),
		ext.EXPECT().StorageSet(StorageKey(address, tosca.Key{1}), wordBytes(tosca.Word{1})),
		ext.EXPECT().StorageSet(StorageKey(address, tosca.Key{2}), wordBytes(tosca.Word{2})),
	)

	overlay := NewOverlay(newRootState(ext, 40))
	overlay.Recreate(address)
	if err := overlay.WriteStorageSlot(address, tosca.Key{2}, tosca.Word{2}); err != nil {
		t.Fatalf("failed to write slot: %v", err)
	}
	if err := overlay.WriteStorageSlot(address, tosca.Key{1}, tosca.Word{1}); err != nil {
		t.Fatalf("failed to write slot: %v", err)
	}
	if err := overlay.SetAccount(address, account); err != nil {
		t.Fatalf("failed to set account: %v", err)
	}
	if err := overlay.SetCode(address, tosca.Code{1}); err != nil {
		t.Fatalf("failed to set code: %v", err)
	}
	if err := overlay.Parent().Commit(overlay); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
}

func TestOverlay_CommitStopsAtFirstHostError(t *testing.T) {
	ctrl := gomock.NewController(t)
	ext := host.NewMockExternal(ctrl)
	injected := errors.New("injected")
	address := tosca.Address{1}

	ext.EXPECT().StorageGet(gomock.Any()).Return(nil, nil).AnyTimes()
	ext.EXPECT().StorageSet(CodeKey(address), gomock.Any()).Return(injected)

	overlay := NewOverlay(newRootState(ext, 40))
	if err := overlay.SetCode(address, tosca.Code{1}); err != nil {
		t.Fatalf("failed to set code: %v", err)
	}
	if err := overlay.WriteStorageSlot(address, tosca.Key{1}, tosca.Word{1}); err != nil {
		t.Fatalf("failed to write slot: %v", err)
	}
	if err := overlay.Parent().Commit(overlay); !errors.Is(err, injected) {
		t.Errorf("unexpected error: %v", err)
	}
}

func wordBytes(w tosca.Word) []byte {
	return w[:]
}
