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

import (
	"encoding/json"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/holiman/uint256"
)

func TestAddress_JSON_RoundTrip(t *testing.T) {
	tests := map[string]struct {
		address Address
		json    string
	}{
		"zero":  {Address{}, "\"0x0000000000000000000000000000000000000000\""},
		"first": {Address{0xAB}, "\"0xab00000000000000000000000000000000000000\""},
		"last":  {Address{19: 1}, "\"0x0000000000000000000000000000000000000001\""},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			encoded, err := json.Marshal(test.address)
			if err != nil {
				t.Fatalf("failed to encode into JSON: %v", err)
			}
			if want, got := test.json, string(encoded); want != got {
				t.Errorf("unexpected JSON encoding, wanted %v, got %v", want, got)
			}
			var restored Address
			if err := json.Unmarshal(encoded, &restored); err != nil {
				t.Fatalf("failed to restore address: %v", err)
			}
			if test.address != restored {
				t.Errorf("unexpected restored value, wanted %v, got %v", test.address, restored)
			}
		})
	}
}

func TestAddress_JSON_InvalidValueDecodingFails(t *testing.T) {
	tests := map[string]string{
		"empty":         "\"\"",
		"no hex prefix": "\"0000000000000000000000000000000000000000\"",
		"too short":     "\"0x00000000000000000000000000000000000000\"",
		"too long":      "\"0x000000000000000000000000000000000000000000\"",
		"invalid hex":   "\"0x0g00000000000000000000000000000000000000\"",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			var address Address
			if err := json.Unmarshal([]byte(data), &address); err == nil {
				t.Errorf("expected decoding of %v to fail", data)
			}
		})
	}
}

func TestValue_NewValueFillsFromTheRight(t *testing.T) {
	tests := map[string]struct {
		value Value
		index int
	}{
		"one word":    {NewValue(1), 31},
		"two words":   {NewValue(1, 0), 23},
		"three words": {NewValue(1, 0, 0), 15},
		"four words":  {NewValue(1, 0, 0, 0), 7},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if test.value[test.index] != 1 {
				t.Errorf("NewValue failed to set the correct value.")
			}
		})
	}
}

func TestValue_Uint256Conversion(t *testing.T) {
	tests := []*uint256.Int{
		uint256.NewInt(0),
		uint256.NewInt(1),
		uint256.NewInt(math.MaxUint64),
		new(uint256.Int).Lsh(uint256.NewInt(1), 255),
	}
	for _, test := range tests {
		value := ValueFromUint256(test)
		if got := value.ToUint256(); got.Cmp(test) != 0 {
			t.Errorf("unexpected conversion, wanted %v, got %v", test, got)
		}
		if want, got := test.Dec(), value.String(); want != got {
			t.Errorf("unexpected print, wanted %v, got %v", want, got)
		}
		if value.ToBig().Cmp(test.ToBig()) != 0 {
			t.Errorf("unexpected big.Int conversion of %v", test)
		}
	}
	if ValueFromUint256(nil) != (Value{}) {
		t.Errorf("nil should convert to zero")
	}
}

func TestValue_ArithmeticWrapsAround(t *testing.T) {
	max := ValueFromUint256(new(uint256.Int).SetAllOne())
	if want, got := (Value{}), Add(max, NewValue(1)); want != got {
		t.Errorf("unexpected addition result, wanted %v, got %v", want, got)
	}
	if want, got := max, Sub(Value{}, NewValue(1)); want != got {
		t.Errorf("unexpected subtraction result, wanted %v, got %v", want, got)
	}
	if want, got := NewValue(1, 0), Add(NewValue(math.MaxUint64), NewValue(1)); want != got {
		t.Errorf("unexpected carry, wanted %v, got %v", want, got)
	}
}

func TestValue_Comparison(t *testing.T) {
	values := []Value{{}, {1}, NewValue(1), NewValue(2)}
	for _, a := range values {
		for _, b := range values {
			if want, got := a.ToBig().Cmp(b.ToBig()), a.Cmp(b); want != got {
				t.Errorf("unexpected comparison result for %v and %v, wanted %v, got %v", a, b, want, got)
			}
		}
	}
}

func TestCallKind_JSON_Encoding(t *testing.T) {
	for _, kind := range []CallKind{Call, StaticCall, DelegateCall, CallCode, Create, Create2} {
		encoded, err := json.Marshal(kind)
		if err != nil {
			t.Fatalf("failed to encode into JSON: %v", err)
		}
		var restored CallKind
		if err := json.Unmarshal(encoded, &restored); err != nil {
			t.Fatalf("failed to restore call kind: %v", err)
		}
		if kind != restored {
			t.Errorf("unexpected restored value, wanted %v, got %v", kind, restored)
		}
	}
	if _, err := json.Marshal(CallKind(99)); err == nil {
		t.Errorf("expected encoding to fail")
	}
}

func TestStorageStatus_AllStatusesAreListed(t *testing.T) {
	existing := []StorageStatus{}
	for s := StorageStatus(0); ; s++ {
		if strings.HasPrefix(s.String(), "StorageStatus") {
			break
		}
		existing = append(existing, s)
	}
	all := GetAllStorageStatuses()
	slices.Sort(existing)
	slices.Sort(all)
	if !slices.Equal(existing, all) {
		t.Errorf("Unexpected statuses, wanted: %v vs got: %v", existing, all)
	}
}

func TestGetStorageStatus_ClassifiesTransitions(t *testing.T) {
	zero, x, y, z := Word{}, Word{1}, Word{2}, Word{3}
	tests := map[string]struct {
		original, current, new Word
		want                   StorageStatus
	}{
		"assigned":          {x, y, y, StorageAssigned},
		"added":             {zero, zero, z, StorageAdded},
		"deleted":           {x, x, zero, StorageDeleted},
		"modified":          {x, x, z, StorageModified},
		"deleted added":     {x, zero, z, StorageDeletedAdded},
		"modified deleted":  {x, y, zero, StorageModifiedDeleted},
		"deleted restored":  {x, zero, x, StorageDeletedRestored},
		"added deleted":     {zero, y, zero, StorageAddedDeleted},
		"modified restored": {x, y, x, StorageModifiedRestored},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := GetStorageStatus(test.original, test.current, test.new); got != test.want {
				t.Errorf("unexpected status, wanted %v, got %v", test.want, got)
			}
		})
	}
}
