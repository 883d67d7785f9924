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

import "testing"

func TestAccountID_Validity(t *testing.T) {
	tests := map[AccountID]bool{
		"near":             true,
		"alice.near":       true,
		"a-b_c.near":       true,
		"bob.alice.near":   true,
		"ok":               true,
		"a":                false,
		"":                 false,
		"Alice":            false,
		"alice..near":      false,
		".near":            false,
		"near.":            false,
		"a--b":             false,
		"a_-b":             false,
		"alice near":       false,
		"alice@near":       false,
		"0123456789012345678901234567890123456789012345678901234567890123":  true,
		"01234567890123456789012345678901234567890123456789012345678901234": false,
	}
	for id, want := range tests {
		if got := IsValidAccountID(id); got != want {
			t.Errorf("unexpected validity of %q, wanted %t, got %t", id, want, got)
		}
	}
}

func TestAccountID_SubAccounts(t *testing.T) {
	tests := map[string]struct {
		parent, child AccountID
		want          bool
	}{
		"direct child":       {"near", "alice.near", true},
		"nested parent":      {"alice.near", "bob.alice.near", true},
		"grand child":        {"near", "bob.alice.near", false},
		"same id":            {"near", "near", false},
		"unrelated":          {"near", "alice.test", false},
		"missing separator":  {"near", "alicenear", false},
		"invalid child":      {"near", "Alice.near", false},
		"invalid parent":     {"N", "alice.N", false},
		"shorter child":      {"alice.near", "near", false},
		"suffix not a label": {"ear", "alice.near", false},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := IsValidSubAccountID(test.parent, test.child); got != test.want {
				t.Errorf("unexpected result for %q / %q, wanted %t, got %t", test.parent, test.child, test.want, got)
			}
		})
	}
}
