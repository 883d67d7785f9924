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
	"regexp"
	"strings"
)

// AccountID is the human readable identifier of an account of the host chain.
type AccountID string

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64
)

var validAccountID = regexp.MustCompile(`^(([a-z\d]+[\-_])*[a-z\d]+\.)*([a-z\d]+[\-_])*[a-z\d]+$`)

// IsValidAccountID checks the syntax of an account id. Ids consist of
// lowercase alphanumeric parts separated by '.', where each part may use
// single '-' or '_' separators.
func IsValidAccountID(id AccountID) bool {
	return len(id) >= minAccountIDLen &&
		len(id) <= maxAccountIDLen &&
		validAccountID.MatchString(string(id))
}

// IsValidSubAccountID checks whether child is a direct sub-account of parent,
// e.g. "alice.near" for "near". Deeper descendants are rejected.
func IsValidSubAccountID(parent, child AccountID) bool {
	if !IsValidAccountID(parent) || !IsValidAccountID(child) {
		return false
	}
	if len(child) <= len(parent) {
		return false
	}
	prefix, found := strings.CutSuffix(string(child), string(parent))
	if !found || !strings.HasSuffix(prefix, ".") {
		return false
	}
	return strings.IndexByte(prefix, '.') == len(prefix)-1
}
