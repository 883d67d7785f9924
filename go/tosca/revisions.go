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
	"fmt"
	"strings"
)

var revisionNames = map[Revision]string{
	R07_Istanbul:            "Istanbul",
	R09_Berlin:              "Berlin",
	R10_London:              "London",
	R11_Paris:               "Paris",
	R12_Shanghai:            "Shanghai",
	R13_Cancun:              "Cancun",
	R99_UnknownNextRevision: "UnknownNextRevision",
}

func (r Revision) String() string {
	if name, found := revisionNames[r]; found {
		return name
	}
	return fmt.Sprintf("Revision(%d)", r)
}

// MarshalText renders known revisions by name. It is used by both the JSON
// and the TOML encoding of configurations.
func (r Revision) MarshalText() ([]byte, error) {
	if name, found := revisionNames[r]; found {
		return []byte(name), nil
	}
	return nil, fmt.Errorf("unknown revision %d", int(r))
}

// UnmarshalText parses a revision name; the match is case-insensitive.
func (r *Revision) UnmarshalText(data []byte) error {
	for revision, name := range revisionNames {
		if strings.EqualFold(name, string(data)) {
			*r = revision
			return nil
		}
	}
	return fmt.Errorf("unknown revision %q", string(data))
}
