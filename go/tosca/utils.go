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

// GetStorageStatus obtains the status code to be returned by
// RunContext implementation when mutating a storage slot with
// the given original (=committed), current, and new value.
func GetStorageStatus(original, current, new Word) StorageStatus {
	var zero = Word{}

	if current == new {
		return StorageAssigned
	}

	switch {
	case original == zero && current == zero && new != zero:
		return StorageAdded
	case original != zero && current == original && new == zero:
		return StorageDeleted
	case original != zero && current == original && new != zero && new != original:
		return StorageModified
	case original != zero && current == zero && new != original && new != zero:
		return StorageDeletedAdded
	case original != zero && current != original && current != zero && new == zero:
		return StorageModifiedDeleted
	case original != zero && current == zero && new == original:
		return StorageDeletedRestored
	case original == zero && current != zero && new == zero:
		return StorageAddedDeleted
	case original != zero && current != original && current != zero && new == original:
		return StorageModifiedRestored
	}
	return StorageAssigned
}

// GetAllStorageStatuses lists every defined StorageStatus.
func GetAllStorageStatuses() []StorageStatus {
	return []StorageStatus{
		StorageAssigned,
		StorageAdded,
		StorageAddedDeleted,
		StorageDeletedRestored,
		StorageDeletedAdded,
		StorageDeleted,
		StorageModified,
		StorageModifiedDeleted,
		StorageModifiedRestored,
	}
}
