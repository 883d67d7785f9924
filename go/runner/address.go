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
	"github.com/Fantom-foundation/evm-runner/go/host"
	"github.com/Fantom-foundation/evm-runner/go/tosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
)

// Tags separating the account and code records of an address in the host
// storage. Storage slots are keyed by address and slot key without a tag.
const (
	keyPrefixAccount  byte = 0
	keyPrefixContract byte = 1
)

const (
	accountKeyLength = 1 + len(tosca.Address{})
	storageKeyLength = len(tosca.Address{}) + len(tosca.Key{})
)

const addressCacheSize = 1 << 12

var addressCache = newAddressCache()

func newAddressCache() *lru.Cache[host.AccountID, tosca.Address] {
	cache, err := lru.New[host.AccountID, tosca.Address](addressCacheSize)
	if err != nil {
		panic(err)
	}
	return cache
}

// AccountIDToAddress maps a host account id to the EVM address representing
// it, namely the last 20 bytes of the Keccak-256 hash of the id.
func AccountIDToAddress(id host.AccountID) tosca.Address {
	if address, found := addressCache.Get(id); found {
		return address
	}
	var address tosca.Address
	copy(address[:], crypto.Keccak256([]byte(id))[12:])
	addressCache.Add(id, address)
	return address
}

// AccountKey is the host storage key of the account record of an address.
func AccountKey(address tosca.Address) []byte {
	return taggedKey(keyPrefixAccount, address)
}

// CodeKey is the host storage key of the code of an address.
func CodeKey(address tosca.Address) []byte {
	return taggedKey(keyPrefixContract, address)
}

// StorageKey is the host storage key of a storage slot of a contract.
func StorageKey(address tosca.Address, key tosca.Key) []byte {
	res := make([]byte, 0, storageKeyLength)
	res = append(res, address[:]...)
	return append(res, key[:]...)
}

func taggedKey(prefix byte, address tosca.Address) []byte {
	res := make([]byte, 0, accountKeyLength)
	res = append(res, prefix)
	return append(res, address[:]...)
}

// ContractAddress derives the address of a contract created by the given
// sender with the given nonce.
func ContractAddress(sender tosca.Address, nonce *uint256.Int) (tosca.Address, error) {
	if !nonce.IsUint64() {
		return tosca.Address{}, ErrIntegerOverflow
	}
	return tosca.Address(crypto.CreateAddress(common.Address(sender), nonce.Uint64())), nil
}
