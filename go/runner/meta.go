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
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// SignatureLength is the size of a meta call signature: v, r and s as 32
// byte big-endian words.
const SignatureLength = 96

const eip712DomainType = "EIP712Domain(string name,string version,uint256 chainId)"

// DomainSeparator computes the EIP-712 domain separator binding meta call
// signatures to a chain.
func DomainSeparator(chainID uint64, name, version string) tosca.Hash {
	id := uint256.NewInt(chainID).Bytes32()
	return keccak(
		crypto.Keccak256([]byte(eip712DomainType)),
		crypto.Keccak256([]byte(name)),
		crypto.Keccak256([]byte(version)),
		id[:],
	)
}

// MetaCallMessage computes the hash signed by the sender of a meta call.
func MetaCallMessage(domainSeparator tosca.Hash, accountID host.AccountID, nonce *uint256.Int, payload []byte) tosca.Hash {
	encodedNonce := nonce.Bytes32()
	return keccak(
		[]byte{0x19, 0x01},
		domainSeparator[:],
		[]byte(accountID),
		encodedNonce[:],
		payload,
	)
}

// RecoverSigner recovers the address that signed the given message. The
// zero address is returned if the signature is malformed or invalid.
func RecoverSigner(message tosca.Hash, signature *[SignatureLength]byte) tosca.Address {
	vWord := signature[:32]
	for _, b := range vWord[:31] {
		if b != 0 {
			return tosca.Address{}
		}
	}
	v := vWord[31]
	if v != 27 && v != 28 {
		return tosca.Address{}
	}
	v -= 27
	r := new(uint256.Int).SetBytes(signature[32:64])
	s := new(uint256.Int).SetBytes(signature[64:96])
	if !crypto.ValidateSignatureValues(v, r.ToBig(), s.ToBig(), false) {
		return tosca.Address{}
	}

	sig := make([]byte, 65)
	copy(sig[:64], signature[32:96])
	sig[64] = v
	pub, err := crypto.Ecrecover(message[:], sig)
	if err != nil || len(pub) == 0 {
		return tosca.Address{}
	}
	var res tosca.Address
	copy(res[:], crypto.Keccak256(pub[1:])[12:])
	return res
}

// MetaAuthenticator checks meta calls sent to one account.
type MetaAuthenticator struct {
	domainSeparator tosca.Hash
	accountID       host.AccountID
}

func NewMetaAuthenticator(config *host.Config, accountID host.AccountID) *MetaAuthenticator {
	return &MetaAuthenticator{
		domainSeparator: DomainSeparator(config.ChainID, config.DomainName, config.DomainVersion),
		accountID:       accountID,
	}
}

// Authenticate recovers the sender of a meta call and advances its nonce in
// the given state. The call is rejected unless the stored nonce of the
// sender equals the signed one.
func (a *MetaAuthenticator) Authenticate(state StateView, args *MetaCallArgs) (tosca.Address, error) {
	message := MetaCallMessage(a.domainSeparator, a.accountID, &args.Nonce, args.Payload)
	sender := RecoverSigner(message, &args.Signature)
	if sender == (tosca.Address{}) {
		return sender, ErrInvalidEcRecoverSignature
	}
	nonce, err := NonceOf(state, sender)
	if err != nil {
		return sender, err
	}
	if !nonce.Eq(&args.Nonce) {
		return sender, ErrInvalidNonce
	}
	if _, err := NextNonce(state, sender); err != nil {
		return sender, err
	}
	return sender, nil
}

func keccak(data ...[]byte) (res tosca.Hash) {
	hasher := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hasher.Write(d)
	}
	hasher.Sum(res[:0])
	return res
}
