// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

// DomainVersion is the EIP-712 version string of every token domain.
const DomainVersion = "1"

var (
	domainTypeHash = keccakHash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	permitTypeHash = keccakHash([]byte("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"))

	ErrInvalidSignature = errors.New("invalid signature")
)

// Permit is the EIP-2612 authorization an owner signs off-chain.
type Permit struct {
	Owner    common.Address
	Spender  common.Address
	Value    *big.Int
	Nonce    *big.Int
	Deadline *big.Int
}

func keccakHash(parts ...[]byte) common.Hash {
	var joined []byte
	for _, p := range parts {
		joined = append(joined, p...)
	}
	return common.BytesToHash(crypto.Keccak256(joined))
}

func padLeft32(i *big.Int) []byte {
	return common.LeftPadBytes(i.Bytes(), 32)
}

func addressTo32(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

// DomainSeparator builds
// keccak256(abi.encode(domainTypeHash, keccak256(name), keccak256(version), chainId, verifyingContract)).
func DomainSeparator(name string, chainID *big.Int, verifyingContract common.Address) common.Hash {
	return keccakHash(
		domainTypeHash.Bytes(),
		keccakHash([]byte(name)).Bytes(),
		keccakHash([]byte(DomainVersion)).Bytes(),
		padLeft32(chainID),
		addressTo32(verifyingContract),
	)
}

// StructHash computes keccak256(abi.encode(PERMIT_TYPEHASH, owner, spender, value, nonce, deadline)).
func (p *Permit) StructHash() common.Hash {
	return keccakHash(
		permitTypeHash.Bytes(),
		addressTo32(p.Owner),
		addressTo32(p.Spender),
		padLeft32(p.Value),
		padLeft32(p.Nonce),
		padLeft32(p.Deadline),
	)
}

// TypedDataHash returns keccak256("\x19\x01" || domainSeparator || structHash).
func TypedDataHash(domainSeparator, structHash common.Hash) common.Hash {
	return keccakHash([]byte{0x19, 0x01}, domainSeparator.Bytes(), structHash.Bytes())
}

// RecoverSigner returns the address that produced (v, r, s) over [digest].
// V may be given as 0/1 or 27/28. High-s signatures are rejected.
func RecoverSigner(digest common.Hash, v uint8, r, s [32]byte) (common.Address, error) {
	if v >= 27 {
		v -= 27
	}
	rInt := new(big.Int).SetBytes(r[:])
	sInt := new(big.Int).SetBytes(s[:])
	if !ethcrypto.ValidateSignatureValues(v, rInt, sInt, true) {
		return common.Address{}, ErrInvalidSignature
	}

	sig := make([]byte, 65)
	copy(sig[:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = v

	pub, err := ethcrypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return common.BytesToAddress(ethcrypto.PubkeyToAddress(*pub).Bytes()), nil
}

// SignPermit signs [p] for the token domain [domainSeparator]. V is returned
// in the 27/28 form wallets produce.
func SignPermit(key *ecdsa.PrivateKey, domainSeparator common.Hash, p *Permit) (uint8, [32]byte, [32]byte, error) {
	var r, s [32]byte
	digest := TypedDataHash(domainSeparator, p.StructHash())
	sig, err := ethcrypto.Sign(digest.Bytes(), key)
	if err != nil {
		return 0, r, s, err
	}
	copy(r[:], sig[:32])
	copy(s[:], sig[32:64])
	return sig[64] + 27, r, s, nil
}

// AddressOf returns the address controlled by [key].
func AddressOf(key *ecdsa.PrivateKey) common.Address {
	return common.BytesToAddress(ethcrypto.PubkeyToAddress(key.PublicKey).Bytes())
}
