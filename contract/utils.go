// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

var (
	ErrOutOfGas        = errors.New("out of gas")
	ErrWriteProtection = errors.New("write protection")
	ErrInvalidInput    = errors.New("invalid input")
)

// SelectorLen is the length of a method selector.
const SelectorLen = 4

// DeductGas subtracts [requiredGas] from [suppliedGas].
func DeductGas(suppliedGas uint64, requiredGas uint64) (uint64, error) {
	if suppliedGas < requiredGas {
		return 0, ErrOutOfGas
	}
	return suppliedGas - requiredGas, nil
}

// StorageKey derives a slot from a prefix and any number of key parts.
func StorageKey(prefix string, parts ...[]byte) common.Hash {
	h := blake3.New()
	h.Write([]byte(prefix))
	for _, p := range parts {
		h.Write(p)
	}
	var key common.Hash
	copy(key[:], h.Sum(nil))
	return key
}

// Uint32Bytes encodes a key part.
func Uint32Bytes(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// Uint64Bytes encodes a key part.
func Uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// BigToUint256 converts an ABI-decoded uint256 argument.
func BigToUint256(b *big.Int) (*uint256.Int, error) {
	if b == nil || b.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative or missing integer", ErrInvalidInput)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("%w: integer overflows uint256", ErrInvalidInput)
	}
	return v, nil
}

func GetAddress(db StateDB, owner common.Address, slot common.Hash) common.Address {
	return common.BytesToAddress(db.GetState(owner, slot).Bytes())
}

func SetAddress(db StateDB, owner common.Address, slot common.Hash, addr common.Address) {
	db.SetState(owner, slot, common.BytesToHash(addr.Bytes()))
}

func GetUint256(db StateDB, owner common.Address, slot common.Hash) *uint256.Int {
	return new(uint256.Int).SetBytes32(db.GetState(owner, slot).Bytes())
}

func SetUint256(db StateDB, owner common.Address, slot common.Hash, v *uint256.Int) {
	db.SetState(owner, slot, common.Hash(v.Bytes32()))
}

func GetUint64(db StateDB, owner common.Address, slot common.Hash) uint64 {
	return new(uint256.Int).SetBytes32(db.GetState(owner, slot).Bytes()).Uint64()
}

func SetUint64(db StateDB, owner common.Address, slot common.Hash, v uint64) {
	SetUint256(db, owner, slot, uint256.NewInt(v))
}

func GetBool(db StateDB, owner common.Address, slot common.Hash) bool {
	return db.GetState(owner, slot) != (common.Hash{})
}

func SetBool(db StateDB, owner common.Address, slot common.Hash, v bool) {
	var value common.Hash
	if v {
		value[common.HashLength-1] = 1
	}
	db.SetState(owner, slot, value)
}
