// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package endpoint

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Executor option layouts:
//
//	type 1: uint16(1) || uint256 gasLimit                                    (34 bytes)
//	type 2: uint16(2) || uint256 gasLimit || uint256 nativeDrop || address  (86 bytes)
const (
	OptionsTypeGas     uint16 = 1
	OptionsTypeAirdrop uint16 = 2

	optionsGasLen     = 2 + 32
	optionsAirdropLen = 2 + 32 + 32 + common.AddressLength

	// DefaultGasLimit is assumed when no options are given.
	DefaultGasLimit uint64 = 200_000
)

var (
	ErrInvalidOptions = errors.New("invalid executor options")
	ErrGasLimitTooBig = errors.New("executor gas limit exceeds uint64")
)

// Options are the executor parameters attached to an outbound packet.
type Options struct {
	GasLimit   uint64
	NativeDrop *uint256.Int
	DropTo     common.Address
}

// DefaultOptions is what an empty options blob decodes to.
func DefaultOptions() *Options {
	return &Options{GasLimit: DefaultGasLimit, NativeDrop: new(uint256.Int)}
}

// HasAirdrop reports whether the executor must forward native currency on
// the destination chain.
func (o *Options) HasAirdrop() bool {
	return o.NativeDrop != nil && !o.NativeDrop.IsZero() && o.DropTo != (common.Address{})
}

// EncodeOptions returns the type 1 encoding when there is no airdrop and the
// type 2 encoding otherwise.
func EncodeOptions(o *Options) []byte {
	gas := uint256.NewInt(o.GasLimit).Bytes32()
	if o.NativeDrop == nil || o.NativeDrop.IsZero() {
		out := make([]byte, optionsGasLen)
		binary.BigEndian.PutUint16(out, OptionsTypeGas)
		copy(out[2:], gas[:])
		return out
	}
	out := make([]byte, optionsAirdropLen)
	binary.BigEndian.PutUint16(out, OptionsTypeAirdrop)
	copy(out[2:34], gas[:])
	drop := o.NativeDrop.Bytes32()
	copy(out[34:66], drop[:])
	copy(out[66:], o.DropTo.Bytes())
	return out
}

// DecodeOptions parses an executor options blob. An empty blob yields the
// defaults.
func DecodeOptions(b []byte) (*Options, error) {
	if len(b) == 0 {
		return DefaultOptions(), nil
	}
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidOptions, len(b))
	}

	kind := binary.BigEndian.Uint16(b[:2])
	switch {
	case kind == OptionsTypeGas && len(b) == optionsGasLen:
	case kind == OptionsTypeAirdrop && len(b) == optionsAirdropLen:
	default:
		return nil, fmt.Errorf("%w: type %d with length %d", ErrInvalidOptions, kind, len(b))
	}

	gas := new(uint256.Int).SetBytes32(b[2:34])
	if !gas.IsUint64() {
		return nil, ErrGasLimitTooBig
	}
	o := &Options{GasLimit: gas.Uint64(), NativeDrop: new(uint256.Int)}
	if o.GasLimit == 0 {
		o.GasLimit = DefaultGasLimit
	}
	if kind == OptionsTypeAirdrop {
		o.NativeDrop.SetBytes32(b[34:66])
		o.DropTo = common.BytesToAddress(b[66:])
	}
	return o, nil
}
