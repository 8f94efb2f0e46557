// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package message

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
)

var ErrInvalidAddress = errors.New("bytes32 does not hold a 20-byte address")

// AddressToBytes32 left-pads [addr] to 32 bytes, the peer and recipient
// encoding used on the wire.
func AddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}

// Bytes32ToAddress is the inverse of AddressToBytes32. The upper 12 bytes
// must be zero.
func Bytes32ToAddress(b [32]byte) (common.Address, error) {
	for _, c := range b[:12] {
		if c != 0 {
			return common.Address{}, fmt.Errorf("%w: %x", ErrInvalidAddress, b)
		}
	}
	return common.BytesToAddress(b[12:]), nil
}
