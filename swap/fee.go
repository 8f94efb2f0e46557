// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// BasisPoints is the fee denominator.
	BasisPoints uint64 = 10_000
	// DefaultFeeBps is 0.5%.
	DefaultFeeBps uint16 = 50
)

// SplitFee returns fee = amount * feeBps / 10000, rounded down, and
// net = amount - fee. The product is computed at 512 bits so every uint256
// amount is accepted.
func SplitFee(amount *uint256.Int, feeBps uint16) (fee *uint256.Int, net *uint256.Int) {
	if amount.IsZero() || feeBps == 0 {
		return new(uint256.Int), new(uint256.Int).Set(amount)
	}
	fee, _ = new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(feeBps)), uint256.NewInt(BasisPoints))
	net = new(uint256.Int).Sub(amount, fee)
	return fee, net
}

// Available returns custody - fees, or zero when fees are not fully backed.
func Available(custody, fees *uint256.Int) *uint256.Int {
	if custody.Lt(fees) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(custody, fees)
}

func asBig(v interface{}) *big.Int {
	b, _ := v.(*big.Int)
	return b
}
