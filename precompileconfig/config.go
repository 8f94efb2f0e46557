// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package precompileconfig defines the configuration surface shared by every
// stateful precompile module.
package precompileconfig

import (
	"errors"
	"math/big"
)

var ErrMissingChainID = errors.New("chain config has no chain id")

// Config is the JSON-facing configuration of a single precompile module.
type Config interface {
	// Key returns the unique key used in genesis and upgrade files.
	Key() string
	// Timestamp returns the activation timestamp, nil meaning genesis.
	Timestamp() *uint64
	IsDisabled() bool
	Equal(Config) bool
	Verify(ChainConfig) error
}

// ChainConfig is the subset of chain parameters a config may verify against.
type ChainConfig interface {
	ChainID() *big.Int
}

// Upgrade describes when a precompile is activated or disabled.
type Upgrade struct {
	BlockTimestamp *uint64 `json:"blockTimestamp,omitempty"`
	Disable        bool    `json:"disable,omitempty"`
}

func (u *Upgrade) Timestamp() *uint64 {
	return u.BlockTimestamp
}

// ActiveAt reports whether the upgrade is in effect at [timestamp].
func (u *Upgrade) ActiveAt(timestamp uint64) bool {
	if u.Disable {
		return false
	}
	return u.BlockTimestamp == nil || *u.BlockTimestamp <= timestamp
}

func (u *Upgrade) Equal(other *Upgrade) bool {
	if other == nil {
		return false
	}
	if u.Disable != other.Disable {
		return false
	}
	switch {
	case u.BlockTimestamp == nil && other.BlockTimestamp == nil:
		return true
	case u.BlockTimestamp == nil || other.BlockTimestamp == nil:
		return false
	default:
		return *u.BlockTimestamp == *other.BlockTimestamp
	}
}
