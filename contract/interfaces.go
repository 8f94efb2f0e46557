// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the execution surface a stateful precompile runs
// against: state access, block context and nested calls.
package contract

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/xswap/precompileconfig"
)

// StatefulPrecompiledContract is implemented by every precompile in this module.
type StatefulPrecompiledContract interface {
	// Run executes the precompiled contract. An error reverts every state
	// change made during the call.
	Run(
		accessibleState AccessibleState,
		caller common.Address,
		addr common.Address,
		input []byte,
		suppliedGas uint64,
		readOnly bool,
	) (ret []byte, remainingGas uint64, err error)
}

// StateDB is the state a precompile is allowed to touch.
type StateDB interface {
	GetState(common.Address, common.Hash) common.Hash
	SetState(common.Address, common.Hash, common.Hash) common.Hash

	GetBalance(common.Address) *uint256.Int
	AddBalance(common.Address, *uint256.Int, tracing.BalanceChangeReason) uint256.Int
	SubBalance(common.Address, *uint256.Int, tracing.BalanceChangeReason) uint256.Int

	CreateAccount(common.Address)
	Exist(common.Address) bool

	AddLog(*types.Log)
	Logs() []*types.Log
	TxHash() common.Hash

	Snapshot() int
	RevertToSnapshot(int)
}

// BlockContext exposes the block the current transaction executes in.
type BlockContext interface {
	Number() *big.Int
	Timestamp() uint64
}

// ConfigurationBlockContext is the block context seen while a module is configured.
type ConfigurationBlockContext interface {
	Timestamp() uint64
}

// AccessibleState is handed to Run for every call frame.
type AccessibleState interface {
	GetStateDB() StateDB
	GetBlockContext() BlockContext
	GetChainID() *big.Int
	// GetCallValue returns the native value attached to the current frame.
	// The value has already been credited to the callee.
	GetCallValue() *uint256.Int
	// Call runs [input] against [addr] as [caller] in a nested frame,
	// transferring [value] first. A failed call leaves no state behind.
	Call(
		caller common.Address,
		addr common.Address,
		input []byte,
		gas uint64,
		value *uint256.Int,
		readOnly bool,
	) (ret []byte, remainingGas uint64, err error)
}

// Configurator writes the initial state of a module when it activates.
type Configurator interface {
	MakeConfig() precompileconfig.Config
	Configure(
		chainConfig precompileconfig.ChainConfig,
		cfg precompileconfig.Config,
		state StateDB,
		blockContext ConfigurationBlockContext,
	) error
}
