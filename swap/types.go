// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package swap implements the cross-chain swap protocol as three stateful
// precompiles:
//
//   - Pool (0x...6200) custodies the token on one chain and keeps the fee
//     ledger. Only its receiver or router may release funds.
//   - Router (0x...6201) accepts swaps on the source chain, splits the fee
//     and sends the net amount to the peer receiver.
//   - Receiver (0x...6202) authenticates inbound messages against its peer
//     table and instructs the local pool to pay out, exactly once.
package swap

import (
	_ "embed"
	"errors"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/contract"
)

// Contract addresses
var (
	PoolAddress     = common.HexToAddress("0x0000000000000000000000000000000000006200")
	RouterAddress   = common.HexToAddress("0x0000000000000000000000000000000000006201")
	ReceiverAddress = common.HexToAddress("0x0000000000000000000000000000000000006202")
)

var (
	//go:embed pool.abi
	rawPoolABI string
	//go:embed router.abi
	rawRouterABI string
	//go:embed receiver.abi
	rawReceiverABI string

	PoolABI     = contract.ParseABI(rawPoolABI)
	RouterABI   = contract.ParseABI(rawRouterABI)
	ReceiverABI = contract.ParseABI(rawReceiverABI)
)

// Gas costs
const (
	GasView       uint64 = 2_600
	GasAdmin      uint64 = 20_000
	GasDeposit    uint64 = 60_000
	GasWithdraw   uint64 = 60_000
	GasRelease    uint64 = 50_000
	GasDepositFee uint64 = 25_000
	GasExecute    uint64 = 30_000
	GasSwap       uint64 = 120_000
	GasPermit     uint64 = 30_000
	GasOnMessage  uint64 = 60_000
)

// Errors
var (
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrPeerNotSet               = errors.New("peer not set for destination chain")
	ErrUnknownPeer              = errors.New("message sender is not the registered peer")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")
	ErrInsufficientMessagingFee = errors.New("insufficient messaging fee")
	ErrInvalidPermit            = errors.New("invalid permit")
	ErrTransferFailed           = errors.New("token transfer failed")
	ErrInvalidAddress           = errors.New("invalid address: cannot be zero")
	ErrPoolNotSet               = errors.New("pool not set")
	ErrInvalidRecipient         = errors.New("invalid recipient")
	ErrInvalidFeeBps            = errors.New("fee bps must be <= 10000")
	ErrInsufficientFees         = errors.New("amount exceeds accumulated fees")
	ErrInsufficientShares       = errors.New("amount exceeds provider liquidity")
	ErrUnbackedFee              = errors.New("fee is not backed by custody")
	ErrTargetNotAllowed         = errors.New("execute target not allowed")
	ErrExecuteFailed            = errors.New("execute call failed")
	ErrMessageAlreadyProcessed  = errors.New("message already processed")
	ErrInvalidMessage           = errors.New("invalid message")
	ErrReleaseFailed            = errors.New("pool release failed")
	ErrMessagingFailed          = errors.New("messaging endpoint call failed")
)
