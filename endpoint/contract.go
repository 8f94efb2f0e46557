// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package endpoint implements the on-chain side of the messaging transport:
// it prices and accepts outbound packets and hands inbound packets, relayed
// by a trusted executor, to their receiver contract.
package endpoint

import (
	_ "embed"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/zeebo/blake3"

	"github.com/luxfi/xswap/contract"
)

var (
	//go:embed contract.abi
	rawABI string
	//go:embed receiver.abi
	rawReceiverABI string

	// ABI of the endpoint precompile.
	ABI = contract.ParseABI(rawABI)
	// ReceiverABI is the inbound entry point every receiver must expose.
	ReceiverABI = contract.ParseABI(rawReceiverABI)
)

// Gas costs
const (
	GasView    uint64 = 2_600
	GasQuote   uint64 = 5_000
	GasSend    uint64 = 50_000
	GasDeliver uint64 = 40_000
	GasAdmin   uint64 = 20_000
)

var (
	ErrUnauthorized        = errors.New("unauthorized: caller is not admin")
	ErrNotExecutor         = errors.New("unauthorized: caller is not the executor")
	ErrInvalidAddress      = errors.New("invalid address: cannot be zero")
	ErrInsufficientFee     = errors.New("insufficient native fee")
	ErrLzTokenUnavailable  = errors.New("alternate fee token is not supported")
	ErrUnknownDestination  = errors.New("destination endpoint id must be non-zero and remote")
	ErrInsufficientBalance = errors.New("endpoint balance too low")
	ErrEmptyReceiver       = errors.New("receiver cannot be zero")
)

var (
	adminSlot    = contract.StorageKey("endpoint/admin")
	executorSlot = contract.StorageKey("endpoint/executor")
	eidSlot      = contract.StorageKey("endpoint/eid")
	baseFeeSlot  = contract.StorageKey("endpoint/baseFee")
	gasPriceSlot = contract.StorageKey("endpoint/gasPrice")
)

func nonceKey(sender common.Address, dstEid uint32) common.Hash {
	return contract.StorageKey("endpoint/nonce", sender.Bytes(), contract.Uint32Bytes(dstEid))
}

// EndpointPrecompile is the singleton instance
var EndpointPrecompile = &endpointPrecompile{}

var _ contract.StatefulPrecompiledContract = (*endpointPrecompile)(nil)

type endpointPrecompile struct{}

// GUID derives the globally unique id of a packet.
func GUID(srcEid uint32, sender common.Address, dstEid uint32, receiver [32]byte, nonce uint64) [32]byte {
	h := blake3.New()
	h.Write(contract.Uint32Bytes(srcEid))
	h.Write(sender.Bytes())
	h.Write(contract.Uint32Bytes(dstEid))
	h.Write(receiver[:])
	h.Write(contract.Uint64Bytes(nonce))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Quote prices a packet with the fee parameters stored at [addr].
func Quote(state contract.StateDB, addr common.Address, options []byte) (*uint256.Int, error) {
	opts, err := DecodeOptions(options)
	if err != nil {
		return nil, err
	}
	fee := contract.GetUint256(state, addr, baseFeeSlot)
	execution, overflow := new(uint256.Int).MulOverflow(
		uint256.NewInt(opts.GasLimit),
		contract.GetUint256(state, addr, gasPriceSlot),
	)
	if overflow {
		return nil, fmt.Errorf("%w: execution fee overflows", ErrInvalidOptions)
	}
	if _, overflow := fee.AddOverflow(fee, execution); overflow {
		return nil, fmt.Errorf("%w: fee overflows", ErrInvalidOptions)
	}
	if _, overflow := fee.AddOverflow(fee, opts.NativeDrop); overflow {
		return nil, fmt.Errorf("%w: fee overflows", ErrInvalidOptions)
	}
	return fee, nil
}

// Eid returns the local endpoint id stored at [addr].
func Eid(state contract.StateDB, addr common.Address) uint32 {
	return uint32(contract.GetUint64(state, addr, eidSlot))
}

// Run executes the endpoint precompile
func (e *endpointPrecompile) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	method, args, err := ABI.Dispatch(input)
	if err != nil {
		return nil, suppliedGas, err
	}
	stateDB := accessibleState.GetStateDB()

	switch method.Name {
	case "eid":
		return view(suppliedGas, method.Name, Eid(stateDB, addr))
	case "admin":
		return view(suppliedGas, method.Name, contract.GetAddress(stateDB, addr, adminSlot))
	case "executor":
		return view(suppliedGas, method.Name, contract.GetAddress(stateDB, addr, executorSlot))
	case "feeParams":
		return view(suppliedGas, method.Name,
			contract.GetUint256(stateDB, addr, baseFeeSlot).ToBig(),
			contract.GetUint256(stateDB, addr, gasPriceSlot).ToBig(),
		)
	case "outboundNonce":
		return view(suppliedGas, method.Name,
			contract.GetUint64(stateDB, addr, nonceKey(args[0].(common.Address), args[1].(uint32))))
	case "quote":
		return e.quote(stateDB, addr, args, suppliedGas)
	}

	if readOnly {
		return nil, suppliedGas, contract.ErrWriteProtection
	}

	switch method.Name {
	case "send":
		return e.send(accessibleState, caller, addr, args, suppliedGas)
	case "deliver":
		return e.deliver(accessibleState, caller, addr, args, suppliedGas)
	case "setExecutor", "setFeeParams", "setAdmin", "withdraw":
		return e.admin(accessibleState, caller, addr, method.Name, args, suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("%w: %s", contract.ErrInvalidInput, method.Name)
	}
}

func view(suppliedGas uint64, name string, values ...interface{}) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasView)
	if err != nil {
		return nil, 0, err
	}
	out, err := ABI.PackOutput(name, values...)
	return out, remainingGas, err
}

func (e *endpointPrecompile) quote(
	stateDB contract.StateDB,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasQuote)
	if err != nil {
		return nil, 0, err
	}
	dstEid := args[0].(uint32)
	if dstEid == 0 || dstEid == Eid(stateDB, addr) {
		return nil, remainingGas, fmt.Errorf("%w: %d", ErrUnknownDestination, dstEid)
	}
	if args[4].(bool) {
		return nil, remainingGas, ErrLzTokenUnavailable
	}
	fee, err := Quote(stateDB, addr, args[3].([]byte))
	if err != nil {
		return nil, remainingGas, err
	}
	out, err := ABI.PackOutput("quote", fee.ToBig(), new(big.Int))
	return out, remainingGas, err
}

func (e *endpointPrecompile) send(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasSend)
	if err != nil {
		return nil, 0, err
	}
	var (
		dstEid   = args[0].(uint32)
		receiver = args[1].([32]byte)
		message  = args[2].([]byte)
		options  = args[3].([]byte)
		refundTo = args[4].(common.Address)
	)
	stateDB := state.GetStateDB()
	srcEid := Eid(stateDB, addr)
	if dstEid == 0 || dstEid == srcEid {
		return nil, remainingGas, fmt.Errorf("%w: %d", ErrUnknownDestination, dstEid)
	}
	if receiver == ([32]byte{}) {
		return nil, remainingGas, ErrEmptyReceiver
	}
	if refundTo == (common.Address{}) {
		refundTo = caller
	}

	fee, err := Quote(stateDB, addr, options)
	if err != nil {
		return nil, remainingGas, err
	}
	paid := state.GetCallValue()
	if paid.Lt(fee) {
		return nil, remainingGas, fmt.Errorf("%w: paid %s, required %s", ErrInsufficientFee, paid, fee)
	}
	if excess := new(uint256.Int).Sub(paid, fee); !excess.IsZero() {
		stateDB.SubBalance(addr, excess, tracing.BalanceChangeTransfer)
		stateDB.AddBalance(refundTo, excess, tracing.BalanceChangeTransfer)
	}

	key := nonceKey(caller, dstEid)
	nonce := contract.GetUint64(stateDB, addr, key) + 1
	contract.SetUint64(stateDB, addr, key, nonce)

	guid := GUID(srcEid, caller, dstEid, receiver, nonce)
	blockNumber := state.GetBlockContext().Number().Uint64()
	if err := ABI.EmitEvent(stateDB, addr, blockNumber, "PacketSent",
		guid, srcEid, caller, dstEid, receiver, nonce, message, options,
	); err != nil {
		return nil, remainingGas, err
	}

	out, err := ABI.PackOutput("send", guid, nonce, fee.ToBig())
	return out, remainingGas, err
}

func (e *endpointPrecompile) deliver(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasDeliver)
	if err != nil {
		return nil, 0, err
	}
	stateDB := state.GetStateDB()
	if caller != contract.GetAddress(stateDB, addr, executorSlot) {
		return nil, remainingGas, ErrNotExecutor
	}
	var (
		srcEid   = args[0].(uint32)
		sender   = args[1].([32]byte)
		nonce    = args[2].(uint64)
		receiver = args[3].(common.Address)
		guid     = args[4].([32]byte)
		message  = args[5].([]byte)
	)
	if receiver == (common.Address{}) {
		return nil, remainingGas, ErrEmptyReceiver
	}

	_, remainingGas, err = ReceiverABI.CallMethod(state, addr, receiver, remainingGas, nil, false,
		"onMessage", srcEid, sender, guid, message)
	if err != nil {
		return nil, remainingGas, err
	}

	blockNumber := state.GetBlockContext().Number().Uint64()
	return nil, remainingGas, ABI.EmitEvent(stateDB, addr, blockNumber, "PacketDelivered",
		guid, srcEid, sender, nonce, receiver)
}

func (e *endpointPrecompile) admin(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	name string,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasAdmin)
	if err != nil {
		return nil, 0, err
	}
	stateDB := state.GetStateDB()
	if caller != contract.GetAddress(stateDB, addr, adminSlot) {
		return nil, remainingGas, ErrUnauthorized
	}
	blockNumber := state.GetBlockContext().Number().Uint64()

	switch name {
	case "setExecutor":
		executor := args[0].(common.Address)
		if executor == (common.Address{}) {
			return nil, remainingGas, ErrInvalidAddress
		}
		contract.SetAddress(stateDB, addr, executorSlot, executor)
		return nil, remainingGas, ABI.EmitEvent(stateDB, addr, blockNumber, "ExecutorSet", executor)
	case "setFeeParams":
		baseFee, err := contract.BigToUint256(args[0].(*big.Int))
		if err != nil {
			return nil, remainingGas, err
		}
		gasPrice, err := contract.BigToUint256(args[1].(*big.Int))
		if err != nil {
			return nil, remainingGas, err
		}
		contract.SetUint256(stateDB, addr, baseFeeSlot, baseFee)
		contract.SetUint256(stateDB, addr, gasPriceSlot, gasPrice)
		return nil, remainingGas, ABI.EmitEvent(stateDB, addr, blockNumber, "FeeParamsSet", baseFee.ToBig(), gasPrice.ToBig())
	case "setAdmin":
		admin := args[0].(common.Address)
		if admin == (common.Address{}) {
			return nil, remainingGas, ErrInvalidAddress
		}
		contract.SetAddress(stateDB, addr, adminSlot, admin)
		return nil, remainingGas, nil
	default: // withdraw
		to := args[0].(common.Address)
		amount, err := contract.BigToUint256(args[1].(*big.Int))
		if err != nil {
			return nil, remainingGas, err
		}
		if to == (common.Address{}) {
			return nil, remainingGas, ErrInvalidAddress
		}
		if stateDB.GetBalance(addr).Lt(amount) {
			return nil, remainingGas, ErrInsufficientBalance
		}
		stateDB.SubBalance(addr, amount, tracing.BalanceChangeTransfer)
		stateDB.AddBalance(to, amount, tracing.BalanceChangeTransfer)
		return nil, remainingGas, nil
	}
}
