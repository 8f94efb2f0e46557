// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/contract"
)

// PoolPrecompile is the singleton instance
var PoolPrecompile = &poolPrecompile{}

var _ contract.StatefulPrecompiledContract = (*poolPrecompile)(nil)

// poolPrecompile custodies the token. The fee ledger is a logical
// reservation inside the custody balance: releases and withdrawals may
// only draw on custody - accumulatedFees.
type poolPrecompile struct{}

// AccumulatedFees reads the fee ledger of the pool at [addr].
func AccumulatedFees(stateDB contract.StateDB, addr common.Address) *uint256.Int {
	return contract.GetUint256(stateDB, addr, feesSlot)
}

// LiquidityOf reads the principal [provider] has deposited into the pool at [addr].
func LiquidityOf(stateDB contract.StateDB, addr, provider common.Address) *uint256.Int {
	return contract.GetUint256(stateDB, addr, lpKey(provider))
}

// Run executes the pool precompile
func (p *poolPrecompile) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	method, args, err := PoolABI.Dispatch(input)
	if err != nil {
		return nil, suppliedGas, err
	}
	stateDB := accessibleState.GetStateDB()

	switch method.Name {
	case "admin":
		return packView(PoolABI, suppliedGas, method.Name, Admin(stateDB, addr))
	case "token":
		return packView(PoolABI, suppliedGas, method.Name, contract.GetAddress(stateDB, addr, tokenSlot))
	case "receiver":
		return packView(PoolABI, suppliedGas, method.Name, contract.GetAddress(stateDB, addr, receiverSlot))
	case "router":
		return packView(PoolABI, suppliedGas, method.Name, contract.GetAddress(stateDB, addr, routerSlot))
	case "accumulatedFees":
		return packView(PoolABI, suppliedGas, method.Name, AccumulatedFees(stateDB, addr).ToBig())
	case "totalLiquidity":
		return packView(PoolABI, suppliedGas, method.Name, contract.GetUint256(stateDB, addr, liquiditySlot).ToBig())
	case "liquidityOf":
		return packView(PoolABI, suppliedGas, method.Name, LiquidityOf(stateDB, addr, args[0].(common.Address)).ToBig())
	case "isExecuteTarget":
		return packView(PoolABI, suppliedGas, method.Name, contract.GetBool(stateDB, addr, executeTargetKey(args[0].(common.Address))))
	case "custodyBalance", "availableLiquidity":
		return p.balances(accessibleState, addr, method.Name, suppliedGas)
	}

	if readOnly {
		return nil, suppliedGas, contract.ErrWriteProtection
	}

	switch method.Name {
	case "depositLiquidity":
		return p.depositLiquidity(accessibleState, caller, addr, args, suppliedGas)
	case "withdrawLiquidity":
		return p.withdrawLiquidity(accessibleState, caller, addr, args, suppliedGas)
	case "release":
		return p.release(accessibleState, caller, addr, args, suppliedGas)
	case "depositFee":
		return p.depositFee(accessibleState, caller, addr, args, suppliedGas)
	case "withdrawFees":
		return p.withdrawFees(accessibleState, caller, addr, args, suppliedGas)
	case "execute":
		return p.execute(accessibleState, caller, addr, args, suppliedGas)
	case "setReceiver", "setRouter", "setAdmin", "setExecuteTarget":
		return p.admin(accessibleState, caller, addr, method.Name, args, suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("%w: %s", contract.ErrInvalidInput, method.Name)
	}
}

// custody reads the pool's token balance and its fee-free part.
func (p *poolPrecompile) custody(
	state contract.AccessibleState,
	addr common.Address,
	gas uint64,
) (custody *uint256.Int, available *uint256.Int, remainingGas uint64, err error) {
	tokenAddr := contract.GetAddress(state.GetStateDB(), addr, tokenSlot)
	custody, remainingGas, err = tokenBalanceOf(state, addr, tokenAddr, addr, gas)
	if err != nil {
		return nil, nil, remainingGas, err
	}
	return custody, Available(custody, AccumulatedFees(state.GetStateDB(), addr)), remainingGas, nil
}

func (p *poolPrecompile) balances(
	state contract.AccessibleState,
	addr common.Address,
	name string,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasView)
	if err != nil {
		return nil, 0, err
	}
	custody, available, remainingGas, err := p.custody(state, addr, remainingGas)
	if err != nil {
		return nil, remainingGas, err
	}
	value := custody
	if name == "availableLiquidity" {
		value = available
	}
	out, err := PoolABI.PackOutput(name, value.ToBig())
	return out, remainingGas, err
}

// depositLiquidity is permissionless. The caller must have approved the pool.
func (p *poolPrecompile) depositLiquidity(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasDeposit)
	if err != nil {
		return nil, 0, err
	}
	amount, err := amountArg(args[0])
	if err != nil {
		return nil, remainingGas, err
	}
	if amount.IsZero() {
		return nil, remainingGas, ErrInvalidAmount
	}

	stateDB := state.GetStateDB()
	tokenAddr := contract.GetAddress(stateDB, addr, tokenSlot)
	if remainingGas, err = tokenTransferFrom(state, addr, tokenAddr, caller, addr, amount, remainingGas); err != nil {
		return nil, remainingGas, err
	}

	share := LiquidityOf(stateDB, addr, caller)
	contract.SetUint256(stateDB, addr, lpKey(caller), share.Add(share, amount))
	total := contract.GetUint256(stateDB, addr, liquiditySlot)
	contract.SetUint256(stateDB, addr, liquiditySlot, total.Add(total, amount))

	return nil, remainingGas, emit(state, PoolABI, addr, "LiquidityDeposited", caller, amount.ToBig())
}

// withdrawLiquidity returns at most the caller's own principal, and never
// more than the fee-free part of custody.
func (p *poolPrecompile) withdrawLiquidity(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasWithdraw)
	if err != nil {
		return nil, 0, err
	}
	amount, err := amountArg(args[0])
	if err != nil {
		return nil, remainingGas, err
	}
	if amount.IsZero() {
		return nil, remainingGas, ErrInvalidAmount
	}

	stateDB := state.GetStateDB()
	share := LiquidityOf(stateDB, addr, caller)
	if amount.Gt(share) {
		return nil, remainingGas, fmt.Errorf("%w: %s > %s", ErrInsufficientShares, amount, share)
	}
	_, available, remainingGas, err := p.custody(state, addr, remainingGas)
	if err != nil {
		return nil, remainingGas, err
	}
	if amount.Gt(available) {
		return nil, remainingGas, fmt.Errorf("%w: %s > %s available", ErrInsufficientLiquidity, amount, available)
	}

	contract.SetUint256(stateDB, addr, lpKey(caller), share.Sub(share, amount))
	total := contract.GetUint256(stateDB, addr, liquiditySlot)
	contract.SetUint256(stateDB, addr, liquiditySlot, total.Sub(total, amount))

	tokenAddr := contract.GetAddress(stateDB, addr, tokenSlot)
	if remainingGas, err = tokenTransfer(state, addr, tokenAddr, caller, amount, remainingGas); err != nil {
		return nil, remainingGas, err
	}
	return nil, remainingGas, emit(state, PoolABI, addr, "LiquidityWithdrawn", caller, amount.ToBig())
}

// release pays [amount] to [recipient]. Only the receiver or the router may
// call it, and fees are never spent.
func (p *poolPrecompile) release(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasRelease)
	if err != nil {
		return nil, 0, err
	}
	stateDB := state.GetStateDB()
	receiver := contract.GetAddress(stateDB, addr, receiverSlot)
	router := contract.GetAddress(stateDB, addr, routerSlot)
	if caller == (common.Address{}) || (caller != receiver && caller != router) {
		return nil, remainingGas, fmt.Errorf("%w: %s may not release", ErrUnauthorized, caller)
	}

	recipient := args[0].(common.Address)
	if recipient == (common.Address{}) {
		return nil, remainingGas, ErrInvalidRecipient
	}
	amount, err := amountArg(args[1])
	if err != nil {
		return nil, remainingGas, err
	}
	if amount.IsZero() {
		return nil, remainingGas, ErrInvalidAmount
	}

	_, available, remainingGas, err := p.custody(state, addr, remainingGas)
	if err != nil {
		return nil, remainingGas, err
	}
	if amount.Gt(available) {
		return nil, remainingGas, fmt.Errorf("%w: %s > %s available", ErrInsufficientLiquidity, amount, available)
	}

	tokenAddr := contract.GetAddress(stateDB, addr, tokenSlot)
	if remainingGas, err = tokenTransfer(state, addr, tokenAddr, recipient, amount, remainingGas); err != nil {
		return nil, remainingGas, err
	}
	return nil, remainingGas, emit(state, PoolABI, addr, "Released", recipient, amount.ToBig(), caller)
}

// depositFee books [fee] into the ledger. The router has already moved the
// whole swap amount into custody in the same transaction.
func (p *poolPrecompile) depositFee(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasDepositFee)
	if err != nil {
		return nil, 0, err
	}
	stateDB := state.GetStateDB()
	router := contract.GetAddress(stateDB, addr, routerSlot)
	if router == (common.Address{}) || caller != router {
		return nil, remainingGas, fmt.Errorf("%w: only the router deposits fees", ErrUnauthorized)
	}
	fee, err := amountArg(args[0])
	if err != nil {
		return nil, remainingGas, err
	}

	custody, _, remainingGas, err := p.custody(state, addr, remainingGas)
	if err != nil {
		return nil, remainingGas, err
	}
	fees, overflow := new(uint256.Int).AddOverflow(AccumulatedFees(stateDB, addr), fee)
	if overflow || custody.Lt(fees) {
		return nil, remainingGas, fmt.Errorf("%w: custody %s, fees %s", ErrUnbackedFee, custody, fees)
	}
	contract.SetUint256(stateDB, addr, feesSlot, fees)
	return nil, remainingGas, emit(state, PoolABI, addr, "FeeDeposited", fee.ToBig(), fees.ToBig())
}

func (p *poolPrecompile) withdrawFees(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasWithdraw)
	if err != nil {
		return nil, 0, err
	}
	stateDB := state.GetStateDB()
	if err := requireAdmin(stateDB, addr, caller); err != nil {
		return nil, remainingGas, err
	}
	to := args[0].(common.Address)
	if to == (common.Address{}) {
		return nil, remainingGas, ErrInvalidAddress
	}
	amount, err := amountArg(args[1])
	if err != nil {
		return nil, remainingGas, err
	}
	if amount.IsZero() {
		return nil, remainingGas, ErrInvalidAmount
	}
	fees := AccumulatedFees(stateDB, addr)
	if amount.Gt(fees) {
		return nil, remainingGas, fmt.Errorf("%w: %s > %s", ErrInsufficientFees, amount, fees)
	}
	contract.SetUint256(stateDB, addr, feesSlot, fees.Sub(fees, amount))

	tokenAddr := contract.GetAddress(stateDB, addr, tokenSlot)
	if remainingGas, err = tokenTransfer(state, addr, tokenAddr, to, amount, remainingGas); err != nil {
		return nil, remainingGas, err
	}
	return nil, remainingGas, emit(state, PoolABI, addr, "FeesWithdrawn", to, amount.ToBig())
}

// execute forwards [data] to an allow-listed [target] with the pool as the
// caller. Admin only.
func (p *poolPrecompile) execute(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasExecute)
	if err != nil {
		return nil, 0, err
	}
	stateDB := state.GetStateDB()
	if err := requireAdmin(stateDB, addr, caller); err != nil {
		return nil, remainingGas, err
	}
	target := args[0].(common.Address)
	data := args[1].([]byte)
	if target == addr || !contract.GetBool(stateDB, addr, executeTargetKey(target)) {
		return nil, remainingGas, fmt.Errorf("%w: %s", ErrTargetNotAllowed, target)
	}

	ret, remainingGas, err := state.Call(addr, target, data, remainingGas, nil, false)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%w: %w", ErrExecuteFailed, err)
	}
	if err := emit(state, PoolABI, addr, "Executed", target, data); err != nil {
		return nil, remainingGas, err
	}
	out, err := PoolABI.PackOutput("execute", ret)
	return out, remainingGas, err
}

func (p *poolPrecompile) admin(
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
	if err := requireAdmin(stateDB, addr, caller); err != nil {
		return nil, remainingGas, err
	}
	target := args[0].(common.Address)

	switch name {
	case "setReceiver":
		if err := setAddressSlot(stateDB, addr, receiverSlot, target); err != nil {
			return nil, remainingGas, err
		}
		return nil, remainingGas, emit(state, PoolABI, addr, "ReceiverSet", target)
	case "setRouter":
		if err := setAddressSlot(stateDB, addr, routerSlot, target); err != nil {
			return nil, remainingGas, err
		}
		return nil, remainingGas, emit(state, PoolABI, addr, "RouterSet", target)
	case "setAdmin":
		if err := setAddressSlot(stateDB, addr, adminSlot, target); err != nil {
			return nil, remainingGas, err
		}
		return nil, remainingGas, emit(state, PoolABI, addr, "AdminChanged", target)
	default: // setExecuteTarget
		if target == (common.Address{}) {
			return nil, remainingGas, ErrInvalidAddress
		}
		allowed := args[1].(bool)
		contract.SetBool(stateDB, addr, executeTargetKey(target), allowed)
		return nil, remainingGas, emit(state, PoolABI, addr, "ExecuteTargetSet", target, allowed)
	}
}
