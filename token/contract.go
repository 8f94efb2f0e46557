// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token implements a fungible token precompile with EIP-2612 permit.
// It is the asset the swap pool custodies.
package token

import (
	_ "embed"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/contract"
)

//go:embed contract.abi
var rawABI string

// ABI of the token precompile.
var ABI = contract.ParseABI(rawABI)

// Gas costs
const (
	GasView     uint64 = 2_600
	GasTransfer uint64 = 30_000
	GasApprove  uint64 = 25_000
	GasPermit   uint64 = 60_000
	GasMint     uint64 = 30_000
)

var (
	ErrUnauthorized          = errors.New("unauthorized: caller is not admin")
	ErrInvalidAddress        = errors.New("invalid address: cannot be zero")
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrPermitExpired         = errors.New("permit expired")
	ErrInvalidSigner         = errors.New("permit signer does not match owner")
	ErrSupplyOverflow        = errors.New("total supply overflows uint256")
)

var (
	adminSlot  = contract.StorageKey("token/admin")
	supplySlot = contract.StorageKey("token/supply")
)

func balanceKey(account common.Address) common.Hash {
	return contract.StorageKey("token/balance", account.Bytes())
}

func allowanceKey(owner, spender common.Address) common.Hash {
	return contract.StorageKey("token/allowance", owner.Bytes(), spender.Bytes())
}

func nonceKey(owner common.Address) common.Hash {
	return contract.StorageKey("token/nonce", owner.Bytes())
}

var _ contract.StatefulPrecompiledContract = (*Token)(nil)

// Token holds the immutable metadata of one token. Balances, allowances and
// nonces live in state under the address the token is deployed at.
type Token struct {
	name     string
	symbol   string
	decimals uint8
}

func New(name, symbol string, decimals uint8) *Token {
	return &Token{name: name, symbol: symbol, decimals: decimals}
}

func (t *Token) Name() string    { return t.name }
func (t *Token) Symbol() string  { return t.symbol }
func (t *Token) Decimals() uint8 { return t.decimals }

// Initialize records [admin] as the account allowed to mint.
func Initialize(state contract.StateDB, tokenAddr, admin common.Address) error {
	if admin == (common.Address{}) {
		return ErrInvalidAddress
	}
	contract.SetAddress(state, tokenAddr, adminSlot, admin)
	return nil
}

// Mint credits [amount] new tokens to [to].
func Mint(state contract.StateDB, tokenAddr, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrInvalidAddress
	}
	supply, overflow := new(uint256.Int).AddOverflow(TotalSupply(state, tokenAddr), amount)
	if overflow {
		return ErrSupplyOverflow
	}
	contract.SetUint256(state, tokenAddr, supplySlot, supply)
	balance := BalanceOf(state, tokenAddr, to)
	contract.SetUint256(state, tokenAddr, balanceKey(to), balance.Add(balance, amount))
	return nil
}

func TotalSupply(state contract.StateDB, tokenAddr common.Address) *uint256.Int {
	return contract.GetUint256(state, tokenAddr, supplySlot)
}

func BalanceOf(state contract.StateDB, tokenAddr, account common.Address) *uint256.Int {
	return contract.GetUint256(state, tokenAddr, balanceKey(account))
}

func Allowance(state contract.StateDB, tokenAddr, owner, spender common.Address) *uint256.Int {
	return contract.GetUint256(state, tokenAddr, allowanceKey(owner, spender))
}

func Nonce(state contract.StateDB, tokenAddr, owner common.Address) *uint256.Int {
	return contract.GetUint256(state, tokenAddr, nonceKey(owner))
}

// Run executes the token precompile
func (t *Token) Run(
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
	case "name":
		return view(suppliedGas, method.Name, t.name)
	case "symbol":
		return view(suppliedGas, method.Name, t.symbol)
	case "decimals":
		return view(suppliedGas, method.Name, t.decimals)
	case "totalSupply":
		return view(suppliedGas, method.Name, TotalSupply(stateDB, addr).ToBig())
	case "balanceOf":
		return view(suppliedGas, method.Name, BalanceOf(stateDB, addr, args[0].(common.Address)).ToBig())
	case "allowance":
		return view(suppliedGas, method.Name, Allowance(stateDB, addr, args[0].(common.Address), args[1].(common.Address)).ToBig())
	case "nonces":
		return view(suppliedGas, method.Name, Nonce(stateDB, addr, args[0].(common.Address)).ToBig())
	case "DOMAIN_SEPARATOR":
		return view(suppliedGas, method.Name, [32]byte(DomainSeparator(t.name, accessibleState.GetChainID(), addr)))
	case "admin":
		return view(suppliedGas, method.Name, contract.GetAddress(stateDB, addr, adminSlot))
	}

	if readOnly {
		return nil, suppliedGas, contract.ErrWriteProtection
	}

	switch method.Name {
	case "transfer":
		return t.transfer(accessibleState, caller, addr, args, suppliedGas)
	case "approve":
		return t.approve(accessibleState, caller, addr, args, suppliedGas)
	case "transferFrom":
		return t.transferFrom(accessibleState, caller, addr, args, suppliedGas)
	case "permit":
		return t.permit(accessibleState, addr, args, suppliedGas)
	case "mint":
		return t.mint(accessibleState, caller, addr, args, suppliedGas)
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
	if err != nil {
		return nil, remainingGas, err
	}
	return out, remainingGas, nil
}

func (t *Token) transfer(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasTransfer)
	if err != nil {
		return nil, 0, err
	}
	value, err := contract.BigToUint256(args[1].(*big.Int))
	if err != nil {
		return nil, remainingGas, err
	}
	if err := move(state, addr, caller, args[0].(common.Address), value); err != nil {
		return nil, remainingGas, err
	}
	out, err := ABI.PackOutput("transfer", true)
	return out, remainingGas, err
}

func (t *Token) approve(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasApprove)
	if err != nil {
		return nil, 0, err
	}
	value, err := contract.BigToUint256(args[1].(*big.Int))
	if err != nil {
		return nil, remainingGas, err
	}
	if err := setAllowance(state, addr, caller, args[0].(common.Address), value); err != nil {
		return nil, remainingGas, err
	}
	out, err := ABI.PackOutput("approve", true)
	return out, remainingGas, err
}

func (t *Token) transferFrom(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasTransfer)
	if err != nil {
		return nil, 0, err
	}
	from := args[0].(common.Address)
	to := args[1].(common.Address)
	value, err := contract.BigToUint256(args[2].(*big.Int))
	if err != nil {
		return nil, remainingGas, err
	}

	stateDB := state.GetStateDB()
	allowance := Allowance(stateDB, addr, from, caller)
	if !isInfinite(allowance) {
		if allowance.Lt(value) {
			return nil, remainingGas, fmt.Errorf("%w: %s < %s", ErrInsufficientAllowance, allowance, value)
		}
		contract.SetUint256(stateDB, addr, allowanceKey(from, caller), new(uint256.Int).Sub(allowance, value))
	}
	if err := move(state, addr, from, to, value); err != nil {
		return nil, remainingGas, err
	}
	out, err := ABI.PackOutput("transferFrom", true)
	return out, remainingGas, err
}

func (t *Token) permit(
	state contract.AccessibleState,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasPermit)
	if err != nil {
		return nil, 0, err
	}
	owner := args[0].(common.Address)
	spender := args[1].(common.Address)
	value, err := contract.BigToUint256(args[2].(*big.Int))
	if err != nil {
		return nil, remainingGas, err
	}
	deadline := args[3].(*big.Int)
	v := args[4].(uint8)
	r := args[5].([32]byte)
	s := args[6].([32]byte)

	if owner == (common.Address{}) {
		return nil, remainingGas, ErrInvalidAddress
	}
	now := new(big.Int).SetUint64(state.GetBlockContext().Timestamp())
	if deadline.Cmp(now) < 0 {
		return nil, remainingGas, fmt.Errorf("%w: deadline %s < %s", ErrPermitExpired, deadline, now)
	}

	stateDB := state.GetStateDB()
	nonce := Nonce(stateDB, addr, owner)
	p := &Permit{
		Owner:    owner,
		Spender:  spender,
		Value:    value.ToBig(),
		Nonce:    nonce.ToBig(),
		Deadline: deadline,
	}
	digest := TypedDataHash(DomainSeparator(t.name, state.GetChainID(), addr), p.StructHash())
	signer, err := RecoverSigner(digest, v, r, s)
	if err != nil {
		return nil, remainingGas, err
	}
	if signer != owner {
		return nil, remainingGas, fmt.Errorf("%w: recovered %s", ErrInvalidSigner, signer)
	}

	contract.SetUint256(stateDB, addr, nonceKey(owner), nonce.AddUint64(nonce, 1))
	if err := setAllowance(state, addr, owner, spender, value); err != nil {
		return nil, remainingGas, err
	}
	return nil, remainingGas, nil
}

func (t *Token) mint(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasMint)
	if err != nil {
		return nil, 0, err
	}
	stateDB := state.GetStateDB()
	if caller != contract.GetAddress(stateDB, addr, adminSlot) {
		return nil, remainingGas, ErrUnauthorized
	}
	to := args[0].(common.Address)
	value, err := contract.BigToUint256(args[1].(*big.Int))
	if err != nil {
		return nil, remainingGas, err
	}
	if err := Mint(stateDB, addr, to, value); err != nil {
		return nil, remainingGas, err
	}
	blockNumber := state.GetBlockContext().Number().Uint64()
	return nil, remainingGas, ABI.EmitEvent(stateDB, addr, blockNumber, "Transfer", common.Address{}, to, value.ToBig())
}

func move(state contract.AccessibleState, addr, from, to common.Address, value *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrInvalidAddress
	}
	stateDB := state.GetStateDB()
	fromBalance := BalanceOf(stateDB, addr, from)
	if fromBalance.Lt(value) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, fromBalance, value)
	}
	contract.SetUint256(stateDB, addr, balanceKey(from), new(uint256.Int).Sub(fromBalance, value))
	toBalance := BalanceOf(stateDB, addr, to)
	contract.SetUint256(stateDB, addr, balanceKey(to), toBalance.Add(toBalance, value))

	blockNumber := state.GetBlockContext().Number().Uint64()
	return ABI.EmitEvent(stateDB, addr, blockNumber, "Transfer", from, to, value.ToBig())
}

func setAllowance(state contract.AccessibleState, addr, owner, spender common.Address, value *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrInvalidAddress
	}
	stateDB := state.GetStateDB()
	contract.SetUint256(stateDB, addr, allowanceKey(owner, spender), value)

	blockNumber := state.GetBlockContext().Number().Uint64()
	return ABI.EmitEvent(stateDB, addr, blockNumber, "Approval", owner, spender, value.ToBig())
}

func isInfinite(allowance *uint256.Int) bool {
	return allowance.Eq(new(uint256.Int).SetAllOne())
}
