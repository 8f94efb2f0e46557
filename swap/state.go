// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/token"
)

// Storage slots. Each contract writes under its own address, so the shared
// keys never collide.
var (
	adminSlot    = contract.StorageKey("swap/admin")
	tokenSlot    = contract.StorageKey("swap/token")
	poolSlot     = contract.StorageKey("swap/pool")
	endpointSlot = contract.StorageKey("swap/endpoint")

	receiverSlot  = contract.StorageKey("pool/receiver")
	routerSlot    = contract.StorageKey("pool/router")
	feesSlot      = contract.StorageKey("pool/fees")
	liquiditySlot = contract.StorageKey("pool/liquidity")

	feeBpsSlot = contract.StorageKey("router/feeBps")
)

func lpKey(provider common.Address) common.Hash {
	return contract.StorageKey("pool/lp", provider.Bytes())
}

func executeTargetKey(target common.Address) common.Hash {
	return contract.StorageKey("pool/exec", target.Bytes())
}

func outboundNonceKey(dstChainID uint32) common.Hash {
	return contract.StorageKey("router/nonce", contract.Uint32Bytes(dstChainID))
}

func processedKey(srcChainID uint32, sender [32]byte, nonce uint64) common.Hash {
	return contract.StorageKey("receiver/done", contract.Uint32Bytes(srcChainID), sender[:], contract.Uint64Bytes(nonce))
}

// Admin returns the role holder of the contract at [addr].
func Admin(stateDB contract.StateDB, addr common.Address) common.Address {
	return contract.GetAddress(stateDB, addr, adminSlot)
}

func requireAdmin(stateDB contract.StateDB, addr, caller common.Address) error {
	admin := Admin(stateDB, addr)
	if admin == (common.Address{}) || caller != admin {
		return fmt.Errorf("%w: caller %s is not admin", ErrUnauthorized, caller)
	}
	return nil
}

func setAddressSlot(stateDB contract.StateDB, addr common.Address, slot common.Hash, value common.Address) error {
	if value == (common.Address{}) {
		return ErrInvalidAddress
	}
	contract.SetAddress(stateDB, addr, slot, value)
	return nil
}

func emit(state contract.AccessibleState, a contract.ExtendedABI, addr common.Address, name string, args ...interface{}) error {
	blockNumber := state.GetBlockContext().Number().Uint64()
	return a.EmitEvent(state.GetStateDB(), addr, blockNumber, name, args...)
}

func packView(a contract.ExtendedABI, suppliedGas uint64, name string, values ...interface{}) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasView)
	if err != nil {
		return nil, 0, err
	}
	out, err := a.PackOutput(name, values...)
	return out, remainingGas, err
}

func amountArg(v interface{}) (*uint256.Int, error) {
	amount, err := contract.BigToUint256(asBig(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return amount, nil
}

// Token calls. Any failure of the token is fatal to the enclosing operation.

func tokenTransfer(
	state contract.AccessibleState,
	self, tokenAddr, to common.Address,
	amount *uint256.Int,
	gas uint64,
) (uint64, error) {
	out, gas, err := token.ABI.CallMethod(state, self, tokenAddr, gas, nil, false, "transfer", to, amount.ToBig())
	if err != nil {
		return gas, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if ok, _ := out[0].(bool); !ok {
		return gas, fmt.Errorf("%w: transfer returned false", ErrTransferFailed)
	}
	return gas, nil
}

func tokenTransferFrom(
	state contract.AccessibleState,
	self, tokenAddr, from, to common.Address,
	amount *uint256.Int,
	gas uint64,
) (uint64, error) {
	out, gas, err := token.ABI.CallMethod(state, self, tokenAddr, gas, nil, false, "transferFrom", from, to, amount.ToBig())
	if err != nil {
		return gas, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if ok, _ := out[0].(bool); !ok {
		return gas, fmt.Errorf("%w: transferFrom returned false", ErrTransferFailed)
	}
	return gas, nil
}

func tokenBalanceOf(
	state contract.AccessibleState,
	self, tokenAddr, account common.Address,
	gas uint64,
) (*uint256.Int, uint64, error) {
	out, gas, err := token.ABI.CallMethod(state, self, tokenAddr, gas, nil, true, "balanceOf", account)
	if err != nil {
		return nil, gas, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	balance, err := contract.BigToUint256(asBig(out[0]))
	if err != nil {
		return nil, gas, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return balance, gas, nil
}

func tokenAllowance(
	state contract.AccessibleState,
	self, tokenAddr, owner, spender common.Address,
	gas uint64,
) (*uint256.Int, uint64, error) {
	out, gas, err := token.ABI.CallMethod(state, self, tokenAddr, gas, nil, true, "allowance", owner, spender)
	if err != nil {
		return nil, gas, err
	}
	allowance, err := contract.BigToUint256(asBig(out[0]))
	if err != nil {
		return nil, gas, err
	}
	return allowance, gas, nil
}
