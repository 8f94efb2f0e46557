// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/message"
)

// ReceiverPrecompile is the singleton instance
var ReceiverPrecompile = &receiverPrecompile{}

var _ contract.StatefulPrecompiledContract = (*receiverPrecompile)(nil)

type receiverPrecompile struct{}

// IsProcessed reports whether the receiver at [addr] has already paid out
// the message [nonce] from [sender] on [srcChainID].
func IsProcessed(stateDB contract.StateDB, addr common.Address, srcChainID uint32, sender [32]byte, nonce uint64) bool {
	return contract.GetBool(stateDB, addr, processedKey(srcChainID, sender, nonce))
}

// Run executes the receiver precompile
func (r *receiverPrecompile) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	method, args, err := ReceiverABI.Dispatch(input)
	if err != nil {
		return nil, suppliedGas, err
	}
	stateDB := accessibleState.GetStateDB()

	switch method.Name {
	case "admin":
		return packView(ReceiverABI, suppliedGas, method.Name, Admin(stateDB, addr))
	case "pool":
		return packView(ReceiverABI, suppliedGas, method.Name, contract.GetAddress(stateDB, addr, poolSlot))
	case "endpoint":
		return packView(ReceiverABI, suppliedGas, method.Name, contract.GetAddress(stateDB, addr, endpointSlot))
	case "peers":
		return packView(ReceiverABI, suppliedGas, method.Name, Peer(stateDB, addr, args[0].(uint32)))
	case "isProcessed":
		return packView(ReceiverABI, suppliedGas, method.Name,
			IsProcessed(stateDB, addr, args[0].(uint32), args[1].([32]byte), args[2].(uint64)))
	}

	if readOnly {
		return nil, suppliedGas, contract.ErrWriteProtection
	}

	switch method.Name {
	case "onMessage":
		return r.onMessage(accessibleState, caller, addr, args, suppliedGas)
	case "setPeer":
		return runSetPeer(accessibleState, ReceiverABI, caller, addr, args, suppliedGas)
	case "setPool", "setEndpoint", "setAdmin":
		return r.admin(accessibleState, caller, addr, method.Name, args, suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("%w: %s", contract.ErrInvalidInput, method.Name)
	}
}

// onMessage pays out one inbound transfer. Any failure reverts the whole
// call, including the processed mark, so the transport sees the message as
// undelivered and may present it again.
func (r *receiverPrecompile) onMessage(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasOnMessage)
	if err != nil {
		return nil, 0, err
	}
	var (
		srcChainID = args[0].(uint32)
		sender     = args[1].([32]byte)
		guid       = args[2].([32]byte)
		payload    = args[3].([]byte)
	)
	stateDB := state.GetStateDB()
	endpointAddr := contract.GetAddress(stateDB, addr, endpointSlot)
	if endpointAddr == (common.Address{}) || caller != endpointAddr {
		return nil, remainingGas, fmt.Errorf("%w: %s is not the endpoint", ErrUnauthorized, caller)
	}
	if !isPeer(stateDB, addr, srcChainID, sender) {
		return nil, remainingGas, fmt.Errorf("%w: %x on chain %d", ErrUnknownPeer, sender, srcChainID)
	}

	msg, err := message.Decode(payload)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if !msg.HasNonce() {
		return nil, remainingGas, fmt.Errorf("%w: payload carries no nonce", ErrInvalidMessage)
	}
	recipient, err := message.Bytes32ToAddress(msg.Recipient)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	key := processedKey(srcChainID, sender, msg.Nonce)
	if contract.GetBool(stateDB, addr, key) {
		return nil, remainingGas, fmt.Errorf("%w: chain %d nonce %d", ErrMessageAlreadyProcessed, srcChainID, msg.Nonce)
	}
	contract.SetBool(stateDB, addr, key, true)

	poolAddr := contract.GetAddress(stateDB, addr, poolSlot)
	if poolAddr == (common.Address{}) {
		return nil, remainingGas, ErrPoolNotSet
	}
	_, remainingGas, err = PoolABI.CallMethod(state, addr, poolAddr, remainingGas, nil, false, "release",
		recipient, msg.Amount.ToBig())
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%w: %w", ErrReleaseFailed, err)
	}

	return nil, remainingGas, emit(state, ReceiverABI, addr, "SwapCompleted",
		guid, srcChainID, recipient, msg.Amount.ToBig(), msg.Nonce)
}

func (r *receiverPrecompile) admin(
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

	var slot common.Hash
	var event string
	switch name {
	case "setPool":
		slot, event = poolSlot, "PoolSet"
	case "setEndpoint":
		slot, event = endpointSlot, "EndpointSet"
	default: // setAdmin
		slot, event = adminSlot, "AdminChanged"
	}
	if err := setAddressSlot(stateDB, addr, slot, target); err != nil {
		return nil, remainingGas, err
	}
	return nil, remainingGas, emit(state, ReceiverABI, addr, event, target)
}
