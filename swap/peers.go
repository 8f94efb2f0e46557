// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/contract"
)

// Peer table shared by the router and the receiver: one trusted counterpart
// per remote chain id. Writing a chain id again replaces its entry.

func peerKey(chainID uint32) common.Hash {
	return contract.StorageKey("swap/peer", contract.Uint32Bytes(chainID))
}

// Peer returns the counterpart registered by the contract at [addr] for
// [chainID], or the zero value when none is set.
func Peer(stateDB contract.StateDB, addr common.Address, chainID uint32) [32]byte {
	return [32]byte(stateDB.GetState(addr, peerKey(chainID)))
}

func setPeer(stateDB contract.StateDB, addr common.Address, chainID uint32, peer [32]byte) {
	stateDB.SetState(addr, peerKey(chainID), common.Hash(peer))
}

// isPeer reports whether [sender] is the registered, non-zero peer for [chainID].
func isPeer(stateDB contract.StateDB, addr common.Address, chainID uint32, sender [32]byte) bool {
	peer := Peer(stateDB, addr, chainID)
	return peer != ([32]byte{}) && peer == sender
}

func runSetPeer(
	state contract.AccessibleState,
	a contract.ExtendedABI,
	caller, addr common.Address,
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
	chainID := args[0].(uint32)
	peer := args[1].([32]byte)
	setPeer(stateDB, addr, chainID, peer)
	return nil, remainingGas, emit(state, a, addr, "PeerSet", chainID, peer)
}
