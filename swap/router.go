// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/endpoint"
	"github.com/luxfi/xswap/message"
	"github.com/luxfi/xswap/token"
)

// RouterPrecompile is the singleton instance
var RouterPrecompile = &routerPrecompile{}

var _ contract.StatefulPrecompiledContract = (*routerPrecompile)(nil)

type routerPrecompile struct{}

// FeeBps returns the fee rate of the router at [addr].
func FeeBps(stateDB contract.StateDB, addr common.Address) uint16 {
	return uint16(contract.GetUint64(stateDB, addr, feeBpsSlot))
}

// OutboundNonce returns the last nonce the router at [addr] used towards [dstChainID].
func OutboundNonce(stateDB contract.StateDB, addr common.Address, dstChainID uint32) uint64 {
	return contract.GetUint64(stateDB, addr, outboundNonceKey(dstChainID))
}

// Run executes the router precompile
func (r *routerPrecompile) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	method, args, err := RouterABI.Dispatch(input)
	if err != nil {
		return nil, suppliedGas, err
	}
	stateDB := accessibleState.GetStateDB()

	switch method.Name {
	case "admin":
		return packView(RouterABI, suppliedGas, method.Name, Admin(stateDB, addr))
	case "token":
		return packView(RouterABI, suppliedGas, method.Name, contract.GetAddress(stateDB, addr, tokenSlot))
	case "pool":
		return packView(RouterABI, suppliedGas, method.Name, contract.GetAddress(stateDB, addr, poolSlot))
	case "endpoint":
		return packView(RouterABI, suppliedGas, method.Name, contract.GetAddress(stateDB, addr, endpointSlot))
	case "feeBps":
		return packView(RouterABI, suppliedGas, method.Name, FeeBps(stateDB, addr))
	case "peers":
		return packView(RouterABI, suppliedGas, method.Name, Peer(stateDB, addr, args[0].(uint32)))
	case "outboundNonce":
		return packView(RouterABI, suppliedGas, method.Name, OutboundNonce(stateDB, addr, args[0].(uint32)))
	case "quoteSwap":
		amount, err := amountArg(args[0])
		if err != nil {
			return nil, suppliedGas, err
		}
		fee, net := SplitFee(amount, FeeBps(stateDB, addr))
		return packView(RouterABI, suppliedGas, method.Name, fee.ToBig(), net.ToBig())
	case "estimateFee":
		return r.estimateFee(accessibleState, addr, args, suppliedGas)
	}

	if readOnly {
		return nil, suppliedGas, contract.ErrWriteProtection
	}

	switch method.Name {
	case "swap":
		req, err := newSwapRequest(caller, args)
		if err != nil {
			return nil, suppliedGas, err
		}
		return r.swap(accessibleState, caller, addr, req, suppliedGas)
	case "swapWithPermit":
		req, err := newSwapRequest(caller, args)
		if err != nil {
			return nil, suppliedGas, err
		}
		req.owner = args[4].(common.Address)
		req.permit = &permitWitness{
			deadline: args[5].(*big.Int),
			v:        args[6].(uint8),
			r:        args[7].([32]byte),
			s:        args[8].([32]byte),
		}
		return r.swap(accessibleState, caller, addr, req, suppliedGas)
	case "setPeer":
		return runSetPeer(accessibleState, RouterABI, caller, addr, args, suppliedGas)
	case "setPool", "setFeeBps", "setAdmin":
		return r.admin(accessibleState, caller, addr, method.Name, args, suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("%w: %s", contract.ErrInvalidInput, method.Name)
	}
}

// swapRequest is the intent of one swap call. It never outlives the call.
type swapRequest struct {
	name      string
	owner     common.Address
	dst       uint32
	recipient [32]byte
	amount    *uint256.Int
	options   []byte
	permit    *permitWitness
}

type permitWitness struct {
	deadline *big.Int
	v        uint8
	r, s     [32]byte
}

func newSwapRequest(caller common.Address, args []interface{}) (*swapRequest, error) {
	amount, err := amountArg(args[2])
	if err != nil {
		return nil, err
	}
	name := "swap"
	if len(args) > 4 {
		name = "swapWithPermit"
	}
	return &swapRequest{
		name:      name,
		owner:     caller,
		dst:       args[0].(uint32),
		recipient: args[1].([32]byte),
		amount:    amount,
		options:   args[3].([]byte),
	}, nil
}

// swapPlan holds everything resolved during pre-flight.
type swapPlan struct {
	tokenAddr    common.Address
	poolAddr     common.Address
	endpointAddr common.Address
	peer         [32]byte
	fee          *uint256.Int
	net          *uint256.Int
	nonce        uint64
	payload      []byte
	nativeFee    *uint256.Int
}

// preflight runs every check that can fail before any state is touched.
func (r *routerPrecompile) preflight(
	state contract.AccessibleState,
	addr common.Address,
	req *swapRequest,
	gas uint64,
) (*swapPlan, uint64, error) {
	stateDB := state.GetStateDB()
	if req.amount.IsZero() {
		return nil, gas, ErrInvalidAmount
	}
	if req.recipient == ([32]byte{}) {
		return nil, gas, ErrInvalidRecipient
	}
	// The receiver only pays out to left-padded EVM addresses.
	if _, err := message.Bytes32ToAddress(req.recipient); err != nil {
		return nil, gas, fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
	}
	if req.permit != nil {
		if err := r.checkPermit(state, req); err != nil {
			return nil, gas, err
		}
	}

	plan := &swapPlan{
		tokenAddr:    contract.GetAddress(stateDB, addr, tokenSlot),
		poolAddr:     contract.GetAddress(stateDB, addr, poolSlot),
		endpointAddr: contract.GetAddress(stateDB, addr, endpointSlot),
		peer:         Peer(stateDB, addr, req.dst),
	}
	if plan.peer == ([32]byte{}) {
		return nil, gas, fmt.Errorf("%w: %d", ErrPeerNotSet, req.dst)
	}
	if plan.poolAddr == (common.Address{}) {
		return nil, gas, ErrPoolNotSet
	}
	plan.fee, plan.net = SplitFee(req.amount, FeeBps(stateDB, addr))
	if plan.net.IsZero() {
		return nil, gas, fmt.Errorf("%w: nothing left after fee", ErrInvalidAmount)
	}

	plan.nonce = OutboundNonce(stateDB, addr, req.dst) + 1
	payload, err := message.Encode(&message.Transfer{
		Version:   message.Version1,
		Recipient: req.recipient,
		Amount:    plan.net,
		Nonce:     plan.nonce,
	})
	if err != nil {
		return nil, gas, err
	}
	plan.payload = payload

	plan.nativeFee, gas, err = quoteMessage(state, addr, plan.endpointAddr, req.dst, payload, req.options, gas)
	if err != nil {
		return nil, gas, err
	}
	if paid := state.GetCallValue(); paid.Lt(plan.nativeFee) {
		return nil, gas, fmt.Errorf("%w: paid %s, quoted %s", ErrInsufficientMessagingFee, paid, plan.nativeFee)
	}
	return plan, gas, nil
}

// checkPermit enforces what the signature itself cannot bind. The permit
// signs owner, spender, value and deadline but not the recipient, so a
// relayed swap may only pay the owner's own address.
func (r *routerPrecompile) checkPermit(state contract.AccessibleState, req *swapRequest) error {
	if req.owner == (common.Address{}) {
		return fmt.Errorf("%w: zero owner", ErrInvalidPermit)
	}
	now := new(big.Int).SetUint64(state.GetBlockContext().Timestamp())
	if req.permit.deadline.Cmp(now) < 0 {
		return fmt.Errorf("%w: deadline %s passed", ErrInvalidPermit, req.permit.deadline)
	}
	if req.recipient != message.AddressToBytes32(req.owner) {
		return fmt.Errorf("%w: recipient is not the owner", ErrInvalidPermit)
	}
	return nil
}

// applyPermit submits the owner's permit. A permit that was already
// submitted on its own, or front-run, still authorizes the swap as long as
// the allowance it granted covers the amount.
func (r *routerPrecompile) applyPermit(
	state contract.AccessibleState,
	addr common.Address,
	tokenAddr common.Address,
	req *swapRequest,
	gas uint64,
) (uint64, error) {
	_, gas, err := token.ABI.CallMethod(state, addr, tokenAddr, gas, nil, false, "permit",
		req.owner, addr, req.amount.ToBig(), req.permit.deadline, req.permit.v, req.permit.r, req.permit.s)
	if err == nil {
		return gas, nil
	}
	allowance, gas, allowanceErr := tokenAllowance(state, addr, tokenAddr, req.owner, addr, gas)
	if allowanceErr != nil || allowance.Lt(req.amount) {
		return gas, fmt.Errorf("%w: %w", ErrInvalidPermit, err)
	}
	return gas, nil
}

func (r *routerPrecompile) swap(
	state contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	req *swapRequest,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasSwap)
	if err != nil {
		return nil, 0, err
	}
	if req.permit != nil {
		if remainingGas, err = contract.DeductGas(remainingGas, GasPermit); err != nil {
			return nil, 0, err
		}
	}

	// Requested
	plan, remainingGas, err := r.preflight(state, addr, req, remainingGas)
	if err != nil {
		return nil, remainingGas, err
	}

	if req.permit != nil {
		if remainingGas, err = r.applyPermit(state, addr, plan.tokenAddr, req, remainingGas); err != nil {
			return nil, remainingGas, err
		}
	}

	// TokensPulled: the full amount goes straight into pool custody.
	if remainingGas, err = tokenTransferFrom(state, addr, plan.tokenAddr, req.owner, plan.poolAddr, req.amount, remainingGas); err != nil {
		return nil, remainingGas, err
	}

	// FeeSplit
	if !plan.fee.IsZero() {
		_, remainingGas, err = PoolABI.CallMethod(state, addr, plan.poolAddr, remainingGas, nil, false, "depositFee", plan.fee.ToBig())
		if err != nil {
			return nil, remainingGas, err
		}
	}

	// MessageSent
	contract.SetUint64(state.GetStateDB(), addr, outboundNonceKey(req.dst), plan.nonce)
	out, remainingGas, err := endpoint.ABI.CallMethod(state, addr, plan.endpointAddr, remainingGas, state.GetCallValue(), false, "send",
		req.dst, plan.peer, plan.payload, req.options, caller)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%w: %w", ErrMessagingFailed, err)
	}
	guid := out[0].([32]byte)

	if err := emit(state, RouterABI, addr, "SwapInitiated", req.owner, req.recipient, req.amount.ToBig(), req.dst); err != nil {
		return nil, remainingGas, err
	}
	if err := emit(state, RouterABI, addr, "MessageSent", guid, req.dst, plan.nonce, plan.net.ToBig(), plan.fee.ToBig()); err != nil {
		return nil, remainingGas, err
	}
	packed, err := RouterABI.PackOutput(req.name, guid, plan.nonce)
	return packed, remainingGas, err
}

// estimateFee quotes the message a swap of [amount] would send next.
func (r *routerPrecompile) estimateFee(
	state contract.AccessibleState,
	addr common.Address,
	args []interface{},
	suppliedGas uint64,
) ([]byte, uint64, error) {
	remainingGas, err := contract.DeductGas(suppliedGas, GasView)
	if err != nil {
		return nil, 0, err
	}
	stateDB := state.GetStateDB()
	dst := args[0].(uint32)
	amount, err := amountArg(args[1])
	if err != nil {
		return nil, remainingGas, err
	}
	_, net := SplitFee(amount, FeeBps(stateDB, addr))
	payload, err := message.Encode(&message.Transfer{
		Version:   message.Version1,
		Recipient: Peer(stateDB, addr, dst),
		Amount:    net,
		Nonce:     OutboundNonce(stateDB, addr, dst) + 1,
	})
	if err != nil {
		return nil, remainingGas, err
	}

	endpointAddr := contract.GetAddress(stateDB, addr, endpointSlot)
	nativeFee, remainingGas, err := quoteMessage(state, addr, endpointAddr, dst, payload, args[2].([]byte), remainingGas)
	if err != nil {
		return nil, remainingGas, err
	}
	out, err := RouterABI.PackOutput("estimateFee", nativeFee.ToBig(), new(big.Int))
	return out, remainingGas, err
}

func quoteMessage(
	state contract.AccessibleState,
	self, endpointAddr common.Address,
	dst uint32,
	payload, options []byte,
	gas uint64,
) (*uint256.Int, uint64, error) {
	if endpointAddr == (common.Address{}) {
		return nil, gas, fmt.Errorf("%w: endpoint not set", ErrMessagingFailed)
	}
	out, gas, err := endpoint.ABI.CallMethod(state, self, endpointAddr, gas, nil, true, "quote",
		dst, self, payload, options, false)
	if err != nil {
		return nil, gas, fmt.Errorf("%w: %w", ErrMessagingFailed, err)
	}
	nativeFee, err := contract.BigToUint256(asBig(out[0]))
	if err != nil {
		return nil, gas, fmt.Errorf("%w: %w", ErrMessagingFailed, err)
	}
	return nativeFee, gas, nil
}

func (r *routerPrecompile) admin(
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

	switch name {
	case "setPool":
		pool := args[0].(common.Address)
		if err := setAddressSlot(stateDB, addr, poolSlot, pool); err != nil {
			return nil, remainingGas, err
		}
		return nil, remainingGas, emit(state, RouterABI, addr, "PoolSet", pool)
	case "setFeeBps":
		feeBps := args[0].(uint16)
		if uint64(feeBps) > BasisPoints {
			return nil, remainingGas, fmt.Errorf("%w: %d", ErrInvalidFeeBps, feeBps)
		}
		contract.SetUint64(stateDB, addr, feeBpsSlot, uint64(feeBps))
		return nil, remainingGas, emit(state, RouterABI, addr, "FeeBpsSet", feeBps)
	default: // setAdmin
		admin := args[0].(common.Address)
		if err := setAddressSlot(stateDB, addr, adminSlot, admin); err != nil {
			return nil, remainingGas, err
		}
		return nil, remainingGas, emit(state, RouterABI, addr, "AdminChanged", admin)
	}
}
