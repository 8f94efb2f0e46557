// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/host"
	"github.com/luxfi/xswap/message"
	"github.com/luxfi/xswap/swap"
	"github.com/luxfi/xswap/token"
)

// Sent identifies an outbound swap.
type Sent struct {
	GUID  [32]byte
	Nonce uint64
	Fee   *uint256.Int
}

// Wire links the swap contracts of [d] to each other and to the peer
// deployment on [remoteEid]. Every step is an admin transaction.
func Wire(d *Deployment, remoteEid uint32) error {
	steps := []struct {
		to     common.Address
		abi    contract.ExtendedABI
		method string
		args   []interface{}
	}{
		{swap.PoolAddress, swap.PoolABI, "setReceiver", []interface{}{swap.ReceiverAddress}},
		{swap.PoolAddress, swap.PoolABI, "setRouter", []interface{}{swap.RouterAddress}},
		{swap.RouterAddress, swap.RouterABI, "setPool", []interface{}{swap.PoolAddress}},
		{swap.ReceiverAddress, swap.ReceiverABI, "setPool", []interface{}{swap.PoolAddress}},
		{swap.RouterAddress, swap.RouterABI, "setPeer", []interface{}{remoteEid, message.AddressToBytes32(swap.ReceiverAddress)}},
		{swap.ReceiverAddress, swap.ReceiverABI, "setPeer", []interface{}{remoteEid, message.AddressToBytes32(swap.RouterAddress)}},
	}
	for _, step := range steps {
		if _, err := d.Call(d.Settings.Admin, step.to, step.abi, nil, step.method, step.args...); err != nil {
			return fmt.Errorf("wire %s on %s: %w", step.method, d.Settings.Name, err)
		}
	}
	return nil
}

// Call packs and executes a transaction.
func (d *Deployment) Call(
	from, to common.Address,
	a contract.ExtendedABI,
	value *uint256.Int,
	method string,
	args ...interface{},
) (*host.Receipt, error) {
	input, err := a.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	return d.Execute(from, to, input, value)
}

// Read runs a view call and unpacks its outputs.
func (d *Deployment) Read(to common.Address, a contract.ExtendedABI, method string, args ...interface{}) ([]interface{}, error) {
	input, err := a.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	ret, err := d.View(d.Settings.Admin, to, input)
	if err != nil {
		return nil, err
	}
	return a.Unpack(method, ret)
}

func (d *Deployment) TokenBalance(addr common.Address) *uint256.Int {
	return token.BalanceOf(d.StateDB(), d.Token, addr)
}

// Available is the pool's releasable liquidity.
func (d *Deployment) Available() (*uint256.Int, error) {
	out, err := d.Read(swap.PoolAddress, swap.PoolABI, "availableLiquidity")
	if err != nil {
		return nil, err
	}
	return uint256.MustFromBig(out[0].(*big.Int)), nil
}

func (d *Deployment) Fees() *uint256.Int {
	return swap.AccumulatedFees(d.StateDB(), swap.PoolAddress)
}

// AddLiquidity approves the pool and deposits [amount] from [provider].
func (d *Deployment) AddLiquidity(provider common.Address, amount *uint256.Int) error {
	if _, err := d.Call(provider, d.Token, token.ABI, nil, "approve", swap.PoolAddress, amount.ToBig()); err != nil {
		return err
	}
	_, err := d.Call(provider, swap.PoolAddress, swap.PoolABI, nil, "depositLiquidity", amount.ToBig())
	return err
}

// EstimateFee quotes the messaging fee of a swap to [dstEid].
func (d *Deployment) EstimateFee(dstEid uint32, amount *uint256.Int, options []byte) (*uint256.Int, error) {
	out, err := d.Read(swap.RouterAddress, swap.RouterABI, "estimateFee", dstEid, amount.ToBig(), options)
	if err != nil {
		return nil, err
	}
	return uint256.MustFromBig(out[0].(*big.Int)), nil
}

// Swap approves the router and sends [amount] from [from] to [recipient]
// on [dstEid], paying exactly the quoted messaging fee.
func (d *Deployment) Swap(
	from common.Address,
	dstEid uint32,
	recipient common.Address,
	amount *uint256.Int,
	options []byte,
) (*Sent, error) {
	fee, err := d.EstimateFee(dstEid, amount, options)
	if err != nil {
		return nil, err
	}
	if _, err := d.Call(from, d.Token, token.ABI, nil, "approve", swap.RouterAddress, amount.ToBig()); err != nil {
		return nil, err
	}
	receipt, err := d.Call(from, swap.RouterAddress, swap.RouterABI, fee, "swap",
		dstEid, message.AddressToBytes32(recipient), amount.ToBig(), options)
	if err != nil {
		return nil, err
	}
	return sent(receipt, "swap", fee)
}

// SwapWithPermit has [submitter] pay the messaging fee for a swap signed
// off-chain by [owner]. The tokens arrive at the owner's address on
// [dstEid].
func (d *Deployment) SwapWithPermit(
	submitter common.Address,
	owner *ecdsa.PrivateKey,
	dstEid uint32,
	amount *uint256.Int,
	deadline uint64,
) (*Sent, error) {
	ownerAddr := token.AddressOf(owner)
	fee, err := d.EstimateFee(dstEid, amount, nil)
	if err != nil {
		return nil, err
	}
	domain := token.DomainSeparator(d.Settings.Token.Name, d.ChainID(), d.Token)
	v, r, s, err := token.SignPermit(owner, domain, &token.Permit{
		Owner:    ownerAddr,
		Spender:  swap.RouterAddress,
		Value:    amount.ToBig(),
		Nonce:    token.Nonce(d.StateDB(), d.Token, ownerAddr).ToBig(),
		Deadline: new(big.Int).SetUint64(deadline),
	})
	if err != nil {
		return nil, err
	}
	receipt, err := d.Call(submitter, swap.RouterAddress, swap.RouterABI, fee, "swapWithPermit",
		dstEid, message.AddressToBytes32(ownerAddr), amount.ToBig(), []byte{},
		ownerAddr, new(big.Int).SetUint64(deadline), v, r, s)
	if err != nil {
		return nil, err
	}
	return sent(receipt, "swapWithPermit", fee)
}

func sent(receipt *host.Receipt, method string, fee *uint256.Int) (*Sent, error) {
	out, err := swap.RouterABI.Unpack(method, receipt.Return)
	if err != nil {
		return nil, err
	}
	return &Sent{GUID: out[0].([32]byte), Nonce: out[1].(uint64), Fee: fee}, nil
}

// Pair is two deployments wired as each other's peers.
type Pair struct {
	A *Deployment
	B *Deployment
}

func NewPair(a, b *Config, logger log.Logger) (*Pair, error) {
	if a.Eid == b.Eid {
		return nil, fmt.Errorf("%w: %d", ErrSameEid, a.Eid)
	}
	da, err := Deploy(a, logger)
	if err != nil {
		return nil, err
	}
	db, err := Deploy(b, logger)
	if err != nil {
		return nil, err
	}
	if err := Wire(da, b.Eid); err != nil {
		return nil, err
	}
	if err := Wire(db, a.Eid); err != nil {
		return nil, err
	}
	return &Pair{A: da, B: db}, nil
}
