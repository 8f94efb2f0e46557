// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/endpoint"
	"github.com/luxfi/xswap/message"
	"github.com/luxfi/xswap/token"
)

// 10M supply, 100k of liquidity, a 1000 token swap at 50 bps.
func TestSwapScenario(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, tokens(10_000_000), token.TotalSupply(env.chain.StateDB(), testToken))

	env.addLiquidity(alice, tokens(100_000))
	custodyBefore := env.balanceOf(PoolAddress)
	feesBefore := env.fees()
	aliceBefore := env.balanceOf(alice)

	env.approve(alice, RouterAddress, tokens(1_000))
	receipt, err := env.swap(alice, bob, tokens(1_000), messagingFee())
	require.NoError(t, err)

	custodyDelta := new(uint256.Int).Sub(env.balanceOf(PoolAddress), custodyBefore)
	require.Equal(t, tokens(1_000), custodyDelta)
	feesDelta := new(uint256.Int).Sub(env.fees(), feesBefore)
	require.Equal(t, tokens(5), feesDelta)
	require.Equal(t, new(uint256.Int).Sub(aliceBefore, tokens(1_000)), env.balanceOf(alice))

	// Available liquidity grows by the net amount only.
	out := env.view(PoolAddress, PoolABI, "availableLiquidity")
	require.Equal(t, tokens(100_995).ToBig(), out[0].(*big.Int))

	initiated := findLog(t, receipt.Logs, RouterABI, "SwapInitiated")
	require.Equal(t, common.BytesToHash(alice.Bytes()), initiated.Topics[1])
	require.Equal(t, common.Hash(message.AddressToBytes32(bob)), initiated.Topics[2])
	fields, err := RouterABI.UnpackEvent("SwapInitiated", initiated)
	require.NoError(t, err)
	require.Equal(t, tokens(1_000).ToBig(), fields[0].(*big.Int))
	require.Equal(t, remoteEid, fields[1].(uint32))

	sent := findLog(t, receipt.Logs, RouterABI, "MessageSent")
	fields, err = RouterABI.UnpackEvent("MessageSent", sent)
	require.NoError(t, err)
	require.Equal(t, remoteEid, fields[0].(uint32))
	require.Equal(t, uint64(1), fields[1].(uint64))
	require.Equal(t, tokens(995).ToBig(), fields[2].(*big.Int))
	require.Equal(t, tokens(5).ToBig(), fields[3].(*big.Int))

	// The packet carries the net amount to the configured peer.
	var packet *endpoint.Packet
	for _, l := range receipt.Logs {
		if endpoint.IsPacketSent(l, endpoint.ContractAddress) {
			packet, err = endpoint.ParsePacketSent(l)
			require.NoError(t, err)
		}
	}
	require.NotNil(t, packet)
	require.Equal(t, RouterAddress, packet.Sender)
	require.Equal(t, localEid, packet.SrcEid)
	require.Equal(t, remoteEid, packet.DstEid)
	require.Equal(t, message.AddressToBytes32(ReceiverAddress), packet.Receiver)
	require.Equal(t, [32]byte(sent.Topics[1]), packet.GUID)

	msg, err := message.Decode(packet.Message)
	require.NoError(t, err)
	require.Equal(t, message.AddressToBytes32(bob), msg.Recipient)
	require.Equal(t, tokens(995), msg.Amount)
	require.Equal(t, uint64(1), msg.Nonce)
}

func TestSwapNonceIncrements(t *testing.T) {
	env := newTestEnv(t)
	env.approve(alice, RouterAddress, tokens(10))

	for want := uint64(1); want <= 3; want++ {
		receipt, err := env.swap(alice, bob, tokens(1), messagingFee())
		require.NoError(t, err)
		out, err := RouterABI.Unpack("swap", receipt.Return)
		require.NoError(t, err)
		require.Equal(t, want, out[1].(uint64))
	}
	require.Equal(t, uint64(3), OutboundNonce(env.chain.StateDB(), RouterAddress, remoteEid))
}

// dirtyRecipient is bob with a non-zero byte above the 20 address bytes.
func dirtyRecipient() [32]byte {
	b := message.AddressToBytes32(bob)
	b[0] = 0xff
	return b
}

func TestSwapPreflightFailures(t *testing.T) {
	tests := []struct {
		name      string
		recipient [32]byte
		dst       uint32
		amount    *uint256.Int
		value     *uint256.Int
		wantErr   error
	}{
		{
			name:      "zero amount",
			recipient: message.AddressToBytes32(bob),
			dst:       remoteEid,
			amount:    new(uint256.Int),
			value:     messagingFee(),
			wantErr:   ErrInvalidAmount,
		},
		{
			name:    "zero recipient",
			dst:     remoteEid,
			amount:  tokens(1),
			value:   messagingFee(),
			wantErr: ErrInvalidRecipient,
		},
		{
			name:      "recipient is not an address",
			recipient: dirtyRecipient(),
			dst:       remoteEid,
			amount:    tokens(1),
			value:     messagingFee(),
			wantErr:   ErrInvalidRecipient,
		},
		{
			name:      "peer not set",
			recipient: message.AddressToBytes32(bob),
			dst:       1234,
			amount:    tokens(1),
			value:     messagingFee(),
			wantErr:   ErrPeerNotSet,
		},
		{
			name:      "underpaid messaging fee",
			recipient: message.AddressToBytes32(bob),
			dst:       remoteEid,
			amount:    tokens(1),
			value:     new(uint256.Int).SubUint64(messagingFee(), 1),
			wantErr:   ErrInsufficientMessagingFee,
		},
		{
			name:      "no messaging fee",
			recipient: message.AddressToBytes32(bob),
			dst:       remoteEid,
			amount:    tokens(1),
			wantErr:   ErrInsufficientMessagingFee,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.approve(alice, RouterAddress, tokens(10))
			aliceTokens := env.balanceOf(alice)
			aliceCoins := env.chain.Balance(alice)

			_, err := env.call(alice, RouterAddress, RouterABI, test.value, "swap",
				test.dst, test.recipient, test.amount.ToBig(), []byte{})
			require.ErrorIs(t, err, test.wantErr)

			require.Equal(t, aliceTokens, env.balanceOf(alice))
			require.Equal(t, aliceCoins, env.chain.Balance(alice))
			require.True(t, env.balanceOf(PoolAddress).IsZero())
			require.True(t, env.fees().IsZero())
			require.Zero(t, OutboundNonce(env.chain.StateDB(), RouterAddress, test.dst))
		})
	}
}

func TestSwapWithoutAllowance(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.swap(alice, bob, tokens(1), messagingFee())
	require.ErrorIs(t, err, ErrTransferFailed)
	require.True(t, env.balanceOf(PoolAddress).IsZero())
	require.Zero(t, OutboundNonce(env.chain.StateDB(), RouterAddress, remoteEid))
}

func TestSwapWithoutPool(t *testing.T) {
	env := newTestEnv(t)
	env.chain.StateDB().SetState(RouterAddress, poolSlot, common.Hash{})
	env.approve(alice, RouterAddress, tokens(1))

	_, err := env.swap(alice, bob, tokens(1), messagingFee())
	require.ErrorIs(t, err, ErrPoolNotSet)
}

func TestSwapRefundsExcessMessagingFee(t *testing.T) {
	env := newTestEnv(t)
	env.approve(alice, RouterAddress, tokens(1))
	before := env.chain.Balance(alice)

	_, err := env.swap(alice, bob, tokens(1), oneEther)
	require.NoError(t, err)

	spent := new(uint256.Int).Sub(before, env.chain.Balance(alice))
	require.Equal(t, messagingFee(), spent)
	require.True(t, env.chain.Balance(RouterAddress).IsZero())
	require.Equal(t, messagingFee(), env.chain.Balance(endpoint.ContractAddress))
}

func TestSwapWithPermitThroughRelayer(t *testing.T) {
	env := newTestEnv(t)
	key := newKey(t)
	owner := token.AddressOf(key)
	env.transfer(alice, owner, tokens(1_000))
	env.addLiquidity(alice, tokens(100))

	amount := tokens(400)
	deadline := env.chain.Time() + 3600
	v, r, s := env.signPermit(key, amount, deadline)
	relayerCoins := env.chain.Balance(carol)

	args := []interface{}{
		remoteEid, message.AddressToBytes32(owner), amount.ToBig(), []byte{},
		owner, new(big.Int).SetUint64(deadline), v, r, s,
	}
	receipt := env.mustCall(carol, RouterAddress, RouterABI, messagingFee(), "swapWithPermit", args...)

	require.Equal(t, tokens(600), env.balanceOf(owner))
	require.True(t, env.balanceOf(carol).IsZero())
	require.Equal(t, tokens(500), env.balanceOf(PoolAddress))
	require.Equal(t, tokens(2), env.fees())
	require.True(t, env.chain.Balance(owner).IsZero())
	require.Equal(t, new(uint256.Int).Sub(relayerCoins, messagingFee()), env.chain.Balance(carol))
	require.Equal(t, uint256.NewInt(1), token.Nonce(env.chain.StateDB(), testToken, owner))

	initiated := findLog(t, receipt.Logs, RouterABI, "SwapInitiated")
	require.Equal(t, common.BytesToHash(owner.Bytes()), initiated.Topics[1])

	// Replaying the consumed signature fails and moves nothing.
	_, err := env.call(carol, RouterAddress, RouterABI, messagingFee(), "swapWithPermit", args...)
	require.ErrorIs(t, err, ErrInvalidPermit)
	require.ErrorIs(t, err, token.ErrInvalidSigner)
	require.Equal(t, tokens(600), env.balanceOf(owner))
	require.Equal(t, tokens(500), env.balanceOf(PoolAddress))
	require.Equal(t, uint256.NewInt(1), token.Nonce(env.chain.StateDB(), testToken, owner))
}

func TestSwapWithPermitAfterPermitSubmitted(t *testing.T) {
	env := newTestEnv(t)
	key := newKey(t)
	owner := token.AddressOf(key)
	env.transfer(alice, owner, tokens(100))

	amount := tokens(40)
	deadline := env.chain.Time() + 3600
	v, r, s := env.signPermit(key, amount, deadline)
	args := []interface{}{
		remoteEid, message.AddressToBytes32(owner), amount.ToBig(), []byte{},
		owner, new(big.Int).SetUint64(deadline), v, r, s,
	}

	// Someone lands the permit on the token first.
	env.mustCall(carol, testToken, token.ABI, nil, "permit",
		owner, RouterAddress, amount.ToBig(), new(big.Int).SetUint64(deadline), v, r, s)
	require.Equal(t, amount, token.Allowance(env.chain.StateDB(), testToken, owner, RouterAddress))

	env.mustCall(carol, RouterAddress, RouterABI, messagingFee(), "swapWithPermit", args...)
	require.Equal(t, tokens(60), env.balanceOf(owner))
	require.Equal(t, amount, env.balanceOf(PoolAddress))
	require.Equal(t, uint256.NewInt(1), token.Nonce(env.chain.StateDB(), testToken, owner))

	// The allowance is spent, so the same signature cannot pull again.
	_, err := env.call(carol, RouterAddress, RouterABI, messagingFee(), "swapWithPermit", args...)
	require.ErrorIs(t, err, ErrInvalidPermit)
	require.Equal(t, tokens(60), env.balanceOf(owner))
}

func TestSwapWithPermitRejections(t *testing.T) {
	env := newTestEnv(t)
	key := newKey(t)
	owner := token.AddressOf(key)
	env.transfer(alice, owner, tokens(10))
	env.chain.AdvanceTime(1_000)

	amount := tokens(5)
	deadline := env.chain.Time() + 3600
	v, r, s := env.signPermit(key, amount, deadline)

	swapWithPermit := func(recipient [32]byte, value *uint256.Int, owner common.Address, deadline uint64) error {
		_, err := env.call(carol, RouterAddress, RouterABI, messagingFee(), "swapWithPermit",
			remoteEid, recipient, value.ToBig(), []byte{}, owner, new(big.Int).SetUint64(deadline), v, r, s)
		return err
	}

	t.Run("foreign recipient", func(t *testing.T) {
		err := swapWithPermit(message.AddressToBytes32(carol), amount, owner, deadline)
		require.ErrorIs(t, err, ErrInvalidPermit)
	})
	t.Run("expired deadline", func(t *testing.T) {
		err := swapWithPermit(message.AddressToBytes32(owner), amount, owner, env.chain.Time()-1)
		require.ErrorIs(t, err, ErrInvalidPermit)
	})
	t.Run("zero owner", func(t *testing.T) {
		err := swapWithPermit(message.AddressToBytes32(owner), amount, common.Address{}, deadline)
		require.ErrorIs(t, err, ErrInvalidPermit)
	})
	t.Run("value differs from signed", func(t *testing.T) {
		err := swapWithPermit(message.AddressToBytes32(owner), tokens(6), owner, deadline)
		require.ErrorIs(t, err, ErrInvalidPermit)
	})
	t.Run("deadline differs from signed", func(t *testing.T) {
		err := swapWithPermit(message.AddressToBytes32(owner), amount, owner, deadline+1)
		require.ErrorIs(t, err, ErrInvalidPermit)
	})
	t.Run("recipient is not an address", func(t *testing.T) {
		err := swapWithPermit(dirtyRecipient(), amount, owner, deadline)
		require.ErrorIs(t, err, ErrInvalidRecipient)
	})

	require.True(t, token.Nonce(env.chain.StateDB(), testToken, owner).IsZero())
	require.Equal(t, tokens(10), env.balanceOf(owner))
	require.True(t, env.balanceOf(PoolAddress).IsZero())
}

func TestEstimateFee(t *testing.T) {
	env := newTestEnv(t)

	out := env.view(RouterAddress, RouterABI, "estimateFee", remoteEid, tokens(1).ToBig(), []byte{})
	require.Zero(t, endpoint.DefaultBaseFee.Cmp(out[0].(*big.Int)))
	require.Zero(t, out[1].(*big.Int).Sign())

	env.mustCall(testAdmin, endpoint.ContractAddress, endpoint.ABI, nil, "setFeeParams", big.NewInt(100), big.NewInt(3))
	options := endpoint.EncodeOptions(&endpoint.Options{
		GasLimit:   50_000,
		NativeDrop: uint256.NewInt(7),
		DropTo:     bob,
	})
	out = env.view(RouterAddress, RouterABI, "estimateFee", remoteEid, tokens(1).ToBig(), options)
	require.Equal(t, big.NewInt(100+50_000*3+7), out[0].(*big.Int))

	require.Zero(t, OutboundNonce(env.chain.StateDB(), RouterAddress, remoteEid))

	input, err := RouterABI.Pack("estimateFee", localEid, tokens(1).ToBig(), []byte{})
	require.NoError(t, err)
	_, err = env.chain.View(alice, RouterAddress, input)
	require.ErrorIs(t, err, ErrMessagingFailed)
	require.ErrorIs(t, err, endpoint.ErrUnknownDestination)
}

func TestQuoteSwapAndFeeBps(t *testing.T) {
	env := newTestEnv(t)

	out := env.view(RouterAddress, RouterABI, "quoteSwap", tokens(1_000).ToBig())
	require.Equal(t, tokens(5).ToBig(), out[0].(*big.Int))
	require.Equal(t, tokens(995).ToBig(), out[1].(*big.Int))

	_, err := env.call(bob, RouterAddress, RouterABI, nil, "setFeeBps", uint16(10))
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.call(testAdmin, RouterAddress, RouterABI, nil, "setFeeBps", uint16(10_001))
	require.ErrorIs(t, err, ErrInvalidFeeBps)

	env.mustCall(testAdmin, RouterAddress, RouterABI, nil, "setFeeBps", uint16(0))
	require.Zero(t, FeeBps(env.chain.StateDB(), RouterAddress))

	env.approve(alice, RouterAddress, tokens(1_000))
	_, err = env.swap(alice, bob, tokens(1_000), messagingFee())
	require.NoError(t, err)
	require.True(t, env.fees().IsZero())
	require.Equal(t, tokens(1_000), env.balanceOf(PoolAddress))

	// Nothing would be left to send.
	env.mustCall(testAdmin, RouterAddress, RouterABI, nil, "setFeeBps", uint16(10_000))
	env.approve(alice, RouterAddress, tokens(1))
	_, err = env.swap(alice, bob, tokens(1), messagingFee())
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRouterSetPeer(t *testing.T) {
	env := newTestEnv(t)
	peer := message.AddressToBytes32(carol)

	_, err := env.call(bob, RouterAddress, RouterABI, nil, "setPeer", uint32(7), peer)
	require.ErrorIs(t, err, ErrUnauthorized)

	receipt := env.mustCall(testAdmin, RouterAddress, RouterABI, nil, "setPeer", uint32(7), peer)
	log := findLog(t, receipt.Logs, RouterABI, "PeerSet")
	require.Equal(t, common.BigToHash(big.NewInt(7)), log.Topics[1])

	out := env.view(RouterAddress, RouterABI, "peers", uint32(7))
	require.Equal(t, peer, out[0].([32]byte))

	// A second write replaces the entry.
	other := message.AddressToBytes32(bob)
	env.mustCall(testAdmin, RouterAddress, RouterABI, nil, "setPeer", uint32(7), other)
	require.Equal(t, other, Peer(env.chain.StateDB(), RouterAddress, 7))
}

func TestRouterAdmin(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.call(testAdmin, RouterAddress, RouterABI, nil, "setPool", common.Address{})
	require.ErrorIs(t, err, ErrInvalidAddress)

	env.mustCall(testAdmin, RouterAddress, RouterABI, nil, "setAdmin", bob)
	_, err = env.call(testAdmin, RouterAddress, RouterABI, nil, "setPool", carol)
	require.ErrorIs(t, err, ErrUnauthorized)
	env.mustCall(bob, RouterAddress, RouterABI, nil, "setPool", carol)

	out := env.view(RouterAddress, RouterABI, "pool")
	require.Equal(t, carol, out[0])
	out = env.view(RouterAddress, RouterABI, "endpoint")
	require.Equal(t, endpoint.ContractAddress, out[0])
	out = env.view(RouterAddress, RouterABI, "feeBps")
	require.Equal(t, DefaultFeeBps, out[0].(uint16))
}

func TestRouterWriteProtection(t *testing.T) {
	env := newTestEnv(t)
	input, err := RouterABI.Pack("swap", remoteEid, message.AddressToBytes32(bob), big.NewInt(1), []byte{})
	require.NoError(t, err)
	_, err = env.chain.View(alice, RouterAddress, input)
	require.ErrorIs(t, err, contract.ErrWriteProtection)
}
