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
	"github.com/luxfi/xswap/token"
)

func TestDepositLiquidity(t *testing.T) {
	env := newTestEnv(t)
	env.addLiquidity(alice, tokens(100_000))

	require.Equal(t, tokens(100_000), env.balanceOf(PoolAddress))
	require.Equal(t, tokens(100_000), LiquidityOf(env.chain.StateDB(), PoolAddress, alice))

	out := env.view(PoolAddress, PoolABI, "totalLiquidity")
	require.Equal(t, tokens(100_000).ToBig(), out[0].(*big.Int))
}

func TestDepositLiquidityWithoutApproval(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.call(alice, PoolAddress, PoolABI, nil, "depositLiquidity", tokens(1).ToBig())
	require.ErrorIs(t, err, ErrTransferFailed)
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)
	require.True(t, env.balanceOf(PoolAddress).IsZero())
}

func TestDepositLiquidityZero(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.call(alice, PoolAddress, PoolABI, nil, "depositLiquidity", new(big.Int))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestReleaseOnlyByReceiverOrRouter(t *testing.T) {
	env := newTestEnv(t)
	env.addLiquidity(alice, tokens(1_000))

	for _, caller := range []struct {
		name string
		from common.Address
	}{
		{"stranger", bob},
		{"admin", testAdmin},
		{"endpoint", testExecutor},
	} {
		t.Run(caller.name, func(t *testing.T) {
			_, err := env.call(caller.from, PoolAddress, PoolABI, nil, "release", bob, tokens(1).ToBig())
			require.ErrorIs(t, err, ErrUnauthorized)
			require.Equal(t, tokens(1_000), env.balanceOf(PoolAddress))
			require.True(t, env.balanceOf(bob).IsZero())
		})
	}

	env.mustCall(ReceiverAddress, PoolAddress, PoolABI, nil, "release", bob, tokens(1).ToBig())
	env.mustCall(RouterAddress, PoolAddress, PoolABI, nil, "release", bob, tokens(1).ToBig())
	require.Equal(t, tokens(2), env.balanceOf(bob))
}

func TestReleaseNeverSpendsFees(t *testing.T) {
	env := newTestEnv(t)
	env.addLiquidity(alice, tokens(100_000))
	env.approve(alice, RouterAddress, tokens(1_000))
	_, err := env.swap(alice, bob, tokens(1_000), messagingFee())
	require.NoError(t, err)

	custody := env.balanceOf(PoolAddress)
	available := Available(custody, env.fees())
	require.Equal(t, tokens(100_995), available)

	over := new(uint256.Int).AddUint64(available, 1)
	_, err = env.call(ReceiverAddress, PoolAddress, PoolABI, nil, "release", carol, over.ToBig())
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	require.Equal(t, custody, env.balanceOf(PoolAddress))

	env.mustCall(ReceiverAddress, PoolAddress, PoolABI, nil, "release", carol, available.ToBig())
	require.Equal(t, available, env.balanceOf(carol))
	require.Equal(t, env.fees(), env.balanceOf(PoolAddress))

	out := env.view(PoolAddress, PoolABI, "availableLiquidity")
	require.Zero(t, out[0].(*big.Int).Sign())
}

func TestReleaseRejectsBadArguments(t *testing.T) {
	env := newTestEnv(t)
	env.addLiquidity(alice, tokens(10))

	_, err := env.call(ReceiverAddress, PoolAddress, PoolABI, nil, "release", common.Address{}, tokens(1).ToBig())
	require.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = env.call(ReceiverAddress, PoolAddress, PoolABI, nil, "release", bob, new(big.Int))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDepositFee(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.call(bob, PoolAddress, PoolABI, nil, "depositFee", big.NewInt(1))
	require.ErrorIs(t, err, ErrUnauthorized)

	// Nothing in custody backs the fee.
	_, err = env.call(RouterAddress, PoolAddress, PoolABI, nil, "depositFee", big.NewInt(1))
	require.ErrorIs(t, err, ErrUnbackedFee)
	require.True(t, env.fees().IsZero())

	env.transfer(alice, PoolAddress, tokens(3))
	env.mustCall(RouterAddress, PoolAddress, PoolABI, nil, "depositFee", tokens(3).ToBig())
	require.Equal(t, tokens(3), env.fees())
}

func TestWithdrawFees(t *testing.T) {
	env := newTestEnv(t)
	env.addLiquidity(alice, tokens(100_000))
	env.approve(alice, RouterAddress, tokens(1_000))
	_, err := env.swap(alice, bob, tokens(1_000), messagingFee())
	require.NoError(t, err)
	require.Equal(t, tokens(5), env.fees())

	_, err = env.call(bob, PoolAddress, PoolABI, nil, "withdrawFees", bob, tokens(1).ToBig())
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.call(testAdmin, PoolAddress, PoolABI, nil, "withdrawFees", carol, tokens(6).ToBig())
	require.ErrorIs(t, err, ErrInsufficientFees)

	env.mustCall(testAdmin, PoolAddress, PoolABI, nil, "withdrawFees", carol, tokens(5).ToBig())
	require.Equal(t, tokens(5), env.balanceOf(carol))
	require.True(t, env.fees().IsZero())
	require.Equal(t, tokens(100_995), env.balanceOf(PoolAddress))
}

func TestWithdrawLiquidity(t *testing.T) {
	env := newTestEnv(t)
	env.transfer(alice, bob, tokens(50))
	env.addLiquidity(alice, tokens(100))
	env.addLiquidity(bob, tokens(50))

	_, err := env.call(bob, PoolAddress, PoolABI, nil, "withdrawLiquidity", tokens(51).ToBig())
	require.ErrorIs(t, err, ErrInsufficientShares)

	_, err = env.call(carol, PoolAddress, PoolABI, nil, "withdrawLiquidity", tokens(1).ToBig())
	require.ErrorIs(t, err, ErrInsufficientShares)

	env.mustCall(bob, PoolAddress, PoolABI, nil, "withdrawLiquidity", tokens(50).ToBig())
	require.Equal(t, tokens(50), env.balanceOf(bob))
	require.True(t, LiquidityOf(env.chain.StateDB(), PoolAddress, bob).IsZero())
	require.Equal(t, tokens(100), env.balanceOf(PoolAddress))
}

func TestWithdrawLiquidityCappedByAvailable(t *testing.T) {
	env := newTestEnv(t)
	env.addLiquidity(alice, tokens(100))

	// Pay out most of the pool, as a delivered swap would.
	env.mustCall(ReceiverAddress, PoolAddress, PoolABI, nil, "release", carol, tokens(90).ToBig())

	_, err := env.call(alice, PoolAddress, PoolABI, nil, "withdrawLiquidity", tokens(11).ToBig())
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	env.mustCall(alice, PoolAddress, PoolABI, nil, "withdrawLiquidity", tokens(10).ToBig())
	require.True(t, env.balanceOf(PoolAddress).IsZero())
}

func TestExecuteAllowList(t *testing.T) {
	env := newTestEnv(t)
	approve, err := token.ABI.Pack("approve", bob, big.NewInt(10))
	require.NoError(t, err)

	_, err = env.call(testAdmin, PoolAddress, PoolABI, nil, "execute", testToken, approve)
	require.ErrorIs(t, err, ErrTargetNotAllowed)

	_, err = env.call(bob, PoolAddress, PoolABI, nil, "setExecuteTarget", testToken, true)
	require.ErrorIs(t, err, ErrUnauthorized)

	env.mustCall(testAdmin, PoolAddress, PoolABI, nil, "setExecuteTarget", testToken, true)
	out := env.view(PoolAddress, PoolABI, "isExecuteTarget", testToken)
	require.True(t, out[0].(bool))

	_, err = env.call(bob, PoolAddress, PoolABI, nil, "execute", testToken, approve)
	require.ErrorIs(t, err, ErrUnauthorized)

	env.mustCall(testAdmin, PoolAddress, PoolABI, nil, "execute", testToken, approve)
	require.Equal(t, uint256.NewInt(10), token.Allowance(env.chain.StateDB(), testToken, PoolAddress, bob))

	_, err = env.call(testAdmin, PoolAddress, PoolABI, nil, "execute", PoolAddress, []byte{0x01})
	require.ErrorIs(t, err, ErrTargetNotAllowed)
}

func TestExecuteWrapsCalleeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mustCall(testAdmin, PoolAddress, PoolABI, nil, "setExecuteTarget", testToken, true)

	transfer, err := token.ABI.Pack("transfer", bob, big.NewInt(1))
	require.NoError(t, err)
	_, err = env.call(testAdmin, PoolAddress, PoolABI, nil, "execute", testToken, transfer)
	require.ErrorIs(t, err, ErrExecuteFailed)
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
}

func TestPoolAdminSetters(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.call(bob, PoolAddress, PoolABI, nil, "setReceiver", bob)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.call(testAdmin, PoolAddress, PoolABI, nil, "setReceiver", common.Address{})
	require.ErrorIs(t, err, ErrInvalidAddress)

	receipt := env.mustCall(testAdmin, PoolAddress, PoolABI, nil, "setReceiver", carol)
	findLog(t, receipt.Logs, PoolABI, "ReceiverSet")
	out := env.view(PoolAddress, PoolABI, "receiver")
	require.Equal(t, carol, out[0])

	env.mustCall(testAdmin, PoolAddress, PoolABI, nil, "setAdmin", bob)
	_, err = env.call(testAdmin, PoolAddress, PoolABI, nil, "setRouter", bob)
	require.ErrorIs(t, err, ErrUnauthorized)
	env.mustCall(bob, PoolAddress, PoolABI, nil, "setRouter", carol)
	require.Equal(t, bob, Admin(env.chain.StateDB(), PoolAddress))
	out = env.view(PoolAddress, PoolABI, "router")
	require.Equal(t, carol, out[0])
}

func TestPoolWriteProtection(t *testing.T) {
	env := newTestEnv(t)
	input, err := PoolABI.Pack("depositLiquidity", big.NewInt(1))
	require.NoError(t, err)
	_, err = env.chain.View(alice, PoolAddress, input)
	require.ErrorIs(t, err, contract.ErrWriteProtection)
}
