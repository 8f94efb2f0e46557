// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/endpoint"
	"github.com/luxfi/xswap/host"
	"github.com/luxfi/xswap/message"
	"github.com/luxfi/xswap/token"
)

const (
	testChainID          = 97
	testTokenName        = "Swap Token"
	localEid      uint32 = 40102
	remoteEid     uint32 = 40161
)

var (
	testToken    = common.HexToAddress("0x0000000000000000000000000000000000a11ce0")
	testAdmin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	testExecutor = common.HexToAddress("0x00000000000000000000000000000000000000e0")

	alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")

	oneEther = uint256.NewInt(1_000_000_000_000_000_000)
)

func tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), oneEther)
}

func messagingFee() *uint256.Int {
	return uint256.MustFromBig(endpoint.DefaultBaseFee)
}

type testEnv struct {
	t     *testing.T
	chain *host.Chain
}

// newTestEnv wires a token, the endpoint and the three swap contracts on one
// chain. The router's peer is the receiver address on remoteEid and the
// receiver trusts the router address on remoteEid.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	chain := host.New(testChainID)
	require.NoError(t, chain.Deploy(testToken, token.New(testTokenName, "SWP", 18)))
	require.NoError(t, chain.ApplyGenesis(func(state contract.StateDB) error {
		if err := token.Initialize(state, testToken, testAdmin); err != nil {
			return err
		}
		return token.Mint(state, testToken, alice, tokens(10_000_000))
	}))

	require.NoError(t, chain.Activate(&endpoint.Config{
		Eid:      localEid,
		Admin:    testAdmin,
		Executor: testExecutor,
	}))
	require.NoError(t, chain.Activate(&PoolConfig{
		Admin:    testAdmin,
		Token:    testToken,
		Receiver: ReceiverAddress,
		Router:   RouterAddress,
	}))
	require.NoError(t, chain.Activate(&RouterConfig{
		Admin: testAdmin,
		Token: testToken,
		Pool:  PoolAddress,
		Peers: map[uint32]common.Hash{remoteEid: common.Hash(message.AddressToBytes32(ReceiverAddress))},
	}))
	require.NoError(t, chain.Activate(&ReceiverConfig{
		Admin: testAdmin,
		Pool:  PoolAddress,
		Peers: map[uint32]common.Hash{remoteEid: common.Hash(message.AddressToBytes32(RouterAddress))},
	}))

	for _, addr := range []common.Address{alice, bob, carol} {
		chain.Fund(addr, oneEther)
	}
	return &testEnv{t: t, chain: chain}
}

func (e *testEnv) call(
	from, to common.Address,
	a contract.ExtendedABI,
	value *uint256.Int,
	method string,
	args ...interface{},
) (*host.Receipt, error) {
	e.t.Helper()
	input, err := a.Pack(method, args...)
	require.NoError(e.t, err)
	return e.chain.Execute(from, to, input, value)
}

func (e *testEnv) mustCall(
	from, to common.Address,
	a contract.ExtendedABI,
	value *uint256.Int,
	method string,
	args ...interface{},
) *host.Receipt {
	e.t.Helper()
	receipt, err := e.call(from, to, a, value, method, args...)
	require.NoError(e.t, err)
	return receipt
}

func (e *testEnv) view(to common.Address, a contract.ExtendedABI, method string, args ...interface{}) []interface{} {
	e.t.Helper()
	input, err := a.Pack(method, args...)
	require.NoError(e.t, err)
	ret, err := e.chain.View(alice, to, input)
	require.NoError(e.t, err)
	out, err := a.Unpack(method, ret)
	require.NoError(e.t, err)
	return out
}

func (e *testEnv) balanceOf(addr common.Address) *uint256.Int {
	return token.BalanceOf(e.chain.StateDB(), testToken, addr)
}

func (e *testEnv) fees() *uint256.Int {
	return AccumulatedFees(e.chain.StateDB(), PoolAddress)
}

func (e *testEnv) transfer(from, to common.Address, amount *uint256.Int) {
	e.t.Helper()
	e.mustCall(from, testToken, token.ABI, nil, "transfer", to, amount.ToBig())
}

func (e *testEnv) approve(owner, spender common.Address, amount *uint256.Int) {
	e.t.Helper()
	e.mustCall(owner, testToken, token.ABI, nil, "approve", spender, amount.ToBig())
}

func (e *testEnv) addLiquidity(provider common.Address, amount *uint256.Int) {
	e.t.Helper()
	e.approve(provider, PoolAddress, amount)
	e.mustCall(provider, PoolAddress, PoolABI, nil, "depositLiquidity", amount.ToBig())
}

func (e *testEnv) swap(from common.Address, recipient common.Address, amount *uint256.Int, value *uint256.Int) (*host.Receipt, error) {
	e.t.Helper()
	return e.call(from, RouterAddress, RouterABI, value, "swap",
		remoteEid, message.AddressToBytes32(recipient), amount.ToBig(), []byte{})
}

func (e *testEnv) signPermit(key *ecdsa.PrivateKey, value *uint256.Int, deadline uint64) (uint8, [32]byte, [32]byte) {
	e.t.Helper()
	owner := token.AddressOf(key)
	domain := token.DomainSeparator(testTokenName, e.chain.ChainID(), testToken)
	v, r, s, err := token.SignPermit(key, domain, &token.Permit{
		Owner:    owner,
		Spender:  RouterAddress,
		Value:    value.ToBig(),
		Nonce:    token.Nonce(e.chain.StateDB(), testToken, owner).ToBig(),
		Deadline: new(big.Int).SetUint64(deadline),
	})
	require.NoError(e.t, err)
	return v, r, s
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return key
}

// findLog returns the first log in [logs] that is event [name] of [a].
func findLog(t *testing.T, logs []*types.Log, a contract.ExtendedABI, name string) *types.Log {
	t.Helper()
	id := a.Events[name].ID
	for _, l := range logs {
		if len(l.Topics) > 0 && l.Topics[0] == id {
			return l
		}
	}
	t.Fatalf("no %s event in %d logs", name, len(logs))
	return nil
}
