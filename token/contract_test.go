// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/host"
)

var (
	tokenAddr = common.HexToAddress("0x0000000000000000000000000000000000a11ce0")
	admin     = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice     = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newChain(t *testing.T) *host.Chain {
	t.Helper()
	chain := host.New(97)
	require.NoError(t, chain.Deploy(tokenAddr, New("Swap Token", "SWP", 18)))
	require.NoError(t, chain.ApplyGenesis(func(state contract.StateDB) error {
		if err := Initialize(state, tokenAddr, admin); err != nil {
			return err
		}
		return Mint(state, tokenAddr, alice, uint256.NewInt(1_000))
	}))
	return chain
}

func execute(t *testing.T, chain *host.Chain, from common.Address, method string, args ...interface{}) (*host.Receipt, error) {
	t.Helper()
	input, err := ABI.Pack(method, args...)
	require.NoError(t, err)
	return chain.Execute(from, tokenAddr, input, nil)
}

func viewToken(t *testing.T, chain *host.Chain, method string, args ...interface{}) []interface{} {
	t.Helper()
	input, err := ABI.Pack(method, args...)
	require.NoError(t, err)
	ret, err := chain.View(alice, tokenAddr, input)
	require.NoError(t, err)
	out, err := ABI.Unpack(method, ret)
	require.NoError(t, err)
	return out
}

func TestMetadata(t *testing.T) {
	chain := newChain(t)
	require.Equal(t, "Swap Token", viewToken(t, chain, "name")[0])
	require.Equal(t, "SWP", viewToken(t, chain, "symbol")[0])
	require.Equal(t, uint8(18), viewToken(t, chain, "decimals")[0])
	require.Equal(t, big.NewInt(1_000), viewToken(t, chain, "totalSupply")[0])
	require.Equal(t, admin, viewToken(t, chain, "admin")[0])
}

func TestTransfer(t *testing.T) {
	chain := newChain(t)

	receipt, err := execute(t, chain, alice, "transfer", bob, big.NewInt(400))
	require.NoError(t, err)
	require.Len(t, receipt.Logs, 1)
	require.Equal(t, ABI.Events["Transfer"].ID, receipt.Logs[0].Topics[0])

	require.Equal(t, uint256.NewInt(600), BalanceOf(chain.StateDB(), tokenAddr, alice))
	require.Equal(t, uint256.NewInt(400), BalanceOf(chain.StateDB(), tokenAddr, bob))

	_, err = execute(t, chain, bob, "transfer", alice, big.NewInt(401))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, uint256.NewInt(400), BalanceOf(chain.StateDB(), tokenAddr, bob))

	_, err = execute(t, chain, bob, "transfer", common.Address{}, big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestTransferFrom(t *testing.T) {
	chain := newChain(t)

	_, err := execute(t, chain, bob, "transferFrom", alice, bob, big.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	_, err = execute(t, chain, alice, "approve", bob, big.NewInt(300))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300), viewToken(t, chain, "allowance", alice, bob)[0])

	_, err = execute(t, chain, bob, "transferFrom", alice, bob, big.NewInt(200))
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(100), Allowance(chain.StateDB(), tokenAddr, alice, bob))
	require.Equal(t, uint256.NewInt(200), BalanceOf(chain.StateDB(), tokenAddr, bob))

	_, err = execute(t, chain, bob, "transferFrom", alice, bob, big.NewInt(101))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestInfiniteAllowance(t *testing.T) {
	chain := newChain(t)
	infinite := new(uint256.Int).SetAllOne()

	_, err := execute(t, chain, alice, "approve", bob, infinite.ToBig())
	require.NoError(t, err)
	_, err = execute(t, chain, bob, "transferFrom", alice, bob, big.NewInt(500))
	require.NoError(t, err)
	require.Equal(t, infinite, Allowance(chain.StateDB(), tokenAddr, alice, bob))
}

func TestMint(t *testing.T) {
	chain := newChain(t)

	_, err := execute(t, chain, alice, "mint", alice, big.NewInt(1))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = execute(t, chain, admin, "mint", bob, big.NewInt(5))
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1_005), TotalSupply(chain.StateDB(), tokenAddr))
	require.Equal(t, uint256.NewInt(5), BalanceOf(chain.StateDB(), tokenAddr, bob))
}

func TestPermit(t *testing.T) {
	chain := newChain(t)
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	owner := AddressOf(key)

	domain := DomainSeparator("Swap Token", chain.ChainID(), tokenAddr)
	require.Equal(t, [32]byte(domain), viewToken(t, chain, "DOMAIN_SEPARATOR")[0])

	deadline := big.NewInt(int64(chain.Time() + 600))
	permit := &Permit{
		Owner:    owner,
		Spender:  bob,
		Value:    big.NewInt(250),
		Nonce:    new(big.Int),
		Deadline: deadline,
	}
	v, r, s, err := SignPermit(key, domain, permit)
	require.NoError(t, err)

	// Anyone may submit the signed permit.
	_, err = execute(t, chain, alice, "permit", owner, bob, big.NewInt(250), deadline, v, r, s)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(250), Allowance(chain.StateDB(), tokenAddr, owner, bob))
	require.Equal(t, uint256.NewInt(1), Nonce(chain.StateDB(), tokenAddr, owner))

	_, err = execute(t, chain, alice, "permit", owner, bob, big.NewInt(250), deadline, v, r, s)
	require.ErrorIs(t, err, ErrInvalidSigner)
	require.Equal(t, uint256.NewInt(1), Nonce(chain.StateDB(), tokenAddr, owner))
}

func TestPermitRejections(t *testing.T) {
	chain := newChain(t)
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	owner := AddressOf(key)
	domain := DomainSeparator("Swap Token", chain.ChainID(), tokenAddr)

	chain.AdvanceTime(100)
	deadline := big.NewInt(int64(chain.Time() + 600))
	v, r, s, err := SignPermit(key, domain, &Permit{
		Owner:    owner,
		Spender:  bob,
		Value:    big.NewInt(10),
		Nonce:    new(big.Int),
		Deadline: deadline,
	})
	require.NoError(t, err)

	_, err = execute(t, chain, alice, "permit", owner, bob, big.NewInt(11), deadline, v, r, s)
	require.ErrorIs(t, err, ErrInvalidSigner)

	_, err = execute(t, chain, alice, "permit", owner, alice, big.NewInt(10), deadline, v, r, s)
	require.ErrorIs(t, err, ErrInvalidSigner)

	past := big.NewInt(int64(chain.Time() - 1))
	_, err = execute(t, chain, alice, "permit", owner, bob, big.NewInt(10), past, v, r, s)
	require.ErrorIs(t, err, ErrPermitExpired)

	var badS [32]byte
	for i := range badS {
		badS[i] = 0xff
	}
	_, err = execute(t, chain, alice, "permit", owner, bob, big.NewInt(10), deadline, v, r, badS)
	require.ErrorIs(t, err, ErrInvalidSignature)

	require.True(t, Nonce(chain.StateDB(), tokenAddr, owner).IsZero())
	require.True(t, Allowance(chain.StateDB(), tokenAddr, owner, bob).IsZero())
}

func TestRecoverSignerRoundTrip(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	digest := TypedDataHash(common.Hash{0x01}, common.Hash{0x02})

	sig, err := ethcrypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	var r, s [32]byte
	copy(r[:], sig[:32])
	copy(s[:], sig[32:64])

	for _, v := range []uint8{sig[64], sig[64] + 27} {
		signer, err := RecoverSigner(digest, v, r, s)
		require.NoError(t, err)
		require.Equal(t, AddressOf(key), signer)
	}

	_, err = RecoverSigner(digest, 5, r, s)
	require.ErrorIs(t, err, ErrInvalidSignature)
}
