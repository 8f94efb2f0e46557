// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package message

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func maxUint256() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

func TestRoundTrip(t *testing.T) {
	var allOnes [32]byte
	for i := range allOnes {
		allOnes[i] = 0xff
	}
	tests := []struct {
		name      string
		recipient [32]byte
		amount    *uint256.Int
		nonce     uint64
	}{
		{"zero", [32]byte{}, uint256.NewInt(0), 0},
		{"one", AddressToBytes32(common.HexToAddress("0x01")), uint256.NewInt(1), 1},
		{"max", allOnes, maxUint256(), ^uint64(0)},
		{"typical", AddressToBytes32(common.HexToAddress("0x9011E888251AB053B7bD1cdB598Db4f9DEd94714")), uint256.NewInt(995), 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(&Transfer{Recipient: tt.recipient, Amount: tt.amount, Nonce: tt.nonce})
			require.NoError(t, err)
			require.Len(t, encoded, V1Len)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			require.Equal(t, Version1, decoded.Version)
			require.Equal(t, tt.recipient, decoded.Recipient)
			require.True(t, tt.amount.Eq(decoded.Amount))
			require.Equal(t, tt.nonce, decoded.Nonce)
			require.True(t, decoded.HasNonce())
		})
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		var recipient, amount [32]byte
		rng.Read(recipient[:])
		rng.Read(amount[:])
		in := &Transfer{
			Recipient: recipient,
			Amount:    new(uint256.Int).SetBytes32(amount[:]),
			Nonce:     rng.Uint64(),
		}
		encoded, err := Encode(in)
		require.NoError(t, err)
		out, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, in.Recipient, out.Recipient)
		require.True(t, in.Amount.Eq(out.Amount))
		require.Equal(t, in.Nonce, out.Nonce)

		reencoded, err := Encode(out)
		require.NoError(t, err)
		if !bytes.Equal(encoded, reencoded) {
			t.Fatalf("re-encoding differs: %x != %x", encoded, reencoded)
		}
	}
}

func TestLegacyDecode(t *testing.T) {
	recipient := AddressToBytes32(common.HexToAddress("0xabc"))
	encoded, err := EncodeLegacy(&Transfer{Recipient: recipient, Amount: maxUint256()})
	require.NoError(t, err)
	require.Len(t, encoded, LegacyLen)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, VersionLegacy, decoded.Version)
	require.False(t, decoded.HasNonce())
	require.Equal(t, recipient, decoded.Recipient)
	require.True(t, maxUint256().Eq(decoded.Amount))
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(nil)
	require.ErrorIs(t, err, ErrInvalidLength)

	_, err = Decode(make([]byte, V1Len-1))
	require.ErrorIs(t, err, ErrInvalidLength)

	bad := make([]byte, V1Len)
	bad[0] = 0x02
	_, err = Decode(bad)
	require.ErrorIs(t, err, ErrUnknownVersion)

	_, err = Encode(&Transfer{})
	require.ErrorIs(t, err, ErrNilAmount)
}

func TestBytes32Address(t *testing.T) {
	addr := common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	b := AddressToBytes32(addr)
	got, err := Bytes32ToAddress(b)
	require.NoError(t, err)
	require.Equal(t, addr, got)

	b[0] = 1
	_, err = Bytes32ToAddress(b)
	require.ErrorIs(t, err, ErrInvalidAddress)
}
