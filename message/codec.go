// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package message implements the payload carried from a swap router to its
// peer receiver.
//
// Version 1 layout (73 bytes):
//
//	[0]      version (0x01)
//	[1:33]   recipient, 32 bytes
//	[33:65]  net amount, big-endian uint256
//	[65:73]  nonce, big-endian uint64
//
// Version 0 is the untagged two-field layout (recipient || amount, 64 bytes)
// and is only decoded.
package message

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	VersionLegacy byte = 0x00
	Version1      byte = 0x01

	RecipientLen = 32
	AmountLen    = 32
	NonceLen     = 8

	LegacyLen = RecipientLen + AmountLen
	V1Len     = 1 + RecipientLen + AmountLen + NonceLen
)

var (
	ErrInvalidLength  = errors.New("invalid message length")
	ErrUnknownVersion = errors.New("unknown message version")
	ErrNilAmount      = errors.New("message amount is nil")
)

// Transfer is the payment instruction a receiver acts on.
type Transfer struct {
	Version   byte
	Recipient [32]byte
	// Amount is the net amount, after the source-side fee.
	Amount *uint256.Int
	// Nonce is zero for legacy payloads.
	Nonce uint64
}

// HasNonce reports whether the transfer was encoded with a dedupe nonce.
func (t *Transfer) HasNonce() bool {
	return t.Version >= Version1
}

// Encode serializes [t] using the current version. The Version field of [t]
// is ignored.
func Encode(t *Transfer) ([]byte, error) {
	if t.Amount == nil {
		return nil, ErrNilAmount
	}
	out := make([]byte, V1Len)
	out[0] = Version1
	copy(out[1:1+RecipientLen], t.Recipient[:])
	amount := t.Amount.Bytes32()
	copy(out[1+RecipientLen:1+RecipientLen+AmountLen], amount[:])
	binary.BigEndian.PutUint64(out[1+RecipientLen+AmountLen:], t.Nonce)
	return out, nil
}

// EncodeLegacy serializes [t] in the untagged two-field layout.
func EncodeLegacy(t *Transfer) ([]byte, error) {
	if t.Amount == nil {
		return nil, ErrNilAmount
	}
	out := make([]byte, LegacyLen)
	copy(out[:RecipientLen], t.Recipient[:])
	amount := t.Amount.Bytes32()
	copy(out[RecipientLen:], amount[:])
	return out, nil
}

// Decode parses a payload produced by Encode or EncodeLegacy.
func Decode(b []byte) (*Transfer, error) {
	switch len(b) {
	case LegacyLen:
		t := &Transfer{
			Version: VersionLegacy,
			Amount:  new(uint256.Int).SetBytes32(b[RecipientLen:]),
		}
		copy(t.Recipient[:], b[:RecipientLen])
		return t, nil
	case V1Len:
		if b[0] != Version1 {
			return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, b[0])
		}
		body := b[1:]
		t := &Transfer{
			Version: Version1,
			Amount:  new(uint256.Int).SetBytes32(body[RecipientLen : RecipientLen+AmountLen]),
			Nonce:   binary.BigEndian.Uint64(body[RecipientLen+AmountLen:]),
		}
		copy(t.Recipient[:], body[:RecipientLen])
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, len(b))
	}
}
