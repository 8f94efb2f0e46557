// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package endpoint

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

var ErrNotPacket = errors.New("log is not a PacketSent event")

// Packet is an outbound message as observed in a PacketSent log.
type Packet struct {
	GUID     [32]byte       `json:"guid"`
	SrcEid   uint32         `json:"srcEid"`
	Sender   common.Address `json:"sender"`
	DstEid   uint32         `json:"dstEid"`
	Receiver [32]byte       `json:"receiver"`
	Nonce    uint64         `json:"nonce"`
	Message  []byte         `json:"message"`
	Options  []byte         `json:"options"`
}

// IsPacketSent reports whether [log] was emitted by an endpoint at [addr]
// as a PacketSent event.
func IsPacketSent(log *types.Log, addr common.Address) bool {
	return log.Address == addr && len(log.Topics) == 2 && log.Topics[0] == ABI.Events["PacketSent"].ID
}

// ParsePacketSent decodes a PacketSent log.
func ParsePacketSent(log *types.Log) (*Packet, error) {
	if len(log.Topics) != 2 {
		return nil, ErrNotPacket
	}
	values, err := ABI.UnpackEvent("PacketSent", log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPacket, err)
	}
	if len(values) != 7 {
		return nil, fmt.Errorf("%w: %d fields", ErrNotPacket, len(values))
	}
	return &Packet{
		GUID:     [32]byte(log.Topics[1]),
		SrcEid:   values[0].(uint32),
		Sender:   values[1].(common.Address),
		DstEid:   values[2].(uint32),
		Receiver: values[3].([32]byte),
		Nonce:    values[4].(uint64),
		Message:  values[5].([]byte),
		Options:  values[6].([]byte),
	}, nil
}

// PackDeliver builds the executor call that hands [p] to its receiver.
func PackDeliver(p *Packet) ([]byte, error) {
	receiver := common.BytesToAddress(p.Receiver[12:])
	return ABI.Pack("deliver", p.SrcEid, [32]byte(common.BytesToHash(p.Sender.Bytes())), p.Nonce, receiver, p.GUID, p.Message)
}
