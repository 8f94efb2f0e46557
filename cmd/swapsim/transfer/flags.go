// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transfer

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/spf13/pflag"

	"github.com/luxfi/xswap/cmd/swapsim/scenario"
	"github.com/luxfi/xswap/endpoint"
	"github.com/luxfi/xswap/token"
)

const (
	AmountKey    = "amount"
	RecipientKey = "recipient"
	GasLimitKey  = "gas-limit"
	DropKey      = "drop"
	DropToKey    = "drop-to"
)

func AddFlags(flags *pflag.FlagSet) {
	scenario.AddFlags(flags)
	flags.String(AmountKey, "1000", "Tokens to swap")
	flags.String(RecipientKey, "0x0000000000000000000000000000000000000b0b", "Address credited on the destination chain")
	flags.Uint64(GasLimitKey, endpoint.DefaultGasLimit, "Execution gas requested for the delivery")
	flags.String(DropKey, "0", "Native currency airdropped on the destination chain")
	flags.String(DropToKey, "", "Airdrop receiver, defaults to the recipient")
}

type Config struct {
	*scenario.Config
	Amount    *uint256.Int
	Recipient common.Address
	Options   []byte
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	base, err := scenario.ParseFlags(flags)
	if err != nil {
		return nil, err
	}

	amountStr, err := flags.GetString(AmountKey)
	if err != nil {
		return nil, err
	}
	amount, err := token.ParseUnits(amountStr, base.Src.Token.Decimals)
	if err != nil {
		return nil, err
	}

	recipient, err := address(flags, RecipientKey)
	if err != nil {
		return nil, err
	}

	gasLimit, err := flags.GetUint64(GasLimitKey)
	if err != nil {
		return nil, err
	}

	dropStr, err := flags.GetString(DropKey)
	if err != nil {
		return nil, err
	}
	drop, err := token.ParseUnits(dropStr, 18)
	if err != nil {
		return nil, err
	}

	dropTo := recipient
	if flags.Changed(DropToKey) {
		dropTo, err = address(flags, DropToKey)
		if err != nil {
			return nil, err
		}
	}

	var options []byte
	if gasLimit != endpoint.DefaultGasLimit || !drop.IsZero() {
		opts := &endpoint.Options{GasLimit: gasLimit, NativeDrop: drop}
		if !drop.IsZero() {
			opts.DropTo = dropTo
		}
		options = endpoint.EncodeOptions(opts)
	}

	return &Config{
		Config:    base,
		Amount:    amount,
		Recipient: recipient,
		Options:   options,
	}, nil
}

func address(flags *pflag.FlagSet, key string) (common.Address, error) {
	s, err := flags.GetString(key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("--%s: %q is not an address", key, s)
	}
	return common.HexToAddress(s), nil
}
