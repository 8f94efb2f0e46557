// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package permit

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/spf13/pflag"

	"github.com/luxfi/xswap/cmd/swapsim/scenario"
	"github.com/luxfi/xswap/token"
)

const (
	AmountKey   = "amount"
	DeadlineKey = "deadline"
)

func AddFlags(flags *pflag.FlagSet) {
	scenario.AddFlags(flags)
	flags.String(AmountKey, "200", "Tokens the signer swaps")
	flags.Duration(DeadlineKey, time.Hour, "How long the signed permit stays valid")
}

type Config struct {
	*scenario.Config
	Amount   *uint256.Int
	Deadline time.Duration
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

	deadline, err := flags.GetDuration(DeadlineKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		Config:   base,
		Amount:   amount,
		Deadline: deadline,
	}, nil
}
