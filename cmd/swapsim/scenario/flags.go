// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scenario

import (
	"github.com/holiman/uint256"
	"github.com/spf13/pflag"

	"github.com/luxfi/xswap/network"
	"github.com/luxfi/xswap/token"
)

const (
	SrcKey       = "src"
	DstKey       = "dst"
	LiquidityKey = "liquidity"
	VerboseKey   = "verbose"
)

func AddFlags(flags *pflag.FlagSet) {
	flags.String(SrcKey, "bsc-testnet", "Preset of the chain the swap leaves from")
	flags.String(DstKey, "sepolia", "Preset of the chain the swap arrives on")
	flags.String(LiquidityKey, "100000", "Tokens the admin deposits into the destination pool")
	flags.Bool(VerboseKey, false, "Log chain and relayer activity")
}

type Config struct {
	Src       *network.Config
	Dst       *network.Config
	Liquidity *uint256.Int
	Verbose   bool
}

func ParseFlags(flags *pflag.FlagSet) (*Config, error) {
	srcName, err := flags.GetString(SrcKey)
	if err != nil {
		return nil, err
	}
	src, err := network.Preset(srcName)
	if err != nil {
		return nil, err
	}

	dstName, err := flags.GetString(DstKey)
	if err != nil {
		return nil, err
	}
	dst, err := network.Preset(dstName)
	if err != nil {
		return nil, err
	}

	liquidityStr, err := flags.GetString(LiquidityKey)
	if err != nil {
		return nil, err
	}
	liquidity, err := token.ParseUnits(liquidityStr, dst.Token.Decimals)
	if err != nil {
		return nil, err
	}

	verbose, err := flags.GetBool(VerboseKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		Src:       src,
		Dst:       dst,
		Liquidity: liquidity,
		Verbose:   verbose,
	}, nil
}
