// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package permit

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/luxfi/xswap/cmd/swapsim/scenario"
	"github.com/luxfi/xswap/token"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "permit",
		Short: "Swaps tokens for a fresh signer that holds no native currency",
		Long: "Generates a key, hands it tokens on the source chain and has the admin " +
			"submit a swap authorized by the signer's EIP-2612 permit.",
		RunE: permitFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func permitFunc(c *cobra.Command, args []string) error {
	flags := c.Flags()
	config, err := ParseFlags(flags, args)
	if err != nil {
		return err
	}

	env, err := scenario.Setup(config.Config)
	if err != nil {
		return err
	}

	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("couldn't generate signer: %w", err)
	}
	owner := token.AddressOf(key)

	src := env.Pair.A
	admin := src.Settings.Admin
	if _, err := src.Call(admin, src.Token, token.ABI, nil, "transfer", owner, config.Amount.ToBig()); err != nil {
		return fmt.Errorf("couldn't fund signer: %w", err)
	}

	deadline := src.Time() + uint64(config.Deadline.Seconds())
	sent, err := src.SwapWithPermit(admin, key, config.Dst.Eid, config.Amount, deadline)
	if err != nil {
		return err
	}

	passes, err := env.Relay(c.Context(), sent.GUID)
	if err != nil {
		return err
	}
	env.Report(c.OutOrStdout(), sent, owner, passes)
	return nil
}
