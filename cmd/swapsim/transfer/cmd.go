// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transfer

import (
	"github.com/spf13/cobra"

	"github.com/luxfi/xswap/cmd/swapsim/scenario"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "swap",
		Short: "Swaps tokens from one chain to the other and relays the packet",
		RunE:  swapFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func swapFunc(c *cobra.Command, args []string) error {
	flags := c.Flags()
	config, err := ParseFlags(flags, args)
	if err != nil {
		return err
	}

	env, err := scenario.Setup(config.Config)
	if err != nil {
		return err
	}

	src := env.Pair.A
	sent, err := src.Swap(src.Settings.Admin, config.Dst.Eid, config.Recipient, config.Amount, config.Options)
	if err != nil {
		return err
	}

	passes, err := env.Relay(c.Context(), sent.GUID)
	if err != nil {
		return err
	}
	env.Report(c.OutOrStdout(), sent, config.Recipient, passes)
	return nil
}
