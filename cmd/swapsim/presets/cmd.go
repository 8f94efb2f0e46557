// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package presets

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxfi/xswap/network"
)

func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "Lists the chains a scenario can deploy",
		RunE:  presetsFunc,
	}
}

func presetsFunc(c *cobra.Command, _ []string) error {
	w := c.OutOrStdout()
	for _, name := range network.PresetNames() {
		cfg, err := network.Preset(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-12s eid %-6d chain %d\n", cfg.Name, cfg.Eid, cfg.ChainID)
	}
	return nil
}
