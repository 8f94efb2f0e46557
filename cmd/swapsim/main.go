// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luxfi/xswap/cmd/swapsim/permit"
	"github.com/luxfi/xswap/cmd/swapsim/presets"
	"github.com/luxfi/xswap/cmd/swapsim/transfer"
)

func init() {
	cobra.EnablePrefixMatching = true
}

func main() {
	cmd := &cobra.Command{
		Use:   "swapsim",
		Short: "Simulates cross-chain swaps between two in-memory chains",
	}
	cmd.AddCommand(
		transfer.Command(),
		permit.Command(),
		presets.Command(),
	)
	ctx := context.Background()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
