// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import (
	"fmt"
	"sort"

	"github.com/luxfi/geth/common"
)

var (
	DefaultAdmin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	DefaultExecutor = common.HexToAddress("0x00000000000000000000000000000000000000e0")
)

// Preset endpoint ids follow the testnet numbering of the messaging layer.
const (
	EidBSCTestnet uint32 = 40102
	EidSepolia    uint32 = 40161
)

var presets = map[string]Config{
	"bsc-testnet": {
		Name:    "bsc-testnet",
		ChainID: 97,
		Eid:     EidBSCTestnet,
	},
	"sepolia": {
		Name:    "sepolia",
		ChainID: 11155111,
		Eid:     EidSepolia,
	},
}

// Preset returns a ready to deploy config for the chain called [name]. The
// admin holds the whole token supply.
func Preset(name string) (*Config, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q, have %v", ErrInvalidConfig, name, PresetNames())
	}
	cfg := p
	cfg.Admin = DefaultAdmin
	cfg.Executor = DefaultExecutor
	cfg.Token = TokenConfig{
		Name:     "Swap Token",
		Symbol:   "SWP",
		Decimals: 18,
		Supply:   "10000000",
		Holder:   DefaultAdmin,
	}
	return &cfg, nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
