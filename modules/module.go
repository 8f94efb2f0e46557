// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/contract"
)

// Module binds a precompile implementation to its address and config key.
type Module struct {
	// ConfigKey is the key used in genesis and upgrade JSON.
	ConfigKey string
	// Address is where the precompile is installed.
	Address common.Address
	// Contract is the stateless implementation; state lives in StateDB.
	Contract contract.StatefulPrecompiledContract
	// Configurator writes the module's initial state on activation.
	Configurator contract.Configurator
}

type moduleArray []Module

func (u moduleArray) Len() int {
	return len(u)
}

func (u moduleArray) Swap(i, j int) {
	u[i], u[j] = u[j], u[i]
}

func (m moduleArray) Less(i, j int) bool {
	return bytes.Compare(m[i].Address.Bytes(), m[j].Address.Bytes()) < 0
}
