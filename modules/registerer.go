// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/geth/common"
)

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

var (
	registerMu sync.RWMutex

	// registeredModules is kept sorted by address for deterministic iteration
	registeredModules = make([]Module, 0)

	// Reserved address ranges for swap precompiles (LP-6xxx bridges):
	//
	// 0x6200-0x620F: swap protocol (pool, router, receiver)
	// 0x6210-0x621F: messaging endpoints
	reservedRanges = []AddressRange{
		{
			Start: common.HexToAddress("0x0000000000000000000000000000000000006200"),
			End:   common.HexToAddress("0x000000000000000000000000000000000000620f"),
		},
		{
			Start: common.HexToAddress("0x0000000000000000000000000000000000006210"),
			End:   common.HexToAddress("0x000000000000000000000000000000000000621f"),
		},
	}
)

// ReservedAddress returns true if [addr] is in a reserved range for custom precompiles
func ReservedAddress(addr common.Address) bool {
	for _, reservedRange := range reservedRanges {
		if reservedRange.Contains(addr) {
			return true
		}
	}
	return false
}

// RegisterModule registers a stateful precompile module
func RegisterModule(stm Module) error {
	address := stm.Address
	key := stm.ConfigKey

	if stm.Contract == nil {
		return fmt.Errorf("module %s has no contract", key)
	}
	if !ReservedAddress(address) {
		return fmt.Errorf("address %s not in a reserved range", address)
	}

	registerMu.Lock()
	defer registerMu.Unlock()

	for _, registeredModule := range registeredModules {
		if registeredModule.ConfigKey == key {
			return fmt.Errorf("name %s already used by a stateful precompile", key)
		}
		if registeredModule.Address == address {
			return fmt.Errorf("address %s already used by a stateful precompile", address)
		}
	}
	registeredModules = insertSortedByAddress(registeredModules, stm)
	return nil
}

func GetPrecompileModuleByAddress(address common.Address) (Module, bool) {
	registerMu.RLock()
	defer registerMu.RUnlock()

	for _, stm := range registeredModules {
		if stm.Address == address {
			return stm, true
		}
	}
	return Module{}, false
}

func GetPrecompileModule(key string) (Module, bool) {
	registerMu.RLock()
	defer registerMu.RUnlock()

	for _, stm := range registeredModules {
		if stm.ConfigKey == key {
			return stm, true
		}
	}
	return Module{}, false
}

// RegisteredModules returns a copy of the registered modules in address order.
func RegisteredModules() []Module {
	registerMu.RLock()
	defer registerMu.RUnlock()

	out := make([]Module, len(registeredModules))
	copy(out, registeredModules)
	return out
}

func insertSortedByAddress(data []Module, stm Module) []Module {
	data = append(data, stm)
	sort.Sort(moduleArray(data))
	return data
}
