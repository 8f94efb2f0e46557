// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/endpoint"
	"github.com/luxfi/xswap/modules"
	"github.com/luxfi/xswap/precompileconfig"
)

// Config keys used in json config files.
const (
	PoolConfigKey     = "swapPoolConfig"
	RouterConfigKey   = "swapRouterConfig"
	ReceiverConfigKey = "swapReceiverConfig"
)

var (
	ErrMissingAdmin = errors.New("admin must be set")
	ErrMissingToken = errors.New("token must be set")
)

var (
	PoolModule = modules.Module{
		ConfigKey:    PoolConfigKey,
		Address:      PoolAddress,
		Contract:     PoolPrecompile,
		Configurator: &poolConfigurator{},
	}
	RouterModule = modules.Module{
		ConfigKey:    RouterConfigKey,
		Address:      RouterAddress,
		Contract:     RouterPrecompile,
		Configurator: &routerConfigurator{},
	}
	ReceiverModule = modules.Module{
		ConfigKey:    ReceiverConfigKey,
		Address:      ReceiverAddress,
		Contract:     ReceiverPrecompile,
		Configurator: &receiverConfigurator{},
	}
)

func init() {
	for _, m := range []modules.Module{PoolModule, RouterModule, ReceiverModule} {
		if err := modules.RegisterModule(m); err != nil {
			panic(err)
		}
	}
}

// PoolConfig implements the precompileconfig.Config interface
type PoolConfig struct {
	Upgrade  precompileconfig.Upgrade `json:"upgrade,omitempty"`
	Admin    common.Address           `json:"admin"`
	Token    common.Address           `json:"token"`
	Receiver common.Address           `json:"receiver,omitempty"`
	Router   common.Address           `json:"router,omitempty"`

	// ExecuteTargets are allow-listed for execute at activation.
	ExecuteTargets []common.Address `json:"executeTargets,omitempty"`
}

func (c *PoolConfig) Key() string        { return PoolConfigKey }
func (c *PoolConfig) Timestamp() *uint64 { return c.Upgrade.Timestamp() }
func (c *PoolConfig) IsDisabled() bool   { return c.Upgrade.Disable }

func (c *PoolConfig) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*PoolConfig)
	if !ok {
		return false
	}
	if len(c.ExecuteTargets) != len(other.ExecuteTargets) {
		return false
	}
	for i := range c.ExecuteTargets {
		if c.ExecuteTargets[i] != other.ExecuteTargets[i] {
			return false
		}
	}
	return c.Upgrade.Equal(&other.Upgrade) &&
		c.Admin == other.Admin &&
		c.Token == other.Token &&
		c.Receiver == other.Receiver &&
		c.Router == other.Router
}

func (c *PoolConfig) Verify(precompileconfig.ChainConfig) error {
	if c.Admin == (common.Address{}) {
		return ErrMissingAdmin
	}
	if c.Token == (common.Address{}) {
		return ErrMissingToken
	}
	for _, target := range c.ExecuteTargets {
		if target == (common.Address{}) || target == PoolAddress {
			return fmt.Errorf("%w: %s", ErrTargetNotAllowed, target)
		}
	}
	return nil
}

// RouterConfig implements the precompileconfig.Config interface
type RouterConfig struct {
	Upgrade  precompileconfig.Upgrade `json:"upgrade,omitempty"`
	Admin    common.Address           `json:"admin"`
	Token    common.Address           `json:"token"`
	Pool     common.Address           `json:"pool,omitempty"`
	Endpoint common.Address           `json:"endpoint,omitempty"`

	// FeeBps defaults to DefaultFeeBps.
	FeeBps *uint16                 `json:"feeBps,omitempty"`
	Peers  map[uint32]common.Hash `json:"peers,omitempty"`
}

func (c *RouterConfig) Key() string        { return RouterConfigKey }
func (c *RouterConfig) Timestamp() *uint64 { return c.Upgrade.Timestamp() }
func (c *RouterConfig) IsDisabled() bool   { return c.Upgrade.Disable }

func (c *RouterConfig) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*RouterConfig)
	if !ok {
		return false
	}
	return c.Upgrade.Equal(&other.Upgrade) &&
		c.Admin == other.Admin &&
		c.Token == other.Token &&
		c.Pool == other.Pool &&
		c.Endpoint == other.Endpoint &&
		c.feeBps() == other.feeBps() &&
		peersEqual(c.Peers, other.Peers)
}

func (c *RouterConfig) Verify(precompileconfig.ChainConfig) error {
	if c.Admin == (common.Address{}) {
		return ErrMissingAdmin
	}
	if c.Token == (common.Address{}) {
		return ErrMissingToken
	}
	if uint64(c.feeBps()) > BasisPoints {
		return fmt.Errorf("%w: %d", ErrInvalidFeeBps, c.feeBps())
	}
	return nil
}

func (c *RouterConfig) feeBps() uint16 {
	if c.FeeBps == nil {
		return DefaultFeeBps
	}
	return *c.FeeBps
}

// ReceiverConfig implements the precompileconfig.Config interface
type ReceiverConfig struct {
	Upgrade  precompileconfig.Upgrade `json:"upgrade,omitempty"`
	Admin    common.Address           `json:"admin"`
	Pool     common.Address           `json:"pool,omitempty"`
	Endpoint common.Address           `json:"endpoint,omitempty"`
	Peers    map[uint32]common.Hash   `json:"peers,omitempty"`
}

func (c *ReceiverConfig) Key() string        { return ReceiverConfigKey }
func (c *ReceiverConfig) Timestamp() *uint64 { return c.Upgrade.Timestamp() }
func (c *ReceiverConfig) IsDisabled() bool   { return c.Upgrade.Disable }

func (c *ReceiverConfig) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*ReceiverConfig)
	if !ok {
		return false
	}
	return c.Upgrade.Equal(&other.Upgrade) &&
		c.Admin == other.Admin &&
		c.Pool == other.Pool &&
		c.Endpoint == other.Endpoint &&
		peersEqual(c.Peers, other.Peers)
}

func (c *ReceiverConfig) Verify(precompileconfig.ChainConfig) error {
	if c.Admin == (common.Address{}) {
		return ErrMissingAdmin
	}
	return nil
}

func peersEqual(a, b map[uint32]common.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for chainID, peer := range a {
		if other, ok := b[chainID]; !ok || other != peer {
			return false
		}
	}
	return true
}

func endpointOrDefault(addr common.Address) common.Address {
	if addr == (common.Address{}) {
		return endpoint.ContractAddress
	}
	return addr
}

func writePeers(state contract.StateDB, addr common.Address, peers map[uint32]common.Hash) {
	for chainID, peer := range peers {
		setPeer(state, addr, chainID, [32]byte(peer))
	}
}

func setOptional(state contract.StateDB, addr common.Address, slot common.Hash, value common.Address) {
	if value != (common.Address{}) {
		contract.SetAddress(state, addr, slot, value)
	}
}

type poolConfigurator struct{}

func (*poolConfigurator) MakeConfig() precompileconfig.Config {
	return new(PoolConfig)
}

func (*poolConfigurator) Configure(
	_ precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	_ contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*PoolConfig)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &PoolConfig{}, cfg, cfg)
	}
	addr := PoolAddress
	contract.SetAddress(state, addr, adminSlot, config.Admin)
	contract.SetAddress(state, addr, tokenSlot, config.Token)
	setOptional(state, addr, receiverSlot, config.Receiver)
	setOptional(state, addr, routerSlot, config.Router)
	for _, target := range config.ExecuteTargets {
		contract.SetBool(state, addr, executeTargetKey(target), true)
	}
	return nil
}

type routerConfigurator struct{}

func (*routerConfigurator) MakeConfig() precompileconfig.Config {
	return new(RouterConfig)
}

func (*routerConfigurator) Configure(
	_ precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	_ contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*RouterConfig)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &RouterConfig{}, cfg, cfg)
	}
	addr := RouterAddress
	contract.SetAddress(state, addr, adminSlot, config.Admin)
	contract.SetAddress(state, addr, tokenSlot, config.Token)
	contract.SetAddress(state, addr, endpointSlot, endpointOrDefault(config.Endpoint))
	setOptional(state, addr, poolSlot, config.Pool)
	contract.SetUint64(state, addr, feeBpsSlot, uint64(config.feeBps()))
	writePeers(state, addr, config.Peers)
	return nil
}

type receiverConfigurator struct{}

func (*receiverConfigurator) MakeConfig() precompileconfig.Config {
	return new(ReceiverConfig)
}

func (*receiverConfigurator) Configure(
	_ precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	_ contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*ReceiverConfig)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &ReceiverConfig{}, cfg, cfg)
	}
	addr := ReceiverAddress
	contract.SetAddress(state, addr, adminSlot, config.Admin)
	contract.SetAddress(state, addr, endpointSlot, endpointOrDefault(config.Endpoint))
	setOptional(state, addr, poolSlot, config.Pool)
	writePeers(state, addr, config.Peers)
	return nil
}
