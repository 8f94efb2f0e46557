// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package endpoint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/modules"
	"github.com/luxfi/xswap/precompileconfig"
)

var _ contract.Configurator = (*configurator)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "swapEndpointConfig"

// ContractAddress is where the messaging endpoint is installed.
var ContractAddress = common.HexToAddress("0x0000000000000000000000000000000000006210")

// DefaultBaseFee is the flat native fee of a packet: 0.01 of an 18-decimal coin.
var DefaultBaseFee = big.NewInt(10_000_000_000_000_000)

var (
	ErrMissingEid      = errors.New("endpoint id must be non-zero")
	ErrMissingAdmin    = errors.New("endpoint admin must be set")
	ErrMissingExecutor = errors.New("endpoint executor must be set")
	ErrInvalidFee      = errors.New("fee parameter must be a uint256")
)

// Module is the precompile module for the messaging endpoint
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractAddress,
	Contract:     EndpointPrecompile,
	Configurator: &configurator{},
}

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

func (*configurator) MakeConfig() precompileconfig.Config {
	return new(Config)
}

func (*configurator) Configure(
	_ precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	_ contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}

	baseFee, gasPrice, err := config.feeParams()
	if err != nil {
		return err
	}
	addr := ContractAddress
	contract.SetUint64(state, addr, eidSlot, uint64(config.Eid))
	contract.SetAddress(state, addr, adminSlot, config.Admin)
	contract.SetAddress(state, addr, executorSlot, config.Executor)
	contract.SetUint256(state, addr, baseFeeSlot, baseFee)
	contract.SetUint256(state, addr, gasPriceSlot, gasPrice)
	return nil
}

// Config implements the precompileconfig.Config interface
type Config struct {
	Upgrade  precompileconfig.Upgrade `json:"upgrade,omitempty"`
	Eid      uint32                   `json:"eid"`
	Admin    common.Address           `json:"admin"`
	Executor common.Address           `json:"executor"`
	BaseFee  *big.Int                 `json:"baseFee,omitempty"`
	GasPrice *big.Int                 `json:"gasPrice,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) Timestamp() *uint64 {
	return c.Upgrade.Timestamp()
}

func (c *Config) IsDisabled() bool {
	return c.Upgrade.Disable
}

func (c *Config) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*Config)
	if !ok {
		return false
	}
	return c.Upgrade.Equal(&other.Upgrade) &&
		c.Eid == other.Eid &&
		c.Admin == other.Admin &&
		c.Executor == other.Executor &&
		bigEqual(c.BaseFee, other.BaseFee) &&
		bigEqual(c.GasPrice, other.GasPrice)
}

func (c *Config) Verify(precompileconfig.ChainConfig) error {
	if c.Eid == 0 {
		return ErrMissingEid
	}
	if c.Admin == (common.Address{}) {
		return ErrMissingAdmin
	}
	if c.Executor == (common.Address{}) {
		return ErrMissingExecutor
	}
	_, _, err := c.feeParams()
	return err
}

func (c *Config) feeParams() (*uint256.Int, *uint256.Int, error) {
	baseFee := DefaultBaseFee
	if c.BaseFee != nil {
		baseFee = c.BaseFee
	}
	base, err := contract.BigToUint256(baseFee)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: baseFee", ErrInvalidFee)
	}
	price := new(uint256.Int)
	if c.GasPrice != nil {
		if price, err = contract.BigToUint256(c.GasPrice); err != nil {
			return nil, nil, fmt.Errorf("%w: gasPrice", ErrInvalidFee)
		}
	}
	return base, price, nil
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
