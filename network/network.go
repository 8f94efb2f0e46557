// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package network assembles complete swap deployments on in-memory chains:
// the token, the messaging endpoint and the pool, router and receiver,
// wired to each other and to a peer deployment on a remote chain.
package network

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/xswap/contract"
	"github.com/luxfi/xswap/endpoint"
	"github.com/luxfi/xswap/host"
	"github.com/luxfi/xswap/precompileconfig"
	"github.com/luxfi/xswap/swap"
	"github.com/luxfi/xswap/token"
)

// DefaultTokenAddress is where the swap token is deployed unless configured
// otherwise.
var DefaultTokenAddress = common.HexToAddress("0x0000000000000000000000000000000000a11ce0")

var (
	ErrInvalidConfig = errors.New("invalid network config")
	ErrSameEid       = errors.New("paired chains share an endpoint id")
)

var validate = validator.New()

type TokenConfig struct {
	Address  common.Address `json:"address,omitempty"`
	Name     string         `json:"name" validate:"required"`
	Symbol   string         `json:"symbol" validate:"required"`
	Decimals uint8          `json:"decimals" validate:"max=36"`

	// Supply is minted to Holder at genesis, in whole tokens.
	Supply string         `json:"supply,omitempty" validate:"omitempty,numeric"`
	Holder common.Address `json:"holder,omitempty"`
}

// Config describes one chain of a deployment.
type Config struct {
	Name     string         `json:"name" validate:"required"`
	ChainID  uint64         `json:"chainId" validate:"required"`
	Eid      uint32         `json:"eid" validate:"required"`
	Admin    common.Address `json:"admin"`
	Executor common.Address `json:"executor"`
	FeeBps   *uint16        `json:"feeBps,omitempty" validate:"omitempty,max=10000"`
	Token    TokenConfig    `json:"token"`
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Admin == (common.Address{}) || c.Executor == (common.Address{}) {
		return fmt.Errorf("%w: %s needs an admin and an executor", ErrInvalidConfig, c.Name)
	}
	if c.Token.Supply != "" && c.Token.Holder == (common.Address{}) {
		return fmt.Errorf("%w: %s mints a supply without a holder", ErrInvalidConfig, c.Name)
	}
	return nil
}

func (c *Config) tokenAddress() common.Address {
	if c.Token.Address == (common.Address{}) {
		return DefaultTokenAddress
	}
	return c.Token.Address
}

// Deployment is a chain carrying a full swap deployment.
type Deployment struct {
	*host.Chain

	Settings *Config
	Token    common.Address
}

// Deploy creates a chain for [cfg] and activates every contract. The swap
// contracts are not yet linked; see Wire.
func Deploy(cfg *Config, logger log.Logger) (*Deployment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tokenAddr := cfg.tokenAddress()
	chain := host.New(cfg.ChainID, host.WithLogger(logger))

	tok := token.New(cfg.Token.Name, cfg.Token.Symbol, cfg.Token.Decimals)
	if err := chain.Deploy(tokenAddr, tok); err != nil {
		return nil, err
	}
	supply := new(uint256.Int)
	if cfg.Token.Supply != "" {
		var err error
		if supply, err = token.ParseUnits(cfg.Token.Supply, cfg.Token.Decimals); err != nil {
			return nil, err
		}
	}
	if err := chain.ApplyGenesis(func(state contract.StateDB) error {
		if err := token.Initialize(state, tokenAddr, cfg.Admin); err != nil {
			return err
		}
		if supply.IsZero() {
			return nil
		}
		return token.Mint(state, tokenAddr, cfg.Token.Holder, supply)
	}); err != nil {
		return nil, fmt.Errorf("token genesis: %w", err)
	}

	for _, precompile := range []precompileconfig.Config{
		&endpoint.Config{Eid: cfg.Eid, Admin: cfg.Admin, Executor: cfg.Executor},
		&swap.PoolConfig{Admin: cfg.Admin, Token: tokenAddr},
		&swap.RouterConfig{Admin: cfg.Admin, Token: tokenAddr, FeeBps: cfg.FeeBps},
		&swap.ReceiverConfig{Admin: cfg.Admin},
	} {
		if err := chain.Activate(precompile); err != nil {
			return nil, err
		}
	}

	logger.Info("deployed swap contracts",
		log.String("chain", cfg.Name),
		log.Uint32("eid", cfg.Eid),
		log.Stringer("token", tokenAddr),
	)
	return &Deployment{Chain: chain, Settings: cfg, Token: tokenAddr}, nil
}
