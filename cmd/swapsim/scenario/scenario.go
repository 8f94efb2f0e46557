// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package scenario stands up a wired pair of chains with a relayer between
// them for the swapsim commands.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/xswap/endpoint"
	"github.com/luxfi/xswap/network"
	"github.com/luxfi/xswap/relayer"
	"github.com/luxfi/xswap/token"
)

// RouteName names the single relayer route from source to destination.
const RouteName = "forward"

var ErrUndelivered = errors.New("packet was not delivered")

type Env struct {
	Pair     *network.Pair
	Relayer  *relayer.Relayer
	Registry *prometheus.Registry

	log log.Logger
}

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

// Setup deploys both chains, funds the admins and the destination executor
// and seeds the destination pool with cfg.Liquidity.
func Setup(cfg *Config) (*Env, error) {
	logger := log.NewNoOpLogger()
	if cfg.Verbose {
		logger = log.NewLogger("swapsim")
	}

	pair, err := network.NewPair(cfg.Src, cfg.Dst, logger)
	if err != nil {
		return nil, err
	}
	for _, d := range []*network.Deployment{pair.A, pair.B} {
		d.Fund(d.Settings.Admin, ether(10))
	}
	pair.B.Fund(cfg.Dst.Executor, ether(1))
	if !cfg.Liquidity.IsZero() {
		if err := pair.B.AddLiquidity(cfg.Dst.Admin, cfg.Liquidity); err != nil {
			return nil, fmt.Errorf("couldn't seed liquidity: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	r, err := relayer.New(
		&relayer.Config{
			Routes: []relayer.Route{{
				Name:        RouteName,
				SrcEid:      cfg.Src.Eid,
				DstEid:      cfg.Dst.Eid,
				Executor:    cfg.Dst.Executor,
				SrcEndpoint: endpoint.ContractAddress,
				DstEndpoint: endpoint.ContractAddress,
			}},
			PollInterval: relayer.DefaultPollInterval,
			MaxAttempts:  relayer.DefaultMaxAttempts,
		},
		map[uint32]relayer.Chain{
			cfg.Src.Eid: pair.A,
			cfg.Dst.Eid: pair.B,
		},
		memdb.New(),
		reg,
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &Env{
		Pair:     pair,
		Relayer:  r,
		Registry: reg,
		log:      logger,
	}, nil
}

// Relay runs relayer passes until the packet [guid] is delivered or the
// relayer gives up on it.
func (e *Env) Relay(ctx context.Context, guid [32]byte) (int, error) {
	store, err := e.Relayer.Store(RouteName)
	if err != nil {
		return 0, err
	}
	for pass := 1; pass <= relayer.DefaultMaxAttempts; pass++ {
		if err := e.Relayer.Step(ctx); err != nil {
			return pass, err
		}
		delivered, err := store.IsDelivered(guid)
		if err != nil {
			return pass, err
		}
		if delivered {
			e.log.Info("swap relayed",
				log.Stringer("guid", common.Hash(guid)),
				log.Int("passes", pass),
			)
			return pass, nil
		}
	}

	failed, err := store.Failed()
	if err != nil {
		return relayer.DefaultMaxAttempts, err
	}
	for _, r := range failed {
		if r.Packet.GUID == guid {
			return relayer.DefaultMaxAttempts, fmt.Errorf("%w: %s", ErrUndelivered, r.LastError)
		}
	}
	return relayer.DefaultMaxAttempts, ErrUndelivered
}

// Report prints what the swap moved on both chains.
func (e *Env) Report(w io.Writer, sent *network.Sent, recipient common.Address, passes int) {
	src, dst := e.Pair.A, e.Pair.B
	decimals := src.Settings.Token.Decimals
	symbol := src.Settings.Token.Symbol

	fmt.Fprintf(w, "guid:        %s\n", common.Hash(sent.GUID))
	fmt.Fprintf(w, "nonce:       %d\n", sent.Nonce)
	fmt.Fprintf(w, "fee:         %s native on %s\n", token.FormatUnits(sent.Fee, 18), src.Settings.Name)
	fmt.Fprintf(w, "protocol:    %s %s on %s\n", token.FormatUnits(src.Fees(), decimals), symbol, src.Settings.Name)
	fmt.Fprintf(w, "received:    %s %s by %s on %s\n",
		token.FormatUnits(dst.TokenBalance(recipient), dst.Settings.Token.Decimals),
		dst.Settings.Token.Symbol,
		recipient,
		dst.Settings.Name,
	)
	if available, err := dst.Available(); err == nil {
		fmt.Fprintf(w, "liquidity:   %s %s on %s\n",
			token.FormatUnits(available, dst.Settings.Token.Decimals),
			dst.Settings.Token.Symbol,
			dst.Settings.Name,
		)
	}
	fmt.Fprintf(w, "relayed in:  %d pass(es)\n", passes)
}
