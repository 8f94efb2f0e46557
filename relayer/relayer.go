// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relayer carries packets between endpoints. For every route it
// scans the source chain for PacketSent logs, persists them, and submits
// them to the destination endpoint as the executor. A delivery that keeps
// failing is parked after MaxAttempts and left for an operator.
package relayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/xswap/endpoint"
	"github.com/luxfi/xswap/host"
)

var (
	ErrInvalidConfig = errors.New("invalid relayer config")
	ErrUnknownChain  = errors.New("no chain for endpoint id")
	ErrUnknownRoute  = errors.New("unknown route")
	ErrUnknownPacket = errors.New("unknown packet")
)

// Chain is what the relayer needs from a chain: committed logs and a way to
// submit transactions.
type Chain interface {
	LogsSince(cursor int) ([]*types.Log, int)
	Execute(from common.Address, to common.Address, input []byte, value *uint256.Int) (*host.Receipt, error)
}

var _ Chain = (*host.Chain)(nil)

type Relayer struct {
	log          log.Logger
	pollInterval time.Duration
	routes       []*route
}

type route struct {
	Route

	src         Chain
	dst         Chain
	store       *Store
	maxAttempts int
	log         log.Logger
	metrics     *metrics
}

// New wires a relayer for [config]. [chains] maps endpoint ids to chains and
// every route's state lives under its name in [db].
func New(
	config *Config,
	chains map[uint32]Chain,
	db database.Database,
	reg prometheus.Registerer,
	logger log.Logger,
) (*Relayer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	r := &Relayer{
		log:          logger,
		pollInterval: time.Duration(config.PollInterval),
	}
	for _, rc := range config.Routes {
		src, ok := chains[rc.SrcEid]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownChain, rc.SrcEid)
		}
		dst, ok := chains[rc.DstEid]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownChain, rc.DstEid)
		}
		r.routes = append(r.routes, &route{
			Route:       rc,
			src:         src,
			dst:         dst,
			store:       NewStore(prefixdb.New([]byte(rc.Name), db)),
			maxAttempts: config.MaxAttempts,
			log:         logger,
			metrics:     m,
		})
	}
	return r, nil
}

// Run polls every route until [ctx] is cancelled or a route hits a storage
// error.
func (r *Relayer) Run(ctx context.Context) error {
	r.log.Info("starting relayer",
		log.Int("routes", len(r.routes)),
		log.Duration("pollInterval", r.pollInterval),
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, rt := range r.routes {
		g.Go(func() error {
			return rt.run(ctx, r.pollInterval)
		})
	}
	err := g.Wait()
	r.log.Info("relayer stopped", log.Err(err))
	return err
}

// Step runs a single scan and delivery pass over every route.
func (r *Relayer) Step(ctx context.Context) error {
	for _, rt := range r.routes {
		if err := rt.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Store returns the packet store of the route called [name].
func (r *Relayer) Store(name string) (*Store, error) {
	for _, rt := range r.routes {
		if rt.Name == name {
			return rt.store, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, name)
}

func (rt *route) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := rt.step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("route %s: %w", rt.Name, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (rt *route) step(ctx context.Context) error {
	if err := rt.scan(); err != nil {
		return err
	}
	return rt.deliverPending(ctx)
}

func (rt *route) scan() error {
	cursor, err := rt.store.Cursor()
	if err != nil {
		return err
	}
	logs, next := rt.src.LogsSince(cursor)
	for _, l := range logs {
		if !endpoint.IsPacketSent(l, rt.SrcEndpoint) {
			continue
		}
		p, err := endpoint.ParsePacketSent(l)
		if err != nil {
			rt.log.Warn("skipping malformed packet",
				log.String("route", rt.Name),
				log.Stringer("tx", l.TxHash),
				log.Err(err),
			)
			continue
		}
		if p.SrcEid != rt.SrcEid || p.DstEid != rt.DstEid {
			continue
		}
		added, err := rt.store.Enqueue(p)
		if err != nil {
			return err
		}
		if added {
			rt.metrics.observed.WithLabelValues(rt.Name).Inc()
			rt.log.Debug("packet observed",
				log.String("route", rt.Name),
				log.Stringer("guid", common.Hash(p.GUID)),
				log.Uint64("nonce", p.Nonce),
			)
		}
	}
	if next == cursor {
		return nil
	}
	return rt.store.SetCursor(next)
}

func (rt *route) deliverPending(ctx context.Context) error {
	records, err := rt.store.Pending()
	if err != nil {
		return err
	}
	remaining := len(records)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := rt.deliver(rec)
		if err != nil {
			return err
		}
		if done {
			remaining--
		}
	}
	rt.metrics.pending.WithLabelValues(rt.Name).Set(float64(remaining))
	return nil
}

// deliver makes one attempt at [rec] and reports whether it left the
// pending set. Only storage failures are returned.
func (rt *route) deliver(rec *Record) (bool, error) {
	p := rec.Packet
	guid := common.Hash(p.GUID)
	input, err := endpoint.PackDeliver(p)
	if err == nil {
		_, err = rt.dst.Execute(rt.Executor, rt.DstEndpoint, input, nil)
	}
	if err == nil {
		if err := rt.store.MarkDelivered(rec); err != nil {
			return false, err
		}
		rt.metrics.deliveries.WithLabelValues(rt.Name, statusDelivered).Inc()
		rt.log.Info("packet delivered",
			log.String("route", rt.Name),
			log.Stringer("guid", guid),
			log.Uint64("nonce", p.Nonce),
			log.Int("attempts", rec.Attempts+1),
		)
		rt.airdrop(p)
		return true, nil
	}

	rec.Attempts++
	rec.LastError = err.Error()
	if rec.Attempts >= rt.maxAttempts {
		if err := rt.store.MarkFailed(rec); err != nil {
			return false, err
		}
		rt.metrics.deliveries.WithLabelValues(rt.Name, statusFailed).Inc()
		rt.log.Error("packet parked after repeated failures",
			log.String("route", rt.Name),
			log.Stringer("guid", guid),
			log.Int("attempts", rec.Attempts),
			log.Err(err),
		)
		return true, nil
	}
	if err := rt.store.Retry(rec); err != nil {
		return false, err
	}
	rt.metrics.deliveries.WithLabelValues(rt.Name, statusRetry).Inc()
	rt.log.Warn("delivery failed, will retry",
		log.String("route", rt.Name),
		log.Stringer("guid", guid),
		log.Int("attempts", rec.Attempts),
		log.Err(err),
	)
	return false, nil
}

// airdrop forwards the native drop requested in the packet options from the
// executor account.
func (rt *route) airdrop(p *endpoint.Packet) {
	opts, err := endpoint.DecodeOptions(p.Options)
	if err != nil || !opts.HasAirdrop() {
		return
	}
	if _, err := rt.dst.Execute(rt.Executor, opts.DropTo, nil, opts.NativeDrop); err != nil {
		rt.metrics.airdrops.WithLabelValues(rt.Name, statusFailed).Inc()
		rt.log.Warn("airdrop failed",
			log.String("route", rt.Name),
			log.Stringer("to", opts.DropTo),
			log.Err(err),
		)
		return
	}
	rt.metrics.airdrops.WithLabelValues(rt.Name, statusDelivered).Inc()
}
