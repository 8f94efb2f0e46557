// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusDelivered = "delivered"
	statusRetry     = "retry"
	statusFailed    = "failed"
)

type metrics struct {
	observed   *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	airdrops   *prometheus.CounterVec
	pending    *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		observed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "xswap_relayer",
				Name:      "packets_observed_total",
				Help:      "Packets picked up from the source endpoint",
			},
			[]string{"route"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "xswap_relayer",
				Name:      "deliveries_total",
				Help:      "Delivery attempts by outcome",
			},
			[]string{"route", "status"},
		),
		airdrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "xswap_relayer",
				Name:      "airdrops_total",
				Help:      "Native drops forwarded on the destination chain",
			},
			[]string{"route", "status"},
		),
		pending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "xswap_relayer",
				Name:      "pending_packets",
				Help:      "Packets waiting for delivery",
			},
			[]string{"route"},
		),
	}
	err := errors.Join(
		reg.Register(m.observed),
		reg.Register(m.deliveries),
		reg.Register(m.airdrops),
		reg.Register(m.pending),
	)
	return m, err
}
