// Package metrics exposes the relay's operational counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

type Set struct {
	SessionsActive  prometheus.Gauge
	BroadcastsTotal prometheus.Counter
	DroppedPushes   prometheus.Counter
	ActionsTotal    *prometheus.CounterVec
	BusEventsTotal  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Set {
	f := promauto.With(reg)
	return &Set{
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_relay_sessions_active",
			Help: "Streaming sessions currently held by this instance.",
		}),
		BroadcastsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_relay_broadcasts_total",
			Help: "Events fanned out to local sessions.",
		}),
		DroppedPushes: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_relay_dropped_pushes_total",
			Help: "Per-sink deliveries dropped (closed session or full mailbox).",
		}),
		ActionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_relay_actions_total",
			Help: "Dispatched actions by type.",
		}, []string{"type"}),
		BusEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_relay_bus_events_total",
			Help: "Cross-instance bus traffic by direction.",
		}, []string{"direction"}),
	}
}

var Module = fx.Module("metrics",
	fx.Provide(
		func() *prometheus.Registry { return prometheus.NewRegistry() },
		func(reg *prometheus.Registry) *Set { return New(reg) },
	),
)
