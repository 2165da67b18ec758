// Package metrics exposes the process's Prometheus instruments. Everything
// is registered once at startup and shared by injection, never by globals.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActiveMatches prometheus.Gauge
	QueueDepth    *prometheus.GaugeVec
	MatchesTotal  *prometheus.CounterVec
	RedealsTotal  prometheus.Counter
	SolveTime     prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveMatches: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arena_active_matches",
			Help: "Matches currently in progress.",
		}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_queue_depth",
			Help: "Players waiting in a matchmaking pool.",
		}, []string{"pool"}),
		MatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_matches_total",
			Help: "Completed matches by mode and end reason.",
		}, []string{"mode", "reason"}),
		RedealsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "arena_redeals_total",
			Help: "Hands thrown back for having no solution.",
		}),
		SolveTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_solve_seconds",
			Help:    "Time from deal to a correct submission.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}
