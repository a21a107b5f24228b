// Package metrics exposes the relayer's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relayer"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 90},
		},
		[]string{"method", "route"},
	)

	ChainSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "submissions_total",
			Help:      "Per-chain reverse record submissions by terminal status",
		},
		[]string{"chain", "status"},
	)

	ChainConfirmationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "confirmation_seconds",
			Help:      "Time from broadcast to receipt per chain",
			Buckets:   []float64{.5, 1, 2, 4, 8, 15, 30, 45, 60, 90, 120},
		},
		[]string{"chain"},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Fan-out broadcasts by aggregate outcome",
		},
		[]string{"outcome"},
	)

	InflightSubmissions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_submissions",
			Help:      "Chain submissions currently awaiting broadcast or inclusion",
		},
	)

	RelayerBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_eth",
			Help:      "Relayer native balance per chain",
		},
		[]string{"chain"},
	)

	RPCCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "circuit_state",
			Help:      "Circuit breaker state per chain RPC (0 closed, 1 half-open, 2 open)",
		},
		[]string{"chain"},
	)
)

// Broadcast outcomes
const (
	OutcomeAllConfirmed = "all_confirmed"
	OutcomePartial      = "partial"
	OutcomeAllFailed    = "all_failed"
)

// ObserveHTTPRequest records one finished HTTP request
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveChainSubmission records a terminal per-chain outcome
func ObserveChainSubmission(chain, status string, confirmation time.Duration) {
	ChainSubmissionsTotal.WithLabelValues(chain, status).Inc()
	if confirmation > 0 {
		ChainConfirmationSeconds.WithLabelValues(chain).Observe(confirmation.Seconds())
	}
}

// ObserveBroadcast classifies a finished fan-out by how many chains confirmed
func ObserveBroadcast(confirmed, total int) {
	switch {
	case total > 0 && confirmed == total:
		BroadcastsTotal.WithLabelValues(OutcomeAllConfirmed).Inc()
	case confirmed == 0:
		BroadcastsTotal.WithLabelValues(OutcomeAllFailed).Inc()
	default:
		BroadcastsTotal.WithLabelValues(OutcomePartial).Inc()
	}
}
