// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every join-specific metric name.
const namespace = "simjoin"

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	JoinsTotal           *prometheus.CounterVec
	JoinDuration         *prometheus.HistogramVec
	JoinStageDuration    *prometheus.HistogramVec
	JoinCandidates       prometheus.Histogram
	JoinMatches          prometheus.Histogram
	JoinRecords          *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all Prometheus metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		JoinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simjoin_joins_total",
				Help: "Total similarity joins by kind (self, inner), algorithm (prefix, brute_force) and status.",
			},
			[]string{"kind", "algorithm", "status"},
		),
		JoinDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "simjoin_join_duration_seconds",
				Help:    "End-to-end similarity join latency in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"kind", "algorithm"},
		),
		JoinStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "simjoin_stage_duration_seconds",
				Help:    "Per-stage pipeline latency in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"stage"},
		),
		JoinCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "simjoin_candidate_pairs",
				Help:    "Candidate pairs surviving the prefix, length and positional filters per join.",
				Buckets: prometheus.ExponentialBuckets(1, 10, 8),
			},
		),
		JoinMatches: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "simjoin_match_pairs",
				Help:    "Verified matching pairs per join.",
				Buckets: prometheus.ExponentialBuckets(1, 10, 8),
			},
		),
		JoinRecords: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "simjoin_input_records",
				Help:    "Records loaded per join side.",
				Buckets: prometheus.ExponentialBuckets(1, 10, 8),
			},
			[]string{"side"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "simjoin_cache_hits_total",
				Help: "Total number of join result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "simjoin_cache_misses_total",
				Help: "Total number of join result cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.JoinsTotal,
		m.JoinDuration,
		m.JoinStageDuration,
		m.JoinCandidates,
		m.JoinMatches,
		m.JoinRecords,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}
