// Package metrics provides Prometheus metrics for the savings-box service.
// Scrape these at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savebox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "savebox_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Benchmark rate metrics
	RateFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savebox_rate_fetches_total",
			Help: "Benchmark rate fetches by result (success, error)",
		},
		[]string{"result"},
	)

	RateCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savebox_rate_cache_hits_total",
			Help: "Rate resolutions served from a fresh cached snapshot",
		},
	)

	RateFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savebox_rate_fallbacks_total",
			Help: "Rate resolutions served by a fallback (stale, constant)",
		},
		[]string{"kind"},
	)

	RateAnnualPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "savebox_rate_annual_percent",
			Help: "Last successfully fetched annualized benchmark rate",
		},
	)

	// Yield metrics
	YieldAccrualsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savebox_yield_accruals_total",
			Help: "Accruals that produced a yield ledger entry",
		},
	)

	YieldAccruedValueTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savebox_yield_accrued_value_total",
			Help: "Sum of yield credited to boxes",
		},
	)

	// Box metrics
	BoxMovementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "savebox_box_movements_total",
			Help: "Deposits and withdrawals applied to boxes",
		},
		[]string{"type"},
	)

	BoxSaveConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "savebox_box_save_conflicts_total",
			Help: "Optimistic concurrency conflicts when saving a box",
		},
	)
)
