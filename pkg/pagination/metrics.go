package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoadsTotal counts settled page loads by outcome ("success", "failure").
	LoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagination_loads_total",
			Help: "Total number of page loads by outcome",
		},
		[]string{"outcome"},
	)

	// RetriesTotal counts retry attempts that passed the guard.
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagination_retries_total",
			Help: "Total number of manual retry attempts",
		},
	)

	// RetryBackoffSeconds observes the backoff waited before each retry.
	RetryBackoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagination_retry_backoff_seconds",
			Help:    "Backoff duration before retry attempts",
			Buckets: []float64{1, 2, 4, 8, 10},
		},
	)

	// ItemsLoaded reports the number of items held by the most recently updated controller.
	ItemsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagination_items_loaded",
			Help: "Number of items accumulated by the pagination controller",
		},
	)

	// StaleResponsesTotal counts responses discarded because Reset ran while they were in flight.
	StaleResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagination_stale_responses_total",
			Help: "Total number of page responses discarded after a reset",
		},
	)
)
