// Package metrics exposes the Prometheus registry used by orgrepos.
// Metrics are defined in their respective packages (client, cache, ratelimit,
// pagination) and registered via promauto; this package serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer all packages register with.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects everything registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Pagination Metrics (pkg/pagination):
//   - pagination_loads_total{outcome} (Counter): Settled page loads, success or failure
//   - pagination_retries_total (Counter): Manual retry attempts that passed the guard
//   - pagination_retry_backoff_seconds (Histogram): Backoff waited before each retry
//   - pagination_items_loaded (Gauge): Items held by the most recently updated controller
//   - pagination_stale_responses_total (Counter): Responses discarded after a reset
//
// Rate Limit Metrics (pkg/ratelimit):
//   - github_rate_limit_remaining{resource} (Gauge): Requests left in the current window
//   - github_rate_limit_blocks_total (Counter): Requests refused locally on an exhausted window
//   - github_rate_limit_throttles_total (Counter): Requests delayed on a low window
//
// Cache Metrics (pkg/cache):
//   - github_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - github_cache_misses_total (Counter): Cache misses
//   - github_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the cache
//   - github_304_responses_total (Counter): 304 Not Modified responses
//   - github_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - github_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - github_requests_total{endpoint, status} (Counter): Requests by endpoint and outcome
//   - github_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - github_errors_total{kind} (Counter): Errors by kind (validation_error, network_error, ...)
//
// Example Prometheus Queries:
//
//   # Page load failure ratio
//   sum(rate(pagination_loads_total{outcome="failure"}[5m])) /
//   sum(rate(pagination_loads_total[5m]))
//
//   # Rate limit running low
//   github_rate_limit_remaining{resource="core"} < 100
//
//   # Share of requests answered by revalidation
//   rate(github_304_responses_total[5m]) / rate(github_requests_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(github_request_duration_seconds_bucket[5m]))
