package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	OutcomeProxied       = "proxied"
	OutcomeRejected      = "rejected"
	OutcomeUnavailable   = "unavailable"
	OutcomeUpstreamError = "upstream_error"
	OutcomeHookError     = "hook_error"
	OutcomeTimeout       = "timeout"
	OutcomeCanceled      = "canceled"
)

// ProxyMetrics tracks client requests and the upstream exchanges they cause.
//
// Metrics:
//   - esproxy_proxy_requests_total: requests by method and outcome
//   - esproxy_proxy_request_duration_seconds: end-to-end request duration
//   - esproxy_proxy_upstream_latency_seconds: upstream exchange latency per node
//   - esproxy_proxy_upstream_responses_total: upstream responses by node and status class
//   - esproxy_proxy_in_flight_requests: requests currently proxied
//   - esproxy_proxy_hook_errors_total: failed post-response hooks
type ProxyMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	upstreamLatency   *prometheus.HistogramVec
	upstreamResponses *prometheus.CounterVec
	inFlight          prometheus.Gauge
	hookErrors        prometheus.Counter
}

// NewProxyMetrics creates and registers proxy metrics with the provided registry.
func NewProxyMetrics(namespace string, registry *prometheus.Registry) *ProxyMetrics {
	// Search latencies range from a few milliseconds to several seconds.
	buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

	pm := &ProxyMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Total number of client requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "request_duration_seconds",
				Help:      "Duration of client requests in seconds",
				Buckets:   buckets,
			},
			[]string{"method", "outcome"},
		),

		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "upstream_latency_seconds",
				Help:      "Time until upstream response headers arrived, in seconds",
				Buckets:   buckets,
			},
			[]string{"node"},
		),

		upstreamResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "upstream_responses_total",
				Help:      "Upstream responses by node and status class",
			},
			[]string{"node", "code"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "in_flight_requests",
				Help:      "Number of requests currently being proxied",
			},
		),

		hookErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "hook_errors_total",
				Help:      "Total number of failed post-response hooks",
			},
		),
	}

	registry.MustRegister(
		pm.requestsTotal,
		pm.requestDuration,
		pm.upstreamLatency,
		pm.upstreamResponses,
		pm.inFlight,
		pm.hookErrors,
	)

	return pm
}

// RecordRequest records a finished client request.
func (pm *ProxyMetrics) RecordRequest(method, outcome string, duration time.Duration) {
	pm.requestsTotal.WithLabelValues(method, outcome).Inc()
	pm.requestDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

// RecordUpstream records an upstream exchange.
func (pm *ProxyMetrics) RecordUpstream(node string, status int, latency time.Duration) {
	pm.upstreamLatency.WithLabelValues(node).Observe(latency.Seconds())
	pm.upstreamResponses.WithLabelValues(node, statusClass(status)).Inc()
}

// statusClass maps 404 to "4xx".
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
