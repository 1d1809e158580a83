package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DiscoveryMetrics tracks the node registry.
//
// Metrics:
//   - esproxy_discovery_live_nodes: nodes currently eligible for traffic
//   - esproxy_discovery_refresh_total: discovery cycles by result
//   - esproxy_discovery_refresh_duration_seconds: discovery cycle duration
//   - esproxy_discovery_seed_errors_total: failed seed requests by seed and reason
//   - esproxy_discovery_nodes_added_total: nodes that joined the registry
//   - esproxy_discovery_evictions_total: nodes removed from the registry by reason
type DiscoveryMetrics struct {
	liveNodes       prometheus.Gauge
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	seedErrors      *prometheus.CounterVec
	nodesAdded      prometheus.Counter
	evictions       *prometheus.CounterVec
}

// NewDiscoveryMetrics creates and registers discovery metrics with the provided registry.
func NewDiscoveryMetrics(namespace string, registry *prometheus.Registry) *DiscoveryMetrics {
	dm := &DiscoveryMetrics{
		liveNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "live_nodes",
				Help:      "Number of cluster nodes eligible for traffic",
			},
		),

		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "refresh_total",
				Help:      "Total number of discovery cycles by result",
			},
			[]string{"result"},
		),

		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "refresh_duration_seconds",
				Help:      "Duration of discovery cycles in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
		),

		seedErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "seed_errors_total",
				Help:      "Total number of failed seed requests",
			},
			[]string{"seed", "reason"},
		),

		nodesAdded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "nodes_added_total",
				Help:      "Total number of nodes added to the registry",
			},
		),

		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "evictions_total",
				Help:      "Total number of nodes evicted from the registry",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		dm.liveNodes,
		dm.refreshTotal,
		dm.refreshDuration,
		dm.seedErrors,
		dm.nodesAdded,
		dm.evictions,
	)

	return dm
}

// RecordRefresh records a discovery cycle.
func (dm *DiscoveryMetrics) RecordRefresh(result string, duration time.Duration) {
	dm.refreshTotal.WithLabelValues(result).Inc()
	dm.refreshDuration.Observe(duration.Seconds())
}
