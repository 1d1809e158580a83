package metrics

import (
	"sync"
	"time"

	"mercator-hq/esproxy/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// otherLabel replaces label values once a cardinality limit is reached.
const otherLabel = "other"

// Collector owns every Prometheus metric exported by the proxy. It registers
// on its own registry so that several proxies in one process, or in one test
// binary, never collide.
//
// A nil *Collector is valid and records nothing.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	proxyMetrics     *ProxyMetrics
	discoveryMetrics *DiscoveryMetrics

	// Node and seed addresses come from the cluster, so their label sets
	// are bounded.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a metrics collector. If registry is nil a fresh one is
// created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle("/metrics", collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		enabled:            cfg.Enabled == nil || *cfg.Enabled,
		registry:           registry,
		proxyMetrics:       NewProxyMetrics(namespace, registry),
		discoveryMetrics:   NewDiscoveryMetrics(namespace, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

func (c *Collector) active() bool {
	return c != nil && c.enabled
}

// RecordRequest records a finished client request.
//
// Parameters:
//   - method: HTTP method as received
//   - outcome: one of the Outcome* constants
//   - duration: time from receipt to the last byte written
func (c *Collector) RecordRequest(method, outcome string, duration time.Duration) {
	if !c.active() {
		return
	}
	c.proxyMetrics.RecordRequest(method, outcome, duration)
}

// RecordUpstream records the latency of an exchange with a cluster node.
func (c *Collector) RecordUpstream(node string, status int, latency time.Duration) {
	if !c.active() {
		return
	}
	c.proxyMetrics.RecordUpstream(c.boundLabel("node:", node), status, latency)
}

// RecordHookError counts a failed post-response hook.
func (c *Collector) RecordHookError() {
	if !c.active() {
		return
	}
	c.proxyMetrics.hookErrors.Inc()
}

// IncInFlight and DecInFlight track requests currently being proxied.
func (c *Collector) IncInFlight() {
	if !c.active() {
		return
	}
	c.proxyMetrics.inFlight.Inc()
}

// DecInFlight decrements the in-flight gauge.
func (c *Collector) DecInFlight() {
	if !c.active() {
		return
	}
	c.proxyMetrics.inFlight.Dec()
}

// RecordRefresh records one discovery cycle.
//
// Parameters:
//   - result: "ok" when every seed answered, "partial" when some failed,
//     "failed" when none answered
//   - duration: wall time of the cycle
//   - liveNodes: registry size after the merge
func (c *Collector) RecordRefresh(result string, duration time.Duration, liveNodes int) {
	if !c.active() {
		return
	}
	c.discoveryMetrics.RecordRefresh(result, duration)
	c.discoveryMetrics.liveNodes.Set(float64(liveNodes))
}

// RecordSeedError counts a seed that failed to answer a discovery request.
func (c *Collector) RecordSeedError(seed, reason string) {
	if !c.active() {
		return
	}
	c.discoveryMetrics.seedErrors.WithLabelValues(c.boundLabel("seed:", seed), reason).Inc()
}

// RecordNodesAdded counts nodes that joined the registry.
func (c *Collector) RecordNodesAdded(n int) {
	if !c.active() || n <= 0 {
		return
	}
	c.discoveryMetrics.nodesAdded.Add(float64(n))
}

// RecordEviction counts a node removed from the registry and updates the
// live node gauge.
func (c *Collector) RecordEviction(reason string, liveNodes int) {
	if !c.active() {
		return
	}
	c.discoveryMetrics.evictions.WithLabelValues(reason).Inc()
	c.discoveryMetrics.liveNodes.Set(float64(liveNodes))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) boundLabel(kind, value string) string {
	if !c.cardinalityLimiter.Allow(kind + value) {
		return otherLabel
	}
	return value
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations per metric.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
