// Package metrics exports Prometheus metrics for the proxy.
//
// # Metrics Categories
//
//   - Proxy: client requests by method and outcome, upstream latency per
//     node, in-flight requests and hook failures
//   - Discovery: live nodes, refresh cycles, seed errors, node additions
//     and evictions
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordRequest("GET", metrics.OutcomeProxied, 12*time.Millisecond)
//	mux.Handle("/metrics", collector.Handler())
//
// Every collector owns a private registry. Node and seed labels pass through
// a CardinalityLimiter and collapse into "other" beyond 1000 distinct values.
package metrics
