// Package telemetry groups the proxy's observability packages.
//
//   - logging: structured slog loggers carrying request IDs
//   - metrics: Prometheus collectors for proxying and discovery
//   - health: liveness and readiness endpoints
package telemetry
