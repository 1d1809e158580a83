// Package health provides liveness and readiness endpoints for the proxy's
// admin listener.
//
// # Endpoints
//
//   - /health: Liveness probe, 200 while the process runs
//   - /ready: Readiness probe, 503 when any registered check fails
//   - /version: Build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("nodes", health.NodeCountCheck(registry.Len, 1))
//	health.Register(mux, checker, health.VersionInfo{Version: version})
//
// Checks run concurrently, each bounded by the checker's timeout.
package health
