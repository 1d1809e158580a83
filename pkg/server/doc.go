// Package server wires the proxy together and manages its lifecycle.
//
// New compiles the allow rules, creates the discovery client, node registry
// and refresh scheduler, and wraps the proxy handler in the middleware
// chain. Start then:
//
//  1. Binds the proxy listener (and the admin listener, when configured)
//  2. Runs one discovery cycle
//  3. Starts the periodic refresh schedule
//  4. Serves, logging "proxy ready" with the bound host and port
//
// Stop reverses this: the schedule is cancelled at once, the listeners stop
// accepting connections while in-flight responses finish, and the upstream
// connection pools are closed.
//
// # Basic Usage
//
//	cfg, err := config.Load(config.LoadOptions{Path: "proxy.json"})
//	if err != nil {
//	    return err
//	}
//	srv, err := server.New(cfg, server.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Stop(context.Background())
//
// # Admin Endpoints
//
// When admin.listen_address is set, a second listener serves:
//
//   - GET /metrics - Prometheus metrics
//   - GET /health - Liveness probe (always 200)
//   - GET /ready - 200 while at least one node is live, 503 otherwise
//   - GET /version - Build information
//   - GET /nodes - Cluster name, seeds and live nodes as JSON
//
// # Middleware Chain
//
// Proxied requests pass through, outermost first:
//  1. Recovery: turns panics into a 500 JSON error
//  2. RequestID: assigns X-Request-ID
//  3. Logging: logs every completed request
//  4. Timeout: optional deadline from server.upstream_timeout
package server
