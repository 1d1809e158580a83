// Package proxy relays admitted client requests to live cluster nodes.
//
// # Request Flow
//
// For every inbound request the Handler:
//
//  1. Matches method and request URI against the allow rules. Rejected
//     requests get 403 and never reach a node.
//  2. Runs the pre-request hook, if any.
//  3. Takes the next upstream from the pool in round-robin order. An empty
//     pool yields 503.
//  4. Forwards the request through the upstream's connection pool, streaming
//     the request body as it arrives.
//  5. Streams the response back, flushing after every write, or buffers it
//     and hands it to the post-response hook.
//
// A transport error, or a node breaking off a response mid-stream, evicts
// the node from the registry. The client gets 502 when no response bytes
// were sent yet. Requests are never retried.
//
// # Framing
//
// Without a post-response hook the node's Content-Length is dropped and
// HTTP/1.1 clients receive a chunked response. With a hook the transformed
// body is sent with a recomputed Content-Length.
//
// # Error Bodies
//
// Every error generated by the proxy is JSON:
//
//	{"error":"Request not supported by proxy"}
//
// See package types for the messages.
//
// # Basic Usage
//
//	h, err := proxy.NewHandler(proxy.Options{
//	    Filter:  f,
//	    Pool:    registry,
//	    Hooks:   cfg.Hooks,
//	    Metrics: collector,
//	    Logger:  logger,
//	})
//	handler := middleware.Chain(h,
//	    middleware.RecoveryMiddleware(logger),
//	    middleware.RequestIDMiddleware,
//	    middleware.LoggingMiddleware(logger),
//	)
package proxy
