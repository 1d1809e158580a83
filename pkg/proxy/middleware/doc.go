// Package middleware provides HTTP middleware wrapped around the proxy
// handler.
//
// # Middleware Chain
//
//	handler = Recovery(Logging(RequestID(Timeout(proxy))))
//
// Order (outermost to innermost):
//  1. Recovery: turn panics into a 500 JSON error
//  2. Logging: one structured record per request
//  3. RequestID: assign or accept X-Request-ID
//  4. Timeout: optional deadline for the upstream exchange
//
// Chain builds this stack from a list.
package middleware
