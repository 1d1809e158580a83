// Package types defines the JSON payloads the proxy writes itself.
//
// Responses relayed from the cluster are passed through untouched; only
// errors raised by the proxy use these types:
//
//	{"error":"Request not supported by proxy"}
package types
