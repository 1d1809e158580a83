package discovery

import (
	"errors"
	"fmt"
)

// ErrNoUpstream is returned by Acquire when the registry holds no live node.
var ErrNoUpstream = errors.New("no upstream node available")

// ErrRegistryClosed is returned by Acquire after Close.
var ErrRegistryClosed = errors.New("registry closed")

// Seed error reasons, also used as metric labels.
const (
	ReasonConnect = "connect"
	ReasonStatus  = "status"
	ReasonDecode  = "decode"
	ReasonCluster = "cluster_mismatch"
)

// SeedError describes a seed that contributed no nodes to a refresh cycle.
type SeedError struct {
	// Seed is the "host:port" that was queried
	Seed string

	// Reason is one of the Reason* constants
	Reason string

	// StatusCode is the HTTP status for ReasonStatus (0 otherwise)
	StatusCode int

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *SeedError) Error() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("seed %q: unexpected status %d", e.Seed, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("seed %q: %s: %v", e.Seed, e.Reason, e.Err)
	default:
		return fmt.Sprintf("seed %q: %s", e.Seed, e.Reason)
	}
}

// Unwrap returns the underlying error for error chain support.
func (e *SeedError) Unwrap() error {
	return e.Err
}

// AddressError reports a node address that could not be parsed.
type AddressError struct {
	Address string
	Message string
}

// Error implements the error interface.
func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid node address %q: %s", e.Address, e.Message)
}
