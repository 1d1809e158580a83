// Package discovery maintains the set of live cluster nodes behind the
// proxy.
//
// # Refresh
//
// Registry.Refresh asks every seed for the cluster's node list at the same
// time and waits for all of them. Answers are folded in seed order: the first
// one pins the cluster name and answers naming another cluster are ignored.
// The result replaces the live set in one step. Nodes that disappeared are
// dropped and their connections closed; nodes that stayed keep theirs.
//
// A seed that cannot be reached, answers with an error status or returns a
// malformed document contributes nothing to that cycle. A node whose address
// cannot be parsed is skipped.
//
// # Selection
//
// Acquire walks the live nodes in id order, one step per call, wrapping at
// the end. A node's Upstream (its connection pool and request handler) is
// created on first selection. When a proxied request fails at the transport
// level the caller evicts the node with Upstream.Evict; it stays out until a
// later refresh reports it again.
//
// # Scheduling
//
// Scheduler runs Refresh on a fixed interval with robfig/cron, skipping a
// tick while the previous cycle is still running.
package discovery
