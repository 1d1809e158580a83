// esproxy is a reverse proxy for search clusters.
//
// It discovers the cluster's nodes from a list of seeds, forwards requests
// whose method and path match the configured allow rules, and spreads them
// round-robin over the live nodes.
//
// Usage:
//
//	# Start with ./proxy.json, or the defaults when it is absent
//	esproxy run
//
//	# Start with a custom configuration file
//	esproxy run --config /etc/esproxy/proxy.json
//
//	# Check a configuration file
//	esproxy validate --config proxy.json
//
//	# Run one discovery cycle and list the nodes
//	esproxy nodes --seeds es1:9200 --output json
//
//	# Show version information
//	esproxy version
package main

func main() {
	Execute()
}
