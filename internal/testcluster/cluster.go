// Package testcluster provides fake search cluster nodes for tests.
//
// Each Node is an httptest server that answers the node discovery endpoint
// with a configurable membership list and every other path with a JSON echo
// of the request. A Cluster wires several nodes that all report each other.
package testcluster

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"
)

// DiscoveryPath is the node listing endpoint served by every fake node.
const DiscoveryPath = "/_cluster/nodes"

// DefaultClusterName is reported unless SetClusterName is called.
const DefaultClusterName = "test-cluster"

// Echo is the body written by a node's default handler.
type Echo struct {
	Node   string `json:"node"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  string `json:"query,omitempty"`
	Body   string `json:"body,omitempty"`
}

// Node is a fake cluster node.
type Node struct {
	Name string

	server *httptest.Server

	mu              sync.Mutex
	clusterName     string
	members         map[string]string
	rawDiscovery    *rawResponse
	handler         http.Handler
	requestCount    int
	discoveryCount  int
	lastRequestHead http.Header
}

type rawResponse struct {
	status int
	body   string
}

// NewNode starts a fake node that initially reports no members.
func NewNode(name string) *Node {
	n := &Node{
		Name:        name,
		clusterName: DefaultClusterName,
		members:     make(map[string]string),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	return n
}

// URL returns the node's base URL.
func (n *Node) URL() string {
	return n.server.URL
}

// Addr returns the node's "host:port".
func (n *Node) Addr() string {
	return n.server.Listener.Addr().String()
}

// Port returns the node's port.
func (n *Node) Port() int {
	return n.server.Listener.Addr().(*net.TCPAddr).Port
}

// Close shuts the node down. Connections still open are closed as well,
// which makes proxied requests against the node fail.
func (n *Node) Close() {
	n.server.CloseClientConnections()
	n.server.Close()
}

// SetClusterName changes the reported cluster name.
func (n *Node) SetClusterName(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clusterName = name
}

// SetMembers replaces the reported nodes, keyed by node id, with their
// http_address values.
func (n *Node) SetMembers(members map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.members = make(map[string]string, len(members))
	for id, addr := range members {
		n.members[id] = addr
	}
}

// SetDiscoveryResponse makes the discovery endpoint return status and body
// verbatim. Used to simulate malformed answers.
func (n *Node) SetDiscoveryResponse(status int, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rawDiscovery = &rawResponse{status: status, body: body}
}

// SetHandler replaces the default echo handler for non-discovery paths.
func (n *Node) SetHandler(h http.Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = h
}

// RequestCount returns the number of non-discovery requests served.
func (n *Node) RequestCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requestCount
}

// DiscoveryCount returns the number of discovery requests served.
func (n *Node) DiscoveryCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.discoveryCount
}

// LastHeader returns the headers of the last proxied request.
func (n *Node) LastHeader() http.Header {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastRequestHead.Clone()
}

func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == DiscoveryPath {
		n.serveDiscovery(w)
		return
	}

	n.mu.Lock()
	n.requestCount++
	n.lastRequestHead = r.Header.Clone()
	handler := n.handler
	n.mu.Unlock()

	if handler != nil {
		handler.ServeHTTP(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Echo{
		Node:   n.Name,
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   string(body),
	})
}

func (n *Node) serveDiscovery(w http.ResponseWriter) {
	n.mu.Lock()
	n.discoveryCount++
	raw := n.rawDiscovery
	resp := DiscoveryResponse(n.clusterName, n.members)
	n.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if raw != nil {
		w.WriteHeader(raw.status)
		_, _ = io.WriteString(w, raw.body)
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// DiscoveryResponse builds a discovery document.
func DiscoveryResponse(clusterName string, members map[string]string) map[string]any {
	nodes := make(map[string]any, len(members))
	for id, addr := range members {
		nodes[id] = map[string]string{
			"name":         id,
			"http_address": addr,
		}
	}
	return map[string]any{
		"cluster_name": clusterName,
		"nodes":        nodes,
	}
}

// InetAddress formats "host:port" the way cluster nodes publish it.
func InetAddress(addr string) string {
	return fmt.Sprintf("inet[/%s]", addr)
}

// Cluster is a set of fake nodes that report each other as members.
type Cluster struct {
	Name  string
	Nodes []*Node
}

// NewCluster starts size nodes named "<name>-<i>". Every node reports every
// node under its name as id.
func NewCluster(name string, size int) *Cluster {
	c := &Cluster{Name: name}
	for i := 0; i < size; i++ {
		node := NewNode(fmt.Sprintf("%s-%d", name, i))
		node.SetClusterName(name)
		c.Nodes = append(c.Nodes, node)
	}
	c.Announce()
	return c
}

// Announce rewrites every node's membership list to the current node set.
func (c *Cluster) Announce() {
	members := c.Members()
	for _, node := range c.Nodes {
		node.SetMembers(members)
	}
}

// Members returns node id to http_address for every node.
func (c *Cluster) Members() map[string]string {
	members := make(map[string]string, len(c.Nodes))
	for _, node := range c.Nodes {
		members[node.Name] = InetAddress(node.Addr())
	}
	return members
}

// Seeds returns every node address, in node order.
func (c *Cluster) Seeds() []string {
	seeds := make([]string, len(c.Nodes))
	for i, node := range c.Nodes {
		seeds[i] = node.Addr()
	}
	return seeds
}

// Names returns the node names, sorted.
func (c *Cluster) Names() []string {
	names := make([]string, len(c.Nodes))
	for i, node := range c.Nodes {
		names[i] = node.Name
	}
	sort.Strings(names)
	return names
}

// Node returns the node with the given name, or nil.
func (c *Cluster) Node(name string) *Node {
	for _, node := range c.Nodes {
		if node.Name == name {
			return node
		}
	}
	return nil
}

// Close shuts every node down.
func (c *Cluster) Close() {
	for _, node := range c.Nodes {
		node.Close()
	}
}

// WaitForCondition polls condition until it returns true or timeout elapses.
func WaitForCondition(t testing.TB, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, message)
}
