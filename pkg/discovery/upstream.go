package discovery

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Transport defaults for node connections.
const (
	DefaultMaxIdleConnsPerHost = 32
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultDialTimeout         = 10 * time.Second
)

// Upstream is the connection handle to one node. The registry owns it;
// callers borrow it for a single request and must not keep it afterwards.
type Upstream struct {
	nodeID    string
	target    *url.URL
	transport *http.Transport
	registry  *Registry

	handlerOnce sync.Once
	handler     http.Handler

	mu     sync.Mutex
	closed bool
}

func newUpstream(r *Registry, node *Node) *Upstream {
	dialer := &net.Dialer{
		Timeout:   DefaultDialTimeout,
		KeepAlive: 30 * time.Second,
	}

	return &Upstream{
		nodeID: node.ID,
		target: &url.URL{Scheme: "http", Host: net.JoinHostPort(node.Host, strconv.Itoa(node.Port))},
		transport: &http.Transport{
			DialContext:         dialer.DialContext,
			MaxIdleConns:        DefaultMaxIdleConnsPerHost,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
			// Compressed bodies are passed through untouched.
			DisableCompression: true,
		},
		registry: r,
	}
}

// NodeID returns the id of the node this upstream connects to.
func (u *Upstream) NodeID() string {
	return u.nodeID
}

// Target returns the node's base URL.
func (u *Upstream) Target() *url.URL {
	copied := *u.target
	return &copied
}

// Addr returns the node's "host:port".
func (u *Upstream) Addr() string {
	return u.target.Host
}

// Transport returns the node's connection pool.
func (u *Upstream) Transport() http.RoundTripper {
	return u.transport
}

// Handler returns the request handler bound to this upstream, creating it
// with build on first use. The handler lives as long as the upstream.
func (u *Upstream) Handler(build func(*Upstream) http.Handler) http.Handler {
	u.handlerOnce.Do(func() {
		u.handler = build(u)
	})
	return u.handler
}

// Evict removes this upstream's node from the registry. It is a no-op when
// the node has already been removed or reconnected.
func (u *Upstream) Evict() bool {
	if u.registry == nil {
		return false
	}
	return u.registry.evictUpstream(u)
}

// Close releases idle connections. Requests already in flight complete.
func (u *Upstream) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return
	}
	u.closed = true
	u.transport.CloseIdleConnections()
}

// Closed reports whether Close was called.
func (u *Upstream) Closed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}
