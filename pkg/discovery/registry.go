package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"mercator-hq/esproxy/pkg/telemetry/metrics"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentSeeds bounds the discovery fan-out.
const maxConcurrentSeeds = 16

// Node is one cluster member known to the registry.
type Node struct {
	ID   string
	Name string
	Host string
	Port int

	upstream *Upstream
}

// Addr returns the node's "host:port".
func (n *Node) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// NodeStatus is a point-in-time view of a registry entry.
type NodeStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
}

// RefreshResult summarizes one discovery cycle.
type RefreshResult struct {
	// ClusterName is the pinned cluster name after the cycle
	ClusterName string

	// Nodes is the live node count after the merge
	Nodes int

	// Added and Removed list node ids changed by the merge, sorted
	Added   []string
	Removed []string

	// SeedErrors holds one *SeedError per seed that contributed nothing
	SeedErrors []error

	// Duration is the wall time of the cycle
	Duration time.Duration
}

// Result classifies the cycle as "ok", "partial" or "failed".
func (r RefreshResult) Result(seeds int) string {
	switch {
	case len(r.SeedErrors) == 0:
		return "ok"
	case len(r.SeedErrors) < seeds:
		return "partial"
	default:
		return "failed"
	}
}

// Options configures a Registry.
type Options struct {
	// Seeds are "host:port" addresses queried on every refresh.
	Seeds []string

	// Client performs discovery requests. Required.
	Client *Client

	// Logger receives discovery events. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records refresh and eviction metrics. May be nil.
	Metrics *metrics.Collector

	// OnRefresh is called once after every merge.
	OnRefresh func(RefreshResult)
}

// Registry tracks the live node set of one cluster and hands out upstreams
// round-robin.
//
// A single mutex guards the node map, the selection order, the cursor and
// the cluster name, so a merge is never observed half-applied by Acquire.
type Registry struct {
	seeds     []string
	client    *Client
	logger    *slog.Logger
	metrics   *metrics.Collector
	onRefresh func(RefreshResult)

	// refreshMu serializes discovery cycles.
	refreshMu sync.Mutex

	mu          sync.Mutex
	nodes       map[string]*Node
	order       []string
	cursor      int
	clusterName string
	pinned      bool
	closed      bool
}

// NewRegistry creates an empty registry. Call Refresh to populate it.
func NewRegistry(opts Options) (*Registry, error) {
	if len(opts.Seeds) == 0 {
		return nil, errors.New("at least one seed is required")
	}
	if opts.Client == nil {
		return nil, errors.New("discovery client is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		seeds:     append([]string(nil), opts.Seeds...),
		client:    opts.Client,
		logger:    logger.With("component", "discovery.registry"),
		metrics:   opts.Metrics,
		onRefresh: opts.OnRefresh,
		nodes:     make(map[string]*Node),
	}, nil
}

type seedResult struct {
	state *ClusterState
	err   error
}

// Refresh queries every seed concurrently, waits for all of them, and
// replaces the live node set with the nodes they reported.
//
// Responses are folded in seed order. The first successful response pins
// the cluster name if none is pinned yet, even when that name is empty;
// responses naming another cluster are dropped whole. A cycle whose ctx is
// done before every seed answered leaves the live set untouched. Nodes missing from the new set are removed and their
// upstreams closed, new nodes are added without an upstream, and nodes
// present in both keep their upstream.
func (r *Registry) Refresh(ctx context.Context) RefreshResult {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	start := time.Now()

	results := make([]seedResult, len(r.seeds))
	var g errgroup.Group
	g.SetLimit(maxConcurrentSeeds)
	for i, seed := range r.seeds {
		i, seed := i, seed
		g.Go(func() error {
			state, err := r.client.Fetch(ctx, seed)
			results[i] = seedResult{state: state, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		abandoned := RefreshResult{
			ClusterName: r.ClusterName(),
			Nodes:       r.Len(),
			Duration:    time.Since(start),
		}
		for _, res := range results {
			if res.err != nil {
				abandoned.SeedErrors = append(abandoned.SeedErrors, res.err)
			}
		}
		r.logger.DebugContext(ctx, "discovery cycle abandoned",
			"error", err,
			"nodes", abandoned.Nodes,
		)
		return abandoned
	}

	r.mu.Lock()
	pinned, isPinned := r.clusterName, r.pinned
	r.mu.Unlock()

	var result RefreshResult
	scratch := make(map[string]*Node)

	for i, seed := range r.seeds {
		res := results[i]
		if res.err != nil {
			result.SeedErrors = append(result.SeedErrors, res.err)
			r.recordSeedError(seed, res.err)
			continue
		}

		if !isPinned {
			pinned, isPinned = res.state.ClusterName, true
		} else if res.state.ClusterName != pinned {
			err := &SeedError{
				Seed:   seed,
				Reason: ReasonCluster,
				Err:    fmt.Errorf("reported cluster %q, expected %q", res.state.ClusterName, pinned),
			}
			result.SeedErrors = append(result.SeedErrors, err)
			r.recordSeedError(seed, err)
			continue
		}

		host := seedHost(seed)
		for id, info := range res.state.Nodes {
			if _, seen := scratch[id]; seen {
				continue
			}
			nodeHost, port, err := ParseAddress(info.Address(), host)
			if err != nil {
				r.logger.DebugContext(ctx, "skipping node with unparseable address",
					"seed", seed,
					"node_id", id,
					"error", err,
				)
				continue
			}
			scratch[id] = &Node{ID: id, Name: info.Name, Host: nodeHost, Port: port}
		}
	}

	result.Added, result.Removed = r.merge(pinned, isPinned, scratch)
	result.ClusterName = pinned
	result.Nodes = r.Len()
	result.Duration = time.Since(start)

	if r.metrics != nil {
		r.metrics.RecordRefresh(result.Result(len(r.seeds)), result.Duration, result.Nodes)
		r.metrics.RecordNodesAdded(len(result.Added))
	}

	level := slog.LevelDebug
	if len(result.Added) > 0 || len(result.Removed) > 0 || len(result.SeedErrors) > 0 {
		level = slog.LevelInfo
	}
	r.logger.Log(ctx, level, "discovery cycle completed",
		"cluster_name", result.ClusterName,
		"nodes", result.Nodes,
		"added", len(result.Added),
		"removed", len(result.Removed),
		"seed_errors", len(result.SeedErrors),
		"duration_ms", result.Duration.Milliseconds(),
	)

	if r.onRefresh != nil {
		r.onRefresh(result)
	}

	return result
}

// merge applies the set difference between the live nodes and scratch in a
// single critical section.
func (r *Registry) merge(clusterName string, pin bool, scratch map[string]*Node) (added, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, nil
	}

	if pin && !r.pinned {
		r.clusterName, r.pinned = clusterName, true
	}

	for id, old := range r.nodes {
		fresh, ok := scratch[id]
		if ok && fresh.Addr() == old.Addr() {
			// Keep the existing entry and its upstream.
			old.Name = fresh.Name
			continue
		}
		if old.upstream != nil {
			old.upstream.Close()
		}
		delete(r.nodes, id)
		removed = append(removed, id)
	}

	for id, fresh := range scratch {
		if _, ok := r.nodes[id]; ok {
			continue
		}
		r.nodes[id] = fresh
		added = append(added, id)
	}

	r.rebuildOrder()
	sort.Strings(added)
	sort.Strings(removed)

	if len(removed) > 0 && r.metrics != nil {
		for range removed {
			r.metrics.RecordEviction("refresh", len(r.order))
		}
	}

	return added, removed
}

// rebuildOrder must be called with mu held. The cursor keeps pointing at
// the node that was next, or at its successor in id order when that node is
// gone.
func (r *Registry) rebuildOrder() {
	next := ""
	if r.cursor < len(r.order) {
		next = r.order[r.cursor]
	}

	r.order = r.order[:0]
	for id := range r.nodes {
		r.order = append(r.order, id)
	}
	sort.Strings(r.order)

	r.cursor = sort.SearchStrings(r.order, next)
	if r.cursor >= len(r.order) {
		r.cursor = 0
	}
}

// Acquire returns the upstream of the next node in round-robin order,
// creating it on first use. It returns ErrNoUpstream when no node is live.
func (r *Registry) Acquire() (*Upstream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if len(r.order) == 0 {
		return nil, ErrNoUpstream
	}

	idx := r.cursor % len(r.order)
	r.cursor = (idx + 1) % len(r.order)

	node := r.nodes[r.order[idx]]
	if node.upstream == nil {
		node.upstream = newUpstream(r, node)
	}
	return node.upstream, nil
}

// Evict removes a node immediately and closes its upstream. It reports
// whether the node was present.
func (r *Registry) Evict(nodeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[nodeID]
	if !ok {
		return false
	}
	r.removeLocked(node, "evicted")
	return true
}

// evictUpstream removes u's node only while u is still its upstream.
func (r *Registry) evictUpstream(u *Upstream) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[u.nodeID]
	if !ok || node.upstream != u {
		return false
	}
	r.removeLocked(node, "upstream_error")
	return true
}

// removeLocked must be called with mu held.
func (r *Registry) removeLocked(node *Node, reason string) {
	if node.upstream != nil {
		node.upstream.Close()
	}
	delete(r.nodes, node.ID)
	r.rebuildOrder()

	r.logger.Warn("node evicted",
		"node_id", node.ID,
		"node", node.Addr(),
		"reason", reason,
		"live_nodes", len(r.order),
	)
	if r.metrics != nil {
		r.metrics.RecordEviction(reason, len(r.order))
	}
}

// Len returns the number of live nodes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// ClusterName returns the pinned cluster name. It is "" before the first
// successful discovery and when the pinned cluster reported no name.
func (r *Registry) ClusterName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clusterName
}

// Seeds returns the configured seeds.
func (r *Registry) Seeds() []string {
	return append([]string(nil), r.seeds...)
}

// Nodes returns a snapshot of the live nodes sorted by id.
func (r *Registry) Nodes() []NodeStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]NodeStatus, 0, len(r.order))
	for _, id := range r.order {
		node := r.nodes[id]
		out = append(out, NodeStatus{
			ID:        node.ID,
			Name:      node.Name,
			Address:   node.Addr(),
			Connected: node.upstream != nil,
		})
	}
	return out
}

// Close empties the registry and closes every upstream. Acquire fails
// afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for id, node := range r.nodes {
		if node.upstream != nil {
			node.upstream.Close()
		}
		delete(r.nodes, id)
	}
	r.order = nil
	r.cursor = 0
	r.client.CloseIdleConnections()
}

func (r *Registry) recordSeedError(seed string, err error) {
	reason := ReasonConnect
	var seedErr *SeedError
	if errors.As(err, &seedErr) {
		reason = seedErr.Reason
	}

	r.logger.Warn("seed contributed no nodes",
		"seed", seed,
		"reason", reason,
		"error", err,
	)
	if r.metrics != nil {
		r.metrics.RecordSeedError(seed, reason)
	}
}
