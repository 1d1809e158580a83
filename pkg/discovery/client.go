package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxDiscoveryBody bounds the size of a discovery response.
const maxDiscoveryBody = 16 << 20

// ClusterState is the decoded answer of the node discovery endpoint.
//
//	{
//	  "cluster_name": "prod",
//	  "nodes": {
//	    "Xa3b...": {"name": "es-1", "http_address": "inet[/10.0.0.1:9200]"}
//	  }
//	}
type ClusterState struct {
	ClusterName string              `json:"cluster_name"`
	Nodes       map[string]NodeInfo `json:"nodes"`
}

// NodeInfo is one entry of ClusterState.Nodes.
type NodeInfo struct {
	Name        string `json:"name"`
	HTTPAddress string `json:"http_address"`

	// HTTP is reported by the /_nodes/http endpoint of newer releases.
	HTTP *struct {
		PublishAddress string `json:"publish_address"`
	} `json:"http,omitempty"`
}

// Address returns the node's published HTTP address.
func (n NodeInfo) Address() string {
	if n.HTTPAddress != "" {
		return n.HTTPAddress
	}
	if n.HTTP != nil {
		return n.HTTP.PublishAddress
	}
	return ""
}

// Client queries seeds for cluster membership.
type Client struct {
	http *http.Client
	path string
}

// NewClient creates a discovery client requesting path on every seed. A
// zero timeout means requests are bounded only by their context.
func NewClient(path string, timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		path: path,
	}
}

// Fetch requests the node list from seed ("host:port").
func (c *Client) Fetch(ctx context.Context, seed string) (*ClusterState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+seed+c.path, nil)
	if err != nil {
		return nil, &SeedError{Seed: seed, Reason: ReasonConnect, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &SeedError{Seed: seed, Reason: ReasonConnect, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &SeedError{Seed: seed, Reason: ReasonStatus, StatusCode: resp.StatusCode}
	}

	var state ClusterState
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDiscoveryBody)).Decode(&state); err != nil {
		return nil, &SeedError{Seed: seed, Reason: ReasonDecode, Err: fmt.Errorf("failed to decode discovery response: %w", err)}
	}

	return &state, nil
}

// CloseIdleConnections releases pooled connections to seeds.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}
