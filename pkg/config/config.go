package config

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration of the proxy.
//
// The top-level keys (seeds, allow, refresh, port, host) form the
// configuration file format understood by every proxy release; the nested
// sections carry operational settings.
type Config struct {
	// Seeds are "host:port" addresses queried for cluster membership.
	// Default: ["localhost:9200"]
	Seeds []string `json:"seeds" yaml:"seeds"`

	// Allow maps an HTTP method to the regular expressions a request path
	// must match to be forwarded. Methods that are absent are denied.
	Allow map[string][]string `json:"allow" yaml:"allow"`

	// Refresh is the discovery interval in milliseconds.
	// Default: 10000
	Refresh int `json:"refresh" yaml:"refresh"`

	// Port is the port the proxy listens on. Zero picks a free port.
	// Default: 8124
	Port int `json:"port" yaml:"port"`

	// Host is the interface the proxy listens on.
	// Default: "127.0.0.1"
	Host string `json:"host" yaml:"host"`

	// Discovery contains settings for the node discovery requests.
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery"`

	// Server contains listener timeouts.
	Server ServerConfig `json:"server" yaml:"server"`

	// Admin contains the optional metrics and health listener.
	Admin AdminConfig `json:"admin" yaml:"admin"`

	// Telemetry contains logging and metrics settings.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Hooks are set programmatically and never read from a file.
	Hooks Hooks `json:"-" yaml:"-"`
}

// DiscoveryConfig controls how seeds are polled.
type DiscoveryConfig struct {
	// Path is the node listing endpoint requested on every seed.
	// Default: "/_cluster/nodes"
	Path string `json:"path" yaml:"path"`

	// Timeout bounds a single discovery request.
	// Default: 5s
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// ServerConfig contains settings for the proxy listener.
type ServerConfig struct {
	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10s
	ReadHeaderTimeout Duration `json:"read_header_timeout" yaml:"read_header_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout is how long Stop waits for in-flight requests.
	// Default: 30s
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// UpstreamTimeout bounds a whole proxied exchange. Zero means no limit,
	// which lets a hung upstream hold the request open.
	// Default: 0
	UpstreamTimeout Duration `json:"upstream_timeout" yaml:"upstream_timeout"`
}

// AdminConfig contains the admin listener settings.
type AdminConfig struct {
	// ListenAddress serves /metrics, /health, /ready and /nodes.
	// Empty disables the admin listener.
	ListenAddress string `json:"listen_address" yaml:"listen_address"`
}

// TelemetryConfig groups observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `json:"level" yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled toggles metric recording.
	// Default: true
	Enabled *bool `json:"enabled" yaml:"enabled"`

	// Namespace prefixes every metric name.
	// Default: "esproxy"
	Namespace string `json:"namespace" yaml:"namespace"`

	// Path is the metrics endpoint on the admin listener.
	// Default: "/metrics"
	Path string `json:"path" yaml:"path"`
}

// MetricsEnabled reports whether metrics are recorded.
func (c *Config) MetricsEnabled() bool {
	return c.Telemetry.Metrics.Enabled == nil || *c.Telemetry.Metrics.Enabled
}

// RefreshInterval returns the discovery interval as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh) * time.Millisecond
}

// ListenAddress joins Host and Port.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Clone returns a deep copy of the configuration. Hooks are shared.
func (c *Config) Clone() *Config {
	out := *c
	out.Seeds = append([]string(nil), c.Seeds...)
	if c.Allow != nil {
		out.Allow = make(map[string][]string, len(c.Allow))
		for k, v := range c.Allow {
			out.Allow[k] = append([]string(nil), v...)
		}
	}
	if c.Telemetry.Metrics.Enabled != nil {
		enabled := *c.Telemetry.Metrics.Enabled
		out.Telemetry.Metrics.Enabled = &enabled
	}
	return &out
}

// Duration is a time.Duration that reads "5s"-style strings or integer
// milliseconds from JSON and YAML.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "1m30s" or a number of milliseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := parseDuration(v)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalYAML accepts "1m30s" or a number of milliseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	parsed, err := parseDuration(v)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

func parseDuration(v any) (Duration, error) {
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", val, err)
		}
		return Duration(parsed), nil
	case float64:
		return Duration(time.Duration(val * float64(time.Millisecond))), nil
	case int:
		return Duration(time.Duration(val) * time.Millisecond), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("invalid duration value %v", v)
	}
}
