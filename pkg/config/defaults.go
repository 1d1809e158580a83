package config

import "time"

// Default values for configuration fields.
const (
	DefaultSeed    = "localhost:9200"
	DefaultRefresh = 10000 // milliseconds
	DefaultPort    = 8124
	DefaultHost    = "127.0.0.1"

	// Discovery defaults
	DefaultDiscoveryPath    = "/_cluster/nodes"
	DefaultDiscoveryTimeout = 5 * time.Second

	// Server defaults
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsNamespace = "esproxy"
	DefaultMetricsPath      = "/metrics"

	// DefaultConfigPath is read when no configuration file is named.
	DefaultConfigPath = "./proxy.json"
)

// DefaultAllow returns the built-in allow rules. They expose read-only
// search operations and CORS pre-flight requests; nothing that creates,
// deletes or modifies indices, and nothing that shuts nodes down.
func DefaultAllow() map[string][]string {
	return map[string][]string{
		"GET":     {"(_search|_status|_mapping)", "/.+/.+/.+/_mlt", "/.+/.+/.+]"},
		"POST":    {"_search", "/.+/.+/.+/_mlt"},
		"OPTIONS": {".*"}, // pre-flight requests
		"HEAD":    {".*"},
	}
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := &Config{
		Seeds:   []string{DefaultSeed},
		Allow:   DefaultAllow(),
		Refresh: DefaultRefresh,
		Port:    DefaultPort,
		Host:    DefaultHost,
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills the operational sections left at their zero value.
// The top-level proxy keys are not touched; Load starts from Default for
// those. This function is idempotent.
func ApplyDefaults(cfg *Config) {
	if cfg.Discovery.Path == "" {
		cfg.Discovery.Path = DefaultDiscoveryPath
	}
	if cfg.Discovery.Timeout == 0 {
		cfg.Discovery.Timeout = Duration(DefaultDiscoveryTimeout)
	}

	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = Duration(DefaultReadHeaderTimeout)
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = Duration(DefaultIdleTimeout)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}
