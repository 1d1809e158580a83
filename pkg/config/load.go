package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Overrides are programmatic settings applied on top of the file. Zero
// values (nil slices and maps, empty strings, nil pointers) leave the
// underlying value alone. A non-nil but empty Seeds slice is kept and
// rejected by validation.
type Overrides struct {
	Seeds        []string
	Allow        map[string][]string
	Refresh      int
	Port         *int
	Host         string
	LogLevel     string
	LogFormat    string
	AdminAddress string
	Hooks        Hooks
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Path is the configuration file. Empty means DefaultConfigPath.
	// Files ending in .yaml or .yml are read as YAML, anything else as JSON.
	Path string

	// Strict makes an unreadable or malformed file fatal. Without it such a
	// file is logged and the defaults are used.
	Strict bool

	// Overrides take precedence over the file and the environment.
	Overrides *Overrides

	// Logger receives the fallback warning. Defaults to slog.Default().
	Logger *slog.Logger
}

// FileError describes a configuration file that could not be used.
type FileError struct {
	Path string
	Err  error

	// Recoverable is true for a missing, unreadable or syntactically
	// invalid file, where falling back to the defaults is acceptable.
	// Well-formed files with wrongly typed values are never recoverable.
	Recoverable bool
}

func (e *FileError) Error() string {
	return fmt.Sprintf("configuration file %q: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Load builds the active configuration. Values are applied in order, later
// sources winning:
//
//  1. Default values
//  2. The configuration file
//  3. ESPROXY_* environment variables
//  4. Overrides
//
// The result is validated before it is returned.
func Load(opts LoadOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	path := opts.Path
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := Default()

	if err := mergeFile(cfg, path); err != nil {
		var fileErr *FileError
		if !errors.As(err, &fileErr) || !fileErr.Recoverable || opts.Strict {
			return nil, err
		}
		logger.Warn("cannot load configuration file, using defaults",
			"path", path,
			"error", fileErr.Err,
		)
	}

	applyEnvOverrides(cfg)

	if opts.Overrides != nil {
		opts.Overrides.apply(cfg)
	}

	cfg.Allow = normalizeAllow(cfg.Allow)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile reads a single file on top of the defaults without environment
// overrides or fallback. It is used by the validate command.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := mergeFile(cfg, path); err != nil {
		return nil, err
	}
	cfg.Allow = normalizeAllow(cfg.Allow)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes path over cfg. Keys missing from the file keep their
// current value; seeds and allow are replaced wholesale when present.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &FileError{Path: path, Err: err, Recoverable: true}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	layer := cfg.Clone()
	layer.Seeds = nil
	layer.Allow = nil

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, layer)
	default:
		err = decodeJSON(data, layer)
	}
	if err != nil {
		var fileErr *FileError
		if errors.As(err, &fileErr) {
			fileErr.Path = path
			return fileErr
		}
		return &FileError{Path: path, Err: err}
	}

	if layer.Seeds == nil {
		layer.Seeds = cfg.Seeds
	}
	if layer.Allow == nil {
		layer.Allow = cfg.Allow
	}
	*cfg = *layer
	return nil
}

func decodeJSON(data []byte, cfg *Config) error {
	if !json.Valid(data) {
		var probe any
		err := json.Unmarshal(data, &probe)
		return &FileError{Err: fmt.Errorf("invalid JSON: %w", err), Recoverable: true}
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return describeTypeError(err)
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &FileError{Err: fmt.Errorf("invalid YAML: %w", err), Recoverable: true}
	}
	if err := doc.Decode(cfg); err != nil {
		return describeTypeError(err)
	}
	return nil
}

// describeTypeError turns decoder type errors for the two structural keys
// into the messages operators expect.
func describeTypeError(err error) error {
	var jsonErr *json.UnmarshalTypeError
	if errors.As(err, &jsonErr) {
		switch {
		case jsonErr.Field == "seeds" || strings.HasPrefix(jsonErr.Field, "seeds."):
			return FieldError{Field: "seeds", Message: "must be a non-empty array of \"host:port\" strings"}
		case jsonErr.Field == "allow" || strings.HasPrefix(jsonErr.Field, "allow."):
			return FieldError{Field: "allow", Message: "must be an object mapping methods to arrays of patterns, not " + jsonErr.Value}
		}
	}
	var yamlErr *yaml.TypeError
	if errors.As(err, &yamlErr) {
		return fmt.Errorf("invalid configuration values: %s", strings.Join(yamlErr.Errors, "; "))
	}
	return err
}

// applyEnvOverrides applies ESPROXY_* environment variables. Values that do
// not parse are ignored.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("ESPROXY_HOST"); val != "" {
		cfg.Host = val
	}
	if val := os.Getenv("ESPROXY_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Port = i
		}
	}
	if val := os.Getenv("ESPROXY_SEEDS"); val != "" {
		var seeds []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				seeds = append(seeds, s)
			}
		}
		if len(seeds) > 0 {
			cfg.Seeds = seeds
		}
	}
	if val := os.Getenv("ESPROXY_REFRESH"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Refresh = i
		}
	}
	if val := os.Getenv("ESPROXY_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("ESPROXY_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("ESPROXY_ADMIN_ADDRESS"); val != "" {
		cfg.Admin.ListenAddress = val
	}
}

func (o *Overrides) apply(cfg *Config) {
	if o.Seeds != nil {
		cfg.Seeds = append([]string(nil), o.Seeds...)
	}
	if o.Allow != nil {
		cfg.Allow = o.Allow
	}
	if o.Refresh != 0 {
		cfg.Refresh = o.Refresh
	}
	if o.Port != nil {
		cfg.Port = *o.Port
	}
	if o.Host != "" {
		cfg.Host = o.Host
	}
	if o.LogLevel != "" {
		cfg.Telemetry.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Telemetry.Logging.Format = o.LogFormat
	}
	if o.AdminAddress != "" {
		cfg.Admin.ListenAddress = o.AdminAddress
	}
	if o.Hooks.PreRequest != nil {
		cfg.Hooks.PreRequest = o.Hooks.PreRequest
	}
	if o.Hooks.PostResponse != nil {
		cfg.Hooks.PostResponse = o.Hooks.PostResponse
	}
}

// normalizeAllow upper-cases method keys, merging "get" into "GET".
func normalizeAllow(allow map[string][]string) map[string][]string {
	if allow == nil {
		return nil
	}
	out := make(map[string][]string, len(allow))
	for method, patterns := range allow {
		key := strings.ToUpper(strings.TrimSpace(method))
		out[key] = append(out[key], patterns...)
	}
	return out
}
