package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"mercator-hq/esproxy/pkg/filter"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "allow.GET").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the configuration and returns a ValidationError listing
// every problem found, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateSeeds(cfg.Seeds)...)
	errs = append(errs, validateAllow(cfg.Allow)...)
	errs = append(errs, validateListener(cfg)...)
	errs = append(errs, validateDiscovery(&cfg.Discovery)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateSeeds(seeds []string) []FieldError {
	if len(seeds) == 0 {
		return []FieldError{{
			Field:   "seeds",
			Message: "must be a non-empty array of \"host:port\" strings",
		}}
	}

	var errs []FieldError
	for i, seed := range seeds {
		host, port, err := net.SplitHostPort(seed)
		if err != nil || host == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("seeds[%d]", i),
				Message: fmt.Sprintf("%q is not a host:port address", seed),
			})
			continue
		}
		if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("seeds[%d]", i),
				Message: fmt.Sprintf("%q has an invalid port", seed),
			})
		}
	}
	return errs
}

func validateAllow(allow map[string][]string) []FieldError {
	if allow == nil {
		return []FieldError{{
			Field:   "allow",
			Message: "must be an object mapping methods to arrays of patterns",
		}}
	}

	var errs []FieldError
	if _, err := filter.New(allow); err != nil {
		var ruleErr *filter.RuleError
		if errors.As(err, &ruleErr) {
			msg := ruleErr.Err.Error()
			if ruleErr.Pattern != "" {
				msg = fmt.Sprintf("invalid pattern %q: %v", ruleErr.Pattern, ruleErr.Err)
			} else if errors.Is(err, filter.ErrUnsupportedMethod) {
				msg = "method must be one of GET, POST, PUT, DELETE, HEAD, OPTIONS"
			}
			errs = append(errs, FieldError{Field: "allow." + ruleErr.Method, Message: msg})
		} else {
			errs = append(errs, FieldError{Field: "allow", Message: err.Error()})
		}
	}
	return errs
}

func validateListener(cfg *Config) []FieldError {
	var errs []FieldError

	if cfg.Host == "" {
		errs = append(errs, FieldError{Field: "host", Message: "listen host is required"})
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, FieldError{Field: "port", Message: "must be between 0 and 65535"})
	}
	if cfg.Refresh <= 0 {
		errs = append(errs, FieldError{Field: "refresh", Message: "must be a positive number of milliseconds"})
	}
	if cfg.Server.ReadHeaderTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_header_timeout", Message: "must not be negative"})
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "must not be negative"})
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must not be negative"})
	}
	if cfg.Server.UpstreamTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.upstream_timeout", Message: "must not be negative"})
	}
	if addr := cfg.Admin.ListenAddress; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, FieldError{Field: "admin.listen_address", Message: fmt.Sprintf("%q is not a host:port address", addr)})
		}
	}
	return errs
}

func validateDiscovery(cfg *DiscoveryConfig) []FieldError {
	var errs []FieldError
	if !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, FieldError{Field: "discovery.path", Message: "must start with /"})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "discovery.timeout", Message: "must not be negative"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q (use debug, info, warn or error)", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (use json or text)", cfg.Logging.Format),
		})
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	return errs
}
