package config

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid defaults", mutate: func(*Config) {}},
		{name: "no seeds", mutate: func(c *Config) { c.Seeds = nil }, wantField: "seeds"},
		{name: "seed without port", mutate: func(c *Config) { c.Seeds = []string{"localhost"} }, wantField: "seeds[0]"},
		{name: "seed with bad port", mutate: func(c *Config) { c.Seeds = []string{"ok:9200", "bad:99999"} }, wantField: "seeds[1]"},
		{name: "nil allow", mutate: func(c *Config) { c.Allow = nil }, wantField: "allow"},
		{name: "empty allow is valid", mutate: func(c *Config) { c.Allow = map[string][]string{} }},
		{name: "negative port", mutate: func(c *Config) { c.Port = -1 }, wantField: "port"},
		{name: "zero refresh", mutate: func(c *Config) { c.Refresh = 0 }, wantField: "refresh"},
		{name: "empty host", mutate: func(c *Config) { c.Host = "" }, wantField: "host"},
		{name: "bad log level", mutate: func(c *Config) { c.Telemetry.Logging.Level = "loud" }, wantField: "telemetry.logging.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Telemetry.Logging.Format = "xml" }, wantField: "telemetry.logging.format"},
		{name: "relative discovery path", mutate: func(c *Config) { c.Discovery.Path = "_nodes" }, wantField: "discovery.path"},
		{name: "bad admin address", mutate: func(c *Config) { c.Admin.ListenAddress = "9090" }, wantField: "admin.listen_address"},
		{name: "negative upstream timeout", mutate: func(c *Config) { c.Server.UpstreamTimeout = Duration(-time.Second) }, wantField: "server.upstream_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for field %q", tt.wantField)
			}
			valErr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			found := false
			for _, fe := range valErr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected field %q in %v", tt.wantField, valErr.Errors)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "port", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: port: bad" {
		t.Errorf("unexpected message %q", got)
	}

	multi := ValidationError{Errors: []FieldError{
		{Field: "port", Message: "bad"},
		{Field: "host", Message: "missing"},
	}}
	got := multi.Error()
	if !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - host: missing") {
		t.Errorf("unexpected message %q", got)
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: `"1m30s"`, want: 90 * time.Second},
		{in: `250`, want: 250 * time.Millisecond},
		{in: `null`, want: 0},
		{in: `"soon"`, wantErr: true},
		{in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && d.Std() != tt.want {
				t.Errorf("got %v, want %v", d.Std(), tt.want)
			}
		})
	}
}
