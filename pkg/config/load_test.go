package config

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func quietLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if !reflect.DeepEqual(cfg.Seeds, []string{"localhost:9200"}) {
		t.Errorf("expected default seeds, got %v", cfg.Seeds)
	}
	if cfg.Port != 8124 {
		t.Errorf("expected port 8124, got %d", cfg.Port)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %q", cfg.Host)
	}
	if cfg.RefreshInterval() != 10*time.Second {
		t.Errorf("expected refresh 10s, got %v", cfg.RefreshInterval())
	}
	if len(cfg.Allow["GET"]) != 3 || len(cfg.Allow["POST"]) != 2 {
		t.Errorf("unexpected default allow rules: %v", cfg.Allow)
	}
	if _, ok := cfg.Allow["DELETE"]; ok {
		t.Error("DELETE must not be allowed by default")
	}
	if cfg.Discovery.Path != "/_cluster/nodes" {
		t.Errorf("expected discovery path /_cluster/nodes, got %q", cfg.Discovery.Path)
	}
	if !cfg.MetricsEnabled() {
		t.Error("metrics should be enabled by default")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default configuration should be valid: %v", err)
	}
}

func TestLoad_JSONFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "proxy.json", `{
		"seeds": ["es1:9200", "es2:9201"],
		"allow": {"get": ["_search"]},
		"refresh": 2500,
		"port": 9000,
		"telemetry": {"logging": {"level": "debug"}},
		"discovery": {"timeout": "2s"}
	}`)

	cfg, err := Load(LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !reflect.DeepEqual(cfg.Seeds, []string{"es1:9200", "es2:9201"}) {
		t.Errorf("unexpected seeds %v", cfg.Seeds)
	}
	if !reflect.DeepEqual(cfg.Allow, map[string][]string{"GET": {"_search"}}) {
		t.Errorf("allow should be replaced wholesale and upper-cased, got %v", cfg.Allow)
	}
	if cfg.Refresh != 2500 || cfg.Port != 9000 {
		t.Errorf("unexpected refresh/port %d/%d", cfg.Refresh, cfg.Port)
	}
	if cfg.Host != DefaultHost {
		t.Errorf("host should keep default, got %q", cfg.Host)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Logging.Format != DefaultLoggingFormat {
		t.Errorf("format should keep default, got %q", cfg.Telemetry.Logging.Format)
	}
	if cfg.Discovery.Timeout.Std() != 2*time.Second {
		t.Errorf("expected discovery timeout 2s, got %v", cfg.Discovery.Timeout)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "proxy.yaml", `
seeds:
  - es1:9200
allow:
  GET: ["_search"]
  OPTIONS: [".*"]
host: 0.0.0.0
server:
  shutdown_timeout: 1500
`)

	cfg, err := Load(LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %q", cfg.Host)
	}
	if len(cfg.Allow) != 2 {
		t.Errorf("expected 2 allow methods, got %v", cfg.Allow)
	}
	if cfg.Server.ShutdownTimeout.Std() != 1500*time.Millisecond {
		t.Errorf("expected 1.5s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_FallbackToDefaults(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "absent.json")},
		{name: "invalid json", path: writeFile(t, "broken.json", `{"seeds": [`)},
		{name: "invalid yaml", path: writeFile(t, "broken.yaml", "seeds: [a\n  b: : :")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			cfg, err := Load(LoadOptions{Path: tt.path, Logger: quietLogger(&logs)})
			if err != nil {
				t.Fatalf("Load() should fall back to defaults, got %v", err)
			}
			if !reflect.DeepEqual(cfg.Seeds, Default().Seeds) {
				t.Errorf("expected default seeds, got %v", cfg.Seeds)
			}
			if !strings.Contains(logs.String(), "using defaults") {
				t.Errorf("expected a fallback warning, got %q", logs.String())
			}
		})
	}
}

func TestLoad_StrictRejectsUnusableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")

	_, err := Load(LoadOptions{Path: path, Strict: true})
	if err == nil {
		t.Fatal("expected error in strict mode")
	}
	var fileErr *FileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("expected *FileError, got %T", err)
	}
	if !fileErr.Recoverable {
		t.Error("a missing file should be reported as recoverable")
	}
}

func TestLoad_RejectsMalformedSeedsAndAllow(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantField string
	}{
		{name: "seeds string", content: `{"seeds": "localhost:9200"}`, wantField: "seeds"},
		{name: "seeds empty", content: `{"seeds": []}`, wantField: "seeds"},
		{name: "allow array", content: `{"allow": ["GET"]}`, wantField: "allow"},
		{name: "allow unknown method", content: `{"allow": {"PATCH": [".*"]}}`, wantField: "allow.PATCH"},
		{name: "allow bad regex", content: `{"allow": {"GET": ["(_search"]}}`, wantField: "allow.GET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "proxy.json", tt.content)
			_, err := Load(LoadOptions{Path: path})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("error %q should mention %q", err.Error(), tt.wantField)
			}
		})
	}
}

func TestLoad_OverridesBeatFile(t *testing.T) {
	path := writeFile(t, "proxy.json", `{"port": 9000, "host": "10.0.0.1", "seeds": ["file:9200"]}`)
	port := 0
	hook := func(r *http.Request) {}

	cfg, err := Load(LoadOptions{
		Path: path,
		Overrides: &Overrides{
			Port:  &port,
			Seeds: []string{"override:9200"},
			Allow: map[string][]string{"get": {".*"}},
			Hooks: Hooks{PreRequest: hook},
		},
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 0 {
		t.Errorf("expected override port 0, got %d", cfg.Port)
	}
	if cfg.Host != "10.0.0.1" {
		t.Errorf("expected file host, got %q", cfg.Host)
	}
	if !reflect.DeepEqual(cfg.Seeds, []string{"override:9200"}) {
		t.Errorf("expected override seeds, got %v", cfg.Seeds)
	}
	if _, ok := cfg.Allow["GET"]; !ok {
		t.Errorf("expected normalized override allow, got %v", cfg.Allow)
	}
	if cfg.Hooks.PreRequest == nil {
		t.Error("expected pre-request hook to be set")
	}
}

func TestLoad_OverridesEmptySeedsRejected(t *testing.T) {
	_, err := Load(LoadOptions{
		Path:      filepath.Join(t.TempDir(), "absent.json"),
		Logger:    quietLogger(&bytes.Buffer{}),
		Overrides: &Overrides{Seeds: []string{}},
	})
	if err == nil {
		t.Fatal("expected empty seeds to be rejected")
	}
	var valErr ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ESPROXY_PORT", "9100")
	t.Setenv("ESPROXY_SEEDS", "a:9200, b:9200")
	t.Setenv("ESPROXY_LOG_LEVEL", "warn")
	t.Setenv("ESPROXY_REFRESH", "not-a-number")

	cfg, err := Load(LoadOptions{
		Path:   filepath.Join(t.TempDir(), "absent.json"),
		Logger: quietLogger(&bytes.Buffer{}),
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Port)
	}
	if !reflect.DeepEqual(cfg.Seeds, []string{"a:9200", "b:9200"}) {
		t.Errorf("unexpected seeds %v", cfg.Seeds)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected warn level, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Refresh != DefaultRefresh {
		t.Errorf("unparseable refresh should be ignored, got %d", cfg.Refresh)
	}
}

func TestLoadFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("LoadFile should not fall back to defaults")
	}

	path := writeFile(t, "proxy.json", `{"seeds": ["es:9200"]}`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Seeds[0] != "es:9200" {
		t.Errorf("unexpected seeds %v", cfg.Seeds)
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()

	clone.Seeds[0] = "changed:1"
	clone.Allow["GET"][0] = "changed"

	if cfg.Seeds[0] == "changed:1" || cfg.Allow["GET"][0] == "changed" {
		t.Error("Clone should not share slices or maps with the original")
	}
}
