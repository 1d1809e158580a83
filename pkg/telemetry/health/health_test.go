package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{name: "default timeout", timeout: 0, want: 5 * time.Second},
		{name: "custom timeout", timeout: time.Second, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.want {
				t.Errorf("expected timeout %v, got %v", tt.want, checker.checkTimeout)
			}
		})
	}
}

func TestRegisterAndListChecks(t *testing.T) {
	checker := New(time.Second)
	ok := func(ctx context.Context) error { return nil }

	checker.RegisterCheck("nodes", ok)
	checker.RegisterCheck("listener", ok)
	checker.RegisterCheck("nodes", ok)

	if got := checker.ListChecks(); !reflect.DeepEqual(got, []string{"listener", "nodes"}) {
		t.Errorf("unexpected checks %v", got)
	}

	checker.UnregisterCheck("listener")
	if got := checker.ListChecks(); !reflect.DeepEqual(got, []string{"nodes"}) {
		t.Errorf("unexpected checks after unregister %v", got)
	}
}

func TestCheckLiveness(t *testing.T) {
	status := New(0).CheckLiveness(context.Background())
	if status.Status != StatusOK {
		t.Errorf("expected ok, got %q", status.Status)
	}
	if status.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{name: "no checks", checks: nil, want: StatusReady},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"a": func(ctx context.Context) error { return nil },
				"b": func(ctx context.Context) error { return nil },
			},
			want: StatusReady,
		},
		{
			name: "one unhealthy",
			checks: map[string]CheckFunc{
				"a": func(ctx context.Context) error { return nil },
				"b": func(ctx context.Context) error { return errors.New("down") },
			},
			want: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.want {
				t.Errorf("expected %q, got %q", tt.want, status.Status)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("expected %d results, got %d", len(tt.checks), len(status.Checks))
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	if status.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %q", status.Status)
	}
	if msg := status.Checks["slow"].Message; msg != ErrCheckTimeout.Error() {
		t.Errorf("expected timeout message, got %q", msg)
	}
}

func TestNodeCountCheck(t *testing.T) {
	count := 0
	check := NodeCountCheck(func() int { return count }, 1)

	if err := check(context.Background()); err == nil {
		t.Error("expected error with zero nodes")
	}
	count = 2
	if err := check(context.Background()); err != nil {
		t.Errorf("expected no error with two nodes, got %v", err)
	}
}

func TestFlagCheck(t *testing.T) {
	started := false
	check := FlagCheck(func() bool { return started }, "listener not started")

	if err := check(context.Background()); err == nil || err.Error() != "listener not started" {
		t.Errorf("expected listener error, got %v", err)
	}
	started = true
	if err := check(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestReadinessHandler(t *testing.T) {
	count := 0
	checker := New(time.Second)
	checker.RegisterCheck("nodes", NodeCountCheck(func() int { return count }, 1))
	handler := checker.ReadinessHandler()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with no nodes, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if status.Checks["nodes"].Status != StatusUnhealthy {
		t.Errorf("expected nodes check to be unhealthy, got %+v", status.Checks["nodes"])
	}

	count = 1
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with a live node, got %d", rec.Code)
	}
}

func TestHandlers_Methods(t *testing.T) {
	checker := New(time.Second)
	handlers := map[string]http.HandlerFunc{
		"liveness":  checker.LivenessHandler(),
		"readiness": checker.ReadinessHandler(),
		"version":   VersionHandler("1.0.0", "abc", "today"),
	}

	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("expected 405 for POST, got %d", rec.Code)
			}

			rec = httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodHead, "/", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200 for HEAD, got %d", rec.Code)
			}
			if rec.Body.Len() != 0 {
				t.Errorf("HEAD should have no body, got %q", rec.Body.String())
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3", "abc123", "2026-01-01")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("unexpected version info %+v", info)
	}
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, New(time.Second), VersionInfo{Version: "dev"})

	for _, path := range []string{"/health", "/ready", "/version"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}
