package discovery

import (
	"context"
	"testing"
	"time"

	"mercator-hq/esproxy/internal/testcluster"
	"mercator-hq/esproxy/pkg/telemetry/logging"
)

func TestNewScheduler_RejectsNonPositiveInterval(t *testing.T) {
	if _, err := NewScheduler(nil, 0, nil); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestScheduler_RefreshesPeriodically(t *testing.T) {
	node := testcluster.NewNode("sched")
	defer node.Close()
	node.SetMembers(map[string]string{"sched": testcluster.InetAddress(node.Addr())})

	r := newTestRegistry(t, []string{node.Addr()})
	s, err := NewScheduler(r, 20*time.Millisecond, logging.Discard())
	if err != nil {
		t.Fatalf("NewScheduler() error: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	if s.NextRun() == nil {
		t.Error("expected a next run while running")
	}

	testcluster.WaitForCondition(t, 2*time.Second, func() bool {
		return node.DiscoveryCount() >= 2
	}, "scheduler should refresh repeatedly")
	if r.Len() != 1 {
		t.Errorf("expected the registry to be populated, got %d nodes", r.Len())
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler should not be running after Stop")
	}

	stopped := node.DiscoveryCount()
	time.Sleep(100 * time.Millisecond)
	if got := node.DiscoveryCount(); got != stopped {
		t.Errorf("refreshes continued after Stop: %d -> %d", stopped, got)
	}

	// Stop is idempotent.
	s.Stop()
}

func TestScheduler_StopsWithContext(t *testing.T) {
	r := newTestRegistry(t, []string{"127.0.0.1:1"})
	s, err := NewScheduler(r, time.Hour, logging.Discard())
	if err != nil {
		t.Fatalf("NewScheduler() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	cancel()

	testcluster.WaitForCondition(t, time.Second, func() bool {
		return !s.IsRunning()
	}, "scheduler should stop when its context is cancelled")
}

func TestInterval_Next(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := interval(250 * time.Millisecond).Next(now); !got.Equal(now.Add(250 * time.Millisecond)) {
		t.Errorf("unexpected next time %v", got)
	}
}
