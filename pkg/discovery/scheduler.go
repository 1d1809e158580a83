package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// interval is a cron.Schedule firing every d. Unlike "@every" it keeps
// sub-second precision.
type interval time.Duration

// Next implements cron.Schedule.
func (i interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}

// Scheduler runs registry refreshes periodically. A tick is skipped while
// the previous cycle is still running.
type Scheduler struct {
	registry *Registry
	every    time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a scheduler refreshing registry every interval.
func NewScheduler(registry *Registry, every time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if every <= 0 {
		return nil, errors.New("refresh interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		registry: registry,
		every:    every,
		logger:   logger.With("component", "discovery.scheduler"),
	}, nil
}

// Start begins periodic refreshes. The first one runs one interval from
// now; callers wanting an immediate cycle call Registry.Refresh first.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}

	jobCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{logger: s.logger}

	s.cron = cron.New(cron.WithLogger(logger), cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))
	s.cron.Schedule(interval(s.every), cron.FuncJob(func() {
		if jobCtx.Err() != nil {
			return
		}
		s.registry.Refresh(jobCtx)
	}))
	s.cron.Start()
	s.cancel = cancel
	s.running = true

	s.logger.Info("discovery scheduler started", "interval", s.every.String())

	// Stop when the parent context is cancelled.
	go func() {
		<-jobCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop cancels the schedule immediately. A cycle in progress is cancelled
// and Stop waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	<-s.cron.Stop().Done()

	s.logger.Info("discovery scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled refresh, or nil when stopped.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
