package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/esproxy/pkg/config"
	"mercator-hq/esproxy/pkg/discovery"
	"mercator-hq/esproxy/pkg/filter"
	"mercator-hq/esproxy/pkg/proxy"
	"mercator-hq/esproxy/pkg/proxy/middleware"
	"mercator-hq/esproxy/pkg/telemetry/health"
	"mercator-hq/esproxy/pkg/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the build information served on /version.
func WithVersion(info health.VersionInfo) Option {
	return func(s *Server) {
		s.version = info
	}
}

// WithMetricsRegistry registers metrics with reg instead of a private
// registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metricsRegistry = reg
	}
}

// Server owns the proxy listener, the node registry and its refresh
// schedule, and the optional admin listener.
type Server struct {
	cfg             *config.Config
	logger          *slog.Logger
	version         health.VersionInfo
	metricsRegistry *prometheus.Registry

	client    *discovery.Client
	registry  *discovery.Registry
	scheduler *discovery.Scheduler
	collector *metrics.Collector
	checker   *health.Checker
	handler   http.Handler

	mu          sync.Mutex
	running     bool
	stopped     bool
	listener    net.Listener
	adminLn     net.Listener
	httpServer  *http.Server
	adminServer *http.Server
	cancel      context.CancelFunc
	errCh       chan error

	// serving is read by the readiness check without taking mu, which Stop
	// holds while the admin listener drains.
	serving atomic.Bool
}

// New builds every proxy component from cfg. The allow rules are compiled
// here, so an invalid rule fails before any socket is opened.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg.Clone(),
		logger: slog.Default(),
		errCh:  make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	f, err := filter.New(s.cfg.Allow)
	if err != nil {
		return nil, fmt.Errorf("failed to compile allow rules: %w", err)
	}

	s.collector = metrics.NewCollector(&s.cfg.Telemetry.Metrics, s.metricsRegistry)
	s.client = discovery.NewClient(s.cfg.Discovery.Path, s.cfg.Discovery.Timeout.Std())

	s.registry, err = discovery.NewRegistry(discovery.Options{
		Seeds:   s.cfg.Seeds,
		Client:  s.client,
		Logger:  s.logger,
		Metrics: s.collector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create node registry: %w", err)
	}

	s.scheduler, err = discovery.NewScheduler(s.registry, s.cfg.RefreshInterval(), s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery scheduler: %w", err)
	}

	h, err := proxy.NewHandler(proxy.Options{
		Filter:  f,
		Pool:    s.registry,
		Hooks:   s.cfg.Hooks,
		Metrics: s.collector,
		Logger:  s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy handler: %w", err)
	}

	// Recovery is outermost so panics anywhere in the chain become a 500.
	s.handler = middleware.Chain(h,
		middleware.RecoveryMiddleware(s.logger),
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware(s.logger),
		middleware.TimeoutMiddleware(s.cfg.Server.UpstreamTimeout.Std()),
	)

	s.checker = health.New(s.cfg.Discovery.Timeout.Std())
	s.checker.RegisterCheck("nodes", health.NodeCountCheck(s.registry.Len, 1))
	s.checker.RegisterCheck("listener", health.FlagCheck(s.IsRunning, "proxy listener is not serving"))

	return s, nil
}

// Start binds the listeners, runs the first discovery cycle, starts the
// refresh schedule and begins serving. It returns once the proxy accepts
// connections; serve failures are reported on Errors.
//
// ctx bounds the first discovery cycle only. The refresh schedule runs
// until Stop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.New("server has been stopped")
	}
	if s.running {
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress(), err)
	}

	var adminLn net.Listener
	if s.cfg.Admin.ListenAddress != "" {
		adminLn, err = net.Listen("tcp", s.cfg.Admin.ListenAddress)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to listen on admin address %s: %w", s.cfg.Admin.ListenAddress, err)
		}
	}

	result := s.registry.Refresh(ctx)
	if result.Nodes == 0 {
		s.logger.Warn("initial discovery found no nodes; requests fail with 503 until a seed responds",
			"seeds", s.cfg.Seeds,
			"seed_errors", len(result.SeedErrors),
		)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := s.scheduler.Start(runCtx); err != nil {
		cancel()
		_ = ln.Close()
		if adminLn != nil {
			_ = adminLn.Close()
		}
		return fmt.Errorf("failed to start discovery scheduler: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout.Std(),
		IdleTimeout:       s.cfg.Server.IdleTimeout.Std(),
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	if adminLn != nil {
		s.adminServer = &http.Server{
			Handler:           s.adminHandler(),
			ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout.Std(),
			ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		}
	}

	s.listener = ln
	s.adminLn = adminLn
	s.cancel = cancel
	s.running = true
	s.serving.Store(true)

	var g errgroup.Group
	g.Go(func() error {
		return serve(s.httpServer, ln)
	})
	if adminLn != nil {
		g.Go(func() error {
			return serve(s.adminServer, adminLn)
		})
	}
	go func() {
		if err := g.Wait(); err != nil {
			s.errCh <- err
		}
	}()

	host, port := splitAddr(ln.Addr())
	s.logger.Info("proxy ready",
		"host", host,
		"port", port,
		"address", ln.Addr().String(),
		"cluster", s.registry.ClusterName(),
		"nodes", s.registry.Len(),
	)
	if adminLn != nil {
		s.logger.Info("admin listener ready", "address", adminLn.Addr().String())
	}

	return nil
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", ln.Addr(), err)
	}
	return nil
}

// Stop cancels the refresh schedule, then shuts the listeners down letting
// in-flight requests finish within server.shutdown_timeout, and finally
// closes every upstream connection pool. Stop is idempotent.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		if !s.stopped {
			s.registry.Close()
			s.stopped = true
		}
		return nil
	}

	s.logger.Info("initiating graceful shutdown", "timeout", s.cfg.Server.ShutdownTimeout.String())

	s.serving.Store(false)
	s.scheduler.Stop()
	s.cancel()

	shutdownCtx := ctx
	if timeout := s.cfg.Server.ShutdownTimeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var errs []error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during proxy shutdown", "error", err)
		errs = append(errs, fmt.Errorf("proxy shutdown: %w", err))
	}
	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("admin shutdown: %w", err))
		}
	}

	s.registry.Close()
	s.client.CloseIdleConnections()

	s.running = false
	s.stopped = true

	s.logger.Info("proxy stopped")
	return errors.Join(errs...)
}

// Errors reports a listener that stopped serving unexpectedly.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// IsRunning returns true between a successful Start and Stop.
func (s *Server) IsRunning() bool {
	return s.serving.Load()
}

// Addr returns the bound proxy address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// AdminAddr returns the bound admin address, or "" when disabled.
func (s *Server) AdminAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adminLn == nil {
		return ""
	}
	return s.adminLn.Addr().String()
}

// Registry returns the node registry.
func (s *Server) Registry() *discovery.Registry {
	return s.registry
}

// Handler returns the proxy handler with its middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// NodesResponse is the body served on /nodes.
type NodesResponse struct {
	ClusterName string                 `json:"cluster_name"`
	Seeds       []string               `json:"seeds"`
	Nodes       []discovery.NodeStatus `json:"nodes"`
	NextRefresh *time.Time             `json:"next_refresh,omitempty"`
}

func (s *Server) adminHandler() http.Handler {
	mux := http.NewServeMux()

	if s.cfg.MetricsEnabled() {
		path := s.cfg.Telemetry.Metrics.Path
		if path == "" {
			path = config.DefaultMetricsPath
		}
		mux.Handle(path, s.collector.Handler())
	}

	health.Register(mux, s.checker, s.version)

	mux.HandleFunc("/nodes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(NodesResponse{
			ClusterName: s.registry.ClusterName(),
			Seeds:       s.registry.Seeds(),
			Nodes:       s.registry.Nodes(),
			NextRefresh: s.scheduler.NextRun(),
		})
	})

	return middleware.Chain(mux, middleware.RecoveryMiddleware(s.logger))
}

func splitAddr(addr net.Addr) (string, int) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
