package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/esproxy/pkg/cli"
	"mercator-hq/esproxy/pkg/config"
	"mercator-hq/esproxy/pkg/server"
)

var runFlags struct {
	host         string
	port         int
	seeds        []string
	refresh      int
	adminAddress string
	watch        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy",
	Long: `Start the proxy with the specified configuration.

The proxy binds its listener, runs one discovery cycle against the seeds, and
then serves. Membership is refreshed every "refresh" milliseconds.

Examples:
  # Start with ./proxy.json, or the defaults when it is absent
  esproxy run

  # Start with a custom config
  esproxy run --config /etc/esproxy/proxy.json

  # Override seeds and listen port
  esproxy run --seeds es1:9200,es2:9200 --port 9000

  # Expose metrics and health probes
  esproxy run --admin 127.0.0.1:9090`,
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.host, "host", "", "override listen host")
	runCmd.Flags().IntVarP(&runFlags.port, "port", "p", 0, "override listen port")
	runCmd.Flags().StringSliceVar(&runFlags.seeds, "seeds", nil, "override seeds (host:port, comma separated)")
	runCmd.Flags().IntVar(&runFlags.refresh, "refresh", 0, "override refresh interval in milliseconds")
	runCmd.Flags().StringVar(&runFlags.adminAddress, "admin", "", "serve /metrics, /health, /ready and /nodes on this address")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", true, "warn when the config file changes")
}

func runProxy(cmd *cobra.Command, args []string) error {
	overrides := &config.Overrides{
		Seeds:        runFlags.seeds,
		Refresh:      runFlags.refresh,
		Host:         runFlags.host,
		AdminAddress: runFlags.adminAddress,
	}
	if cmd.Flags().Changed("port") {
		overrides.Port = &runFlags.port
	}

	cfg, err := loadConfig(cmd, overrides)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	srv, err := server.New(cfg,
		server.WithLogger(logger),
		server.WithVersion(versionInfo()),
	)
	if err != nil {
		return cli.WrapConfigError("", err)
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Proxy listening on %s\n", srv.Addr())
	if addr := srv.AdminAddr(); addr != "" {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Telemetry.Metrics.Path)
		fmt.Fprintf(out, "✓ Readiness endpoint: http://%s/ready\n", addr)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if runFlags.watch {
		watchConfig(ctx, logger)
	}

	var runErr error
	select {
	case <-ctx.Done():
		fmt.Fprintln(out, "\nShutting down gracefully...")
	case err := <-srv.Errors():
		logger.Error("listener failed", "error", err)
		runErr = cli.NewCommandError("run", err)
	}
	// A second signal now terminates immediately.
	stop()

	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("shutdown failed", "error", err)
		if runErr == nil {
			runErr = cli.NewCommandError("run", err)
		}
		return runErr
	}

	fmt.Fprintln(out, "✓ Proxy stopped")
	return runErr
}

// watchConfig logs a warning whenever the configuration file changes. The
// running proxy keeps its configuration until restarted.
func watchConfig(ctx context.Context, logger *slog.Logger) {
	path := configPath()
	if _, err := os.Stat(path); err != nil {
		logger.Debug("configuration file not watched", "path", path, "error", err)
		return
	}

	fw, err := config.NewFileWatcher(path, config.DefaultWatchDebounce, logger)
	if err != nil {
		logger.Warn("failed to watch configuration file", "path", path, "error", err)
		return
	}

	go func() {
		defer fw.Close()
		_ = fw.Watch(ctx, func() {
			logger.Warn("configuration file changed; restart the proxy to apply it", "path", path)
		})
	}()
}
