package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/esproxy/pkg/cli"
	"mercator-hq/esproxy/pkg/config"
	"mercator-hq/esproxy/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "esproxy",
	Short: "esproxy - reverse proxy for search clusters",
	Long: `esproxy forwards whitelisted HTTP requests to the live nodes of a search
cluster.

It polls seed nodes for cluster membership, keeps a round-robin pool of
upstream connections, and rejects any request whose method and path do not
match the configured allow rules.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (json, text)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging (same as --log-level debug)")
}

// loadConfig applies overrides and the global log flags on top of the
// configuration file. A file named with --config must be usable; the
// default path falls back to built-in defaults.
func loadConfig(cmd *cobra.Command, overrides *config.Overrides) (*config.Config, error) {
	if overrides == nil {
		overrides = &config.Overrides{}
	}
	overrides.LogLevel = logLevel
	if overrides.LogLevel == "" && verbose {
		overrides.LogLevel = "debug"
	}
	overrides.LogFormat = logFormat

	cfg, err := config.Load(config.LoadOptions{
		Path:      cfgFile,
		Strict:    cmd.Flags().Changed("config"),
		Overrides: overrides,
		Logger:    bootstrapLogger(cmd.ErrOrStderr()),
	})
	if err != nil {
		return nil, cli.WrapConfigError("", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the loaded configuration.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
		Writer: w,
	})
	if err != nil {
		return nil, cli.WrapConfigError("telemetry.logging", err)
	}
	return logger, nil
}

// bootstrapLogger reports configuration problems before the configured
// logger exists.
func bootstrapLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func configPath() string {
	if cfgFile == "" {
		return config.DefaultConfigPath
	}
	return cfgFile
}
