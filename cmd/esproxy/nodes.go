package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/esproxy/pkg/cli"
	"mercator-hq/esproxy/pkg/config"
	"mercator-hq/esproxy/pkg/discovery"
)

var nodesFlags struct {
	seeds   []string
	format  string
	timeout time.Duration
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Run one discovery cycle and list the nodes",
	Long: `Query every seed once, the way the proxy does on each refresh, and print
the nodes it would route to.

Examples:
  # Use the seeds from ./proxy.json
  esproxy nodes

  # Query specific seeds and print CSV
  esproxy nodes --seeds es1:9200,es2:9200 --output csv`,
	RunE: listNodes,
}

func init() {
	rootCmd.AddCommand(nodesCmd)

	nodesCmd.Flags().StringSliceVar(&nodesFlags.seeds, "seeds", nil, "override seeds (host:port, comma separated)")
	nodesCmd.Flags().StringVarP(&nodesFlags.format, "output", "o", "text", "output format: text, json, csv")
	nodesCmd.Flags().DurationVar(&nodesFlags.timeout, "timeout", 10*time.Second, "overall discovery timeout")
}

// nodesResult is the outcome of one discovery cycle.
type nodesResult struct {
	ClusterName string                 `json:"cluster_name"`
	Nodes       []discovery.NodeStatus `json:"nodes"`
	SeedErrors  []string               `json:"seed_errors,omitempty"`
	DurationMS  int64                  `json:"duration_ms"`
}

func (r nodesResult) Header() []string {
	return []string{"ID", "NAME", "ADDRESS", "CLUSTER"}
}

func (r nodesResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		rows = append(rows, []string{n.ID, n.Name, n.Address, r.ClusterName})
	}
	return rows
}

func listNodes(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(nodesFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, &config.Overrides{Seeds: nodesFlags.seeds})
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	client := discovery.NewClient(cfg.Discovery.Path, cfg.Discovery.Timeout.Std())
	defer client.CloseIdleConnections()

	registry, err := discovery.NewRegistry(discovery.Options{
		Seeds:  cfg.Seeds,
		Client: client,
		Logger: logger,
	})
	if err != nil {
		return cli.WrapConfigError("seeds", err)
	}
	defer registry.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), nodesFlags.timeout)
	defer cancel()

	refresh := registry.Refresh(ctx)

	result := nodesResult{
		ClusterName: refresh.ClusterName,
		Nodes:       registry.Nodes(),
		DurationMS:  refresh.Duration.Milliseconds(),
	}
	for _, seedErr := range refresh.SeedErrors {
		result.SeedErrors = append(result.SeedErrors, seedErr.Error())
		if format != cli.FormatJSON {
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %v\n", seedErr)
		}
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if len(result.Nodes) == 0 {
		return cli.NewCommandError("nodes", fmt.Errorf("no nodes discovered from %d seed(s)", len(cfg.Seeds)))
	}
	return nil
}
