/*
Package cli provides command-line interface utilities for the esproxy command.

Output Formatting:

Command results can be printed as text, JSON or CSV. Results implementing
Table render as aligned columns in text mode and as rows in CSV mode:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Errors:

ConfigError marks an unusable configuration; CommandError wraps a failure of
a subcommand. Both end the process with exit code 1.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
