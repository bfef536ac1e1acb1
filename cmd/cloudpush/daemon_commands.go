package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cloudpush/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath:  ctx.configPath,
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&development, "dev", false, "Console logging with source locations, no log file")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(0)
			if err != nil {
				return err
			}
			p := newPrinter(cmd)

			status, err := client.Status(cmd.Context())
			if err != nil {
				if daemonUnavailable(err) && !jsonOutput {
					p.status("Daemon", statusError, "Not running")
					return nil
				}
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			p.status("Daemon", statusOK, "Running on "+status.APIAddress)
			enabled := statusWarn
			if status.Enabled {
				enabled = statusOK
			}
			p.status("Forwarding", enabled, yesNo(status.Enabled))
			p.status("Endpoint", okOrError(status.Configured), configuredLabel(status.Configured))
			p.status("State database", statusInfo, status.StateDBPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newReloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask the daemon to re-read its configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(0)
			if err != nil {
				return err
			}
			if err := client.Reload(cmd.Context()); err != nil {
				return fmt.Errorf("reload: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration reloaded")
			return nil
		},
	}
}

func configuredLabel(configured bool) string {
	if configured {
		return "Configured"
	}
	return "api_url or api_token missing"
}
