package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cloudpush/internal/daemonctl"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 10 * time.Second
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			client, err := ctx.client(0)
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, daemonctl.LaunchOptions{
				ConfigPath: ctx.configPath,
				LogLevel:   logLevel,
			}, startWaitTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(out, "Daemon already running")
			default:
				fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.Stop(cfg, stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in %s, killed pid %d\n", stopGracePeriod, result.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	}
}
