package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cloudpush/internal/delivery"
	"cloudpush/internal/events"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "send <envelope.json>",
		Short: "Post an event envelope to the daemon webhook",
		Long:  "Reads an {event_type, event_data} envelope from a file (or - for stdin) and posts it to /api/events.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readEnvelope(cmd, args[0])
			if err != nil {
				return err
			}

			var env events.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				return fmt.Errorf("parse envelope: %w", err)
			}
			if strings.TrimSpace(env.EventType) == "" {
				return fmt.Errorf("envelope is missing event_type")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// The webhook holds the request open for every delivery attempt.
			timeout := delivery.SettingsFromConfig(cfg).WorstCase() + 10*time.Second
			client, err := ctx.client(timeout)
			if err != nil {
				return err
			}
			resp, err := client.SendEvent(cmd.Context(), raw)
			if err != nil {
				return fmt.Errorf("send event: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Event %s delivered to %d handler(s)\n", env.EventType, resp.Handled)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func readEnvelope(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read envelope: %w", err)
	}
	return data, nil
}
