package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cloudpush/internal/delivery"
	"cloudpush/internal/logging"
	"cloudpush/internal/notifications"
)

var errProbeFailed = errors.New("connectivity probe failed")

func newTestCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var notify bool

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Probe the uploader endpoint",
		Long:  "Posts a test request to {api_url}/test with the configured token. Stats are not touched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			engine := delivery.NewEngine(delivery.SettingsFromConfig(cfg), nil, logging.NewNop())
			result := engine.Probe(cmd.Context())

			if notify {
				event := notifications.EventProbeSucceeded
				if !result.Success {
					event = notifications.EventProbeFailed
				}
				if err := notifications.NewService(cfg).Publish(cmd.Context(), event, notifications.Payload{"message": result.Message}); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: notification not sent: %v\n", err)
				}
			}

			if jsonOutput {
				if err := writeJSON(cmd, result); err != nil {
					return err
				}
			} else {
				renderProbe(cmd, result)
			}
			if !result.Success {
				return errProbeFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&notify, "notify", false, "Also send the result as an ntfy message")
	return cmd
}

func renderProbe(cmd *cobra.Command, result delivery.ProbeResult) {
	p := newPrinter(cmd)
	p.status("Uploader", okOrError(result.Success), result.Message)
	if result.Response != nil {
		if data, err := json.Marshal(result.Response); err == nil {
			p.status("Response", statusInfo, string(data))
		}
	}
	if result.Details != "" {
		p.status("Details", statusInfo, result.Details)
	}
}
