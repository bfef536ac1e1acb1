package main

import (
	"errors"

	"github.com/spf13/cobra"

	"cloudpush/internal/notifications"
	"cloudpush/internal/preflight"
)

var errChecksFailed = errors.New("one or more checks failed")

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var notify bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, the state database and the uploader endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)

			if notify {
				notifier := notifications.NewService(cfg)
				ntfy := preflight.Result{Name: "Notifications", Passed: true, Detail: "test message sent"}
				if cfg.Notifications.NtfyTopic == "" {
					ntfy.Detail = "ntfy_topic not configured"
				} else if err := notifier.Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
					ntfy = preflight.Result{Name: "Notifications", Detail: err.Error()}
				}
				results = append(results, ntfy)
			}

			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				p := newPrinter(cmd)
				p.section("cloudpush doctor")
				for _, r := range results {
					p.status(r.Name, okOrError(r.Passed), r.Detail)
				}
			}
			if preflight.Failed(results) {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send a test ntfy message")
	return cmd
}
