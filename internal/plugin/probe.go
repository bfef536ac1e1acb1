package plugin

import (
	"context"

	"cloudpush/internal/delivery"
	"cloudpush/internal/events"
	"cloudpush/internal/logging"
	"cloudpush/internal/notifications"
)

// Probe checks connectivity to the uploader. It never touches stats.
func (p *Plugin) Probe(ctx context.Context) delivery.ProbeResult {
	return p.engine.Probe(ctx)
}

func (p *Plugin) handleAction(ctx context.Context, env events.Envelope) {
	logger := logging.WithContext(ctx, p.logger)

	action, err := env.PluginAction()
	if err != nil {
		logger.Warn("ignoring malformed plugin action", logging.Error(err))
		return
	}
	if action == nil || action.Action != events.ActionCloudUploadTest {
		return
	}

	result := p.Probe(ctx)
	logger.Info("connectivity probe finished",
		logging.Bool("success", result.Success),
		logging.String("message", result.Message),
	)
	p.reportProbe(ctx, result)
}

func (p *Plugin) reportProbe(ctx context.Context, result delivery.ProbeResult) {
	if p.notifier == nil {
		return
	}
	event := notifications.EventProbeSucceeded
	if !result.Success {
		event = notifications.EventProbeFailed
	}
	if err := p.notifier.Publish(ctx, event, notifications.Payload{"message": result.Message}); err != nil {
		logging.WithContext(ctx, p.logger).Warn("probe notification not sent", logging.Error(err))
	}
}
