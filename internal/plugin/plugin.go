package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloudpush/internal/bus"
	"cloudpush/internal/delivery"
	"cloudpush/internal/events"
	"cloudpush/internal/logging"
	"cloudpush/internal/notifications"
	"cloudpush/internal/payload"
	"cloudpush/internal/stats"
)

// PayloadBuilder builds the push payload for an organize notification.
type PayloadBuilder interface {
	Build(ctx context.Context, in payload.Input) payload.Payload
}

// Deliverer pushes payloads and probes the endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, p payload.Payload) delivery.Outcome
	Probe(ctx context.Context) delivery.ProbeResult
}

// StatsRecorder is the part of the stats store the plugin writes to.
type StatsRecorder interface {
	RecordOutcome(ctx context.Context, success bool) (stats.Counters, error)
	AppendRecentPush(ctx context.Context, rec stats.RecentPushRecord) error
}

// Deps are the collaborators a Plugin is built from.
type Deps struct {
	Builder  PayloadBuilder
	Engine   Deliverer
	Stats    StatsRecorder
	Notifier notifications.Service
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Plugin filters host events and forwards organize notifications to the
// uploader.
type Plugin struct {
	settings Settings
	builder  PayloadBuilder
	engine   Deliverer
	stats    StatsRecorder
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Plugin.
func New(settings Settings, deps Deps) *Plugin {
	p := &Plugin{
		settings: settings,
		builder:  deps.Builder,
		engine:   deps.Engine,
		stats:    deps.Stats,
		notifier: deps.Notifier,
		logger:   logging.NewComponentLogger(deps.Logger, "plugin"),
		now:      deps.Now,
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Settings returns the snapshot the plugin was built with.
func (p *Plugin) Settings() Settings {
	return p.settings
}

// Register subscribes the plugin to notification and plugin-action events.
// The returned func removes both subscriptions.
func (p *Plugin) Register(b *bus.Bus) (unregister func()) {
	offNotify := b.Subscribe(events.TypeNotification, p)
	offAction := b.Subscribe(events.TypePluginAction, p)
	return func() {
		offNotify()
		offAction()
	}
}

// HandleEvent implements bus.Handler.
func (p *Plugin) HandleEvent(ctx context.Context, env events.Envelope) {
	switch env.EventType {
	case events.TypeNotification:
		p.handleNotification(ctx, env)
	case events.TypePluginAction:
		p.handleAction(ctx, env)
	}
}

func (p *Plugin) handleNotification(ctx context.Context, env events.Envelope) {
	logger := logging.WithContext(ctx, p.logger)

	n, err := env.Notification()
	if err != nil {
		p.handleUndecodable(ctx, env, err)
		return
	}

	decision := p.settings.Evaluate(n)
	if !decision.Proceed {
		if p.settings.TestMode {
			logger.Info("event skipped", logging.String("reason", decision.Reason))
		}
		return
	}

	p.push(ctx, n)
}

// handleUndecodable counts an Organize notification whose data cannot be
// decoded as one failed push. Anything else is dropped.
func (p *Plugin) handleUndecodable(ctx context.Context, env events.Envelope, decodeErr error) {
	logger := logging.WithContext(ctx, p.logger)
	kind, _ := events.PeekType(env.EventData)
	if kind != events.NotificationOrganize || !p.settings.Enabled || !p.settings.Delivery.Configured() {
		logger.Warn("ignoring malformed notification", logging.Error(decodeErr))
		return
	}
	logging.WarnWithContext(logger, "organize notification could not be decoded", "decode_failed",
		logging.Error(decodeErr),
	)
	if _, err := p.stats.RecordOutcome(context.WithoutCancel(ctx), false); err != nil {
		logger.Warn("failed to record outcome", logging.Error(err))
	}
	p.appendRecent(ctx, payload.Payload{}, false)
	p.notifyFailure(ctx, payload.Payload{}, "decode_failed")
}

// push builds and delivers the payload for n, then appends the recent-push
// record. A panic anywhere in here counts as one failed delivery.
func (p *Plugin) push(ctx context.Context, n *events.Notification) {
	logger := logging.WithContext(ctx, p.logger)

	var (
		built    payload.Payload
		recorded bool
	)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logger.Error("event handling panicked", logging.Panic(r))
		if !recorded {
			if _, err := p.stats.RecordOutcome(context.WithoutCancel(ctx), false); err != nil {
				logger.Warn("failed to record outcome", logging.Error(err))
			}
		}
		if built.Title == "" && built.TargetPath == "" {
			built.TargetPath = n.TransferInfo.TargetPath()
		}
		p.appendRecent(ctx, built, false)
		p.notifyFailure(ctx, built, fmt.Sprintf("panic: %v", r))
	}()

	built = p.builder.Build(ctx, payload.InputFromNotification(n))
	outcome := p.engine.Deliver(ctx, built)
	recorded = true

	p.appendRecent(ctx, built, outcome.Success)
	if !outcome.Success {
		p.notifyFailure(ctx, built, outcome.Kind())
	}
}

func (p *Plugin) appendRecent(ctx context.Context, built payload.Payload, success bool) {
	rec := stats.RecentPushRecord{
		Timestamp:  p.now().Local().Format(stats.TimestampLayout),
		Title:      built.Title,
		TargetPath: built.TargetPath,
		Success:    success,
	}
	if err := p.stats.AppendRecentPush(context.WithoutCancel(ctx), rec); err != nil {
		logging.WithContext(ctx, p.logger).Warn("failed to record recent push", logging.Error(err))
	}
}

func (p *Plugin) notifyFailure(ctx context.Context, built payload.Payload, reason string) {
	if !p.settings.NotifyImmediately || p.notifier == nil {
		return
	}
	err := p.notifier.Publish(context.WithoutCancel(ctx), notifications.EventDeliveryFailed, notifications.Payload{
		"title":      built.Title,
		"targetPath": built.TargetPath,
		"reason":     reason,
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "failure notification not sent", "notification_failed",
			logging.Error(err),
		)
	}
}
