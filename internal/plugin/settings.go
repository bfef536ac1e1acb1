package plugin

import (
	"cloudpush/internal/config"
	"cloudpush/internal/delivery"
	"cloudpush/internal/events"
)

// Skip reasons reported by Evaluate.
const (
	ReasonDisabled       = "plugin disabled"
	ReasonNotConfigured  = "endpoint URL or token not configured"
	ReasonNoData         = "event data missing"
	ReasonNotOrganize    = "not an organize notification"
	ReasonNoTransferInfo = "transfer info missing"
	ReasonTransferFailed = "transfer failed and only_success is set"
)

// Settings is the immutable plugin configuration. A reload builds a new
// Plugin from fresh Settings instead of mutating the running one.
type Settings struct {
	Enabled           bool
	OnlySuccess       bool
	TestMode          bool
	NotifyImmediately bool
	Delivery          delivery.Settings
}

// SettingsFromConfig snapshots the uploader section of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{Delivery: delivery.SettingsFromConfig(nil)}
	}
	return Settings{
		Enabled:           cfg.Uploader.Enabled,
		OnlySuccess:       cfg.Uploader.OnlySuccess,
		TestMode:          cfg.Uploader.TestMode,
		NotifyImmediately: cfg.Uploader.NotifyImmediately,
		Delivery:          delivery.SettingsFromConfig(cfg),
	}
}

// Decision is the gate verdict for one event.
type Decision struct {
	Proceed bool
	Reason  string
}

func skip(reason string) Decision {
	return Decision{Reason: reason}
}

// Evaluate runs the gate checks in order and stops at the first failure.
// A nil notification means the event carried no data.
func (s Settings) Evaluate(n *events.Notification) Decision {
	switch {
	case !s.Enabled:
		return skip(ReasonDisabled)
	case !s.Delivery.Configured():
		return skip(ReasonNotConfigured)
	case n == nil:
		return skip(ReasonNoData)
	case n.Type != events.NotificationOrganize:
		return skip(ReasonNotOrganize)
	case n.TransferInfo == nil:
		return skip(ReasonNoTransferInfo)
	case s.OnlySuccess && !n.TransferInfo.Succeeded():
		return skip(ReasonTransferFailed)
	}
	return Decision{Proceed: true}
}
