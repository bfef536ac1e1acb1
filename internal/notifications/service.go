package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloudpush/internal/config"
)

const userAgent = "cloudpush/0.1.0"

// Event identifies a site message.
type Event string

const (
	EventProbeSucceeded Event = "probe_succeeded"
	EventProbeFailed    Event = "probe_failed"
	EventDeliveryFailed Event = "delivery_failed"
	EventTest           Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes site messages.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventProbeSucceeded:
		return message{
			title: "Cloud upload test succeeded",
			body:  withDetail("Connection succeeded", payload.text("message")),
			tags:  []string{"cloudpush", "test", "ok"},
		}, true
	case EventProbeFailed:
		return message{
			title:    "Cloud upload test failed",
			body:     withDetail("Connection failed", payload.text("message")),
			tags:     []string{"cloudpush", "test", "failed"},
			priority: "high",
		}, true
	case EventDeliveryFailed:
		title := payload.text("title")
		if title == "" {
			title = "unknown title"
		}
		body := fmt.Sprintf("Push failed: %s", title)
		if target := payload.text("targetPath"); target != "" {
			body = fmt.Sprintf("%s\nPath: %s", body, target)
		}
		if reason := payload.text("reason"); reason != "" {
			body = fmt.Sprintf("%s\nReason: %s", body, reason)
		}
		return message{
			title:    "cloudpush - Push Failed",
			body:     body,
			tags:     []string{"cloudpush", "push", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title: "cloudpush - Test",
			body:  "Notifications are working",
			tags:  []string{"cloudpush", "test"},
		}, true
	default:
		return message{}, false
	}
}

func withDetail(prefix, detail string) string {
	if detail == "" {
		return prefix
	}
	return prefix + ": " + detail
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
