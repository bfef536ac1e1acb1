package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/avast/retry-go/v4"

	"cloudpush/internal/logging"
	"cloudpush/internal/payload"
	"cloudpush/internal/services"
	"cloudpush/internal/stats"
)

const (
	userAgent        = "cloudpush/0.1.0"
	maxResponseBytes = 64 << 10
	maxDetailBytes   = 512
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder receives exactly one outcome per Deliver call.
type Recorder interface {
	RecordOutcome(ctx context.Context, success bool) (stats.Counters, error)
}

// Engine pushes payloads to the uploader with bounded, fixed-delay retries.
type Engine struct {
	settings Settings
	client   HTTPDoer
	recorder Recorder
	timer    retry.Timer
	logger   *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(e *Engine) {
		if client != nil {
			e.client = client
		}
	}
}

// WithTimer overrides the timer used for the pause between attempts.
func WithTimer(timer retry.Timer) Option {
	return func(e *Engine) {
		e.timer = timer
	}
}

// NewEngine constructs an Engine. recorder may be nil when outcomes need not be counted.
func NewEngine(settings Settings, recorder Recorder, logger *slog.Logger, opts ...Option) *Engine {
	if settings.RetryDelay < 0 {
		settings.RetryDelay = defaultRetryDelay
	}
	e := &Engine{
		settings: settings,
		client:   &http.Client{},
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "delivery"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the engine's immutable settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Deliver posts p to the endpoint, retrying failures up to MaxRetries times
// with a fixed pause. Exactly one outcome is recorded per call, including
// when the attempt loop panics.
func (e *Engine) Deliver(ctx context.Context, p payload.Payload) (out Outcome) {
	logger := logging.WithContext(ctx, e.logger).With(logging.Push(p.Title, p.TargetPath))

	defer func() {
		if r := recover(); r != nil {
			out.Success = false
			out.Err = services.Wrap(services.ErrTransient, "delivery", "deliver", fmt.Sprintf("panic: %v", r), nil)
			logger.Error("delivery panicked", logging.Panic(r))
		}
		e.record(ctx, logger, out.Success)
	}()

	body, err := json.Marshal(p)
	if err != nil {
		out.Err = services.Wrap(services.ErrValidation, "delivery", "encode payload", "", err)
		logger.Error("payload encoding failed", logging.Error(out.Err))
		return out
	}
	if e.settings.TestMode {
		logger.Info("payload prepared", logging.String("body", string(body)))
	}

	var response map[string]any
	err = retry.Do(
		func() error {
			out.Attempts++
			result, attemptErr := e.post(ctx, e.settings.EndpointURL, body)
			out.StatusCode = result.status
			if attemptErr != nil {
				logger.Warn("push attempt failed",
					logging.Int("attempt", out.Attempts),
					logging.Int("max_attempts", e.settings.MaxAttempts()),
					logging.ErrorKind(services.Kind(attemptErr)),
					logging.Error(attemptErr),
				)
				return attemptErr
			}
			response = result.json
			return nil
		},
		e.retryOptions(ctx)...,
	)
	if err != nil {
		if !isClassified(err) {
			err = services.Wrap(services.ErrTransient, "delivery", "deliver", "aborted", err)
		}
		out.Err = err
		logging.ErrorWithContext(logger, "push failed", "delivery_failed",
			logging.Attempts(out.Attempts),
			logging.ErrorKind(services.Kind(err)),
			logging.Error(err),
		)
		return out
	}

	out.Success = true
	out.Response = response
	attrs := []logging.Attr{logging.Attempts(out.Attempts)}
	if taskID := out.TaskID(); taskID != "" {
		attrs = append(attrs, logging.String("task_id", taskID))
	}
	logger.Info("push succeeded", logging.Args(attrs...)...)
	return out
}

func (e *Engine) retryOptions(ctx context.Context) []retry.Option {
	opts := []retry.Option{
		retry.Attempts(uint(e.settings.MaxAttempts())),
		retry.Delay(e.settings.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(e.shouldRetry),
	}
	if e.timer != nil {
		opts = append(opts, retry.WithTimer(e.timer))
	}
	return opts
}

func (e *Engine) shouldRetry(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	if e.settings.RetryClientErrors {
		return true
	}
	code := services.StatusCode(err)
	return code < 400 || code >= 500
}

func (e *Engine) record(ctx context.Context, logger *slog.Logger, success bool) {
	if e.recorder == nil {
		return
	}
	counters, err := e.recorder.RecordOutcome(context.WithoutCancel(ctx), success)
	if err != nil {
		logging.WarnWithContext(logger, "stats update failed", "stats_persist",
			logging.Error(err),
			logging.String(logging.FieldImpact, "delivery counters may be stale"),
		)
		return
	}
	logger.Debug("stats updated",
		logging.Int("total", counters.Total),
		logging.Int("success", counters.Success),
		logging.Int("failed", counters.Failed),
	)
}

type attemptResult struct {
	status int
	json   map[string]any
	raw    []byte
}

// post performs one request bounded by the per-attempt timeout. Any status
// other than 200 is an error carrying a services.StatusError.
func (e *Engine) post(ctx context.Context, endpoint string, body []byte) (attemptResult, error) {
	var result attemptResult
	if ctx.Err() != nil {
		return result, retry.Unrecoverable(ctx.Err())
	}

	attemptCtx := ctx
	if e.settings.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.settings.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return result, retry.Unrecoverable(services.Wrap(services.ErrConfiguration, "delivery", "build request", endpoint, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Token", e.settings.Token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return result, retry.Unrecoverable(services.Wrap(services.ErrTransient, "delivery", "post", "cancelled", ctx.Err()))
		}
		if isTimeout(err) {
			return result, services.Wrap(services.ErrTimeout, "delivery", "post", fmt.Sprintf("no response within %s", e.settings.Timeout), err)
		}
		return result, services.Wrap(services.ErrTransient, "delivery", "post", "connection failed", err)
	}
	defer resp.Body.Close()

	result.status = resp.StatusCode
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil && isTimeout(readErr) {
		return result, services.Wrap(services.ErrTimeout, "delivery", "read response", "", readErr)
	}
	result.raw = raw

	if resp.StatusCode != http.StatusOK {
		statusErr := &services.StatusError{StatusCode: resp.StatusCode, Body: snippet(raw)}
		return result, services.Wrap(services.ErrHTTPStatus, "delivery", "post", "", statusErr)
	}

	if len(bytes.TrimSpace(raw)) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			logging.WithContext(ctx, e.logger).Debug("response is not a JSON object",
				logging.String("body", snippet(raw)),
				logging.Error(err),
			)
		} else {
			result.json = decoded
		}
	}
	return result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isClassified(err error) bool {
	for _, marker := range []error{services.ErrTimeout, services.ErrTransient, services.ErrHTTPStatus, services.ErrConfiguration, services.ErrValidation} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxDetailBytes {
		s = s[:maxDetailBytes] + "..."
	}
	return s
}
