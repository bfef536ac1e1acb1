package delivery

import (
	"time"

	"cloudpush/internal/config"
)

const defaultRetryDelay = 2 * time.Second

// Settings is the immutable delivery configuration. Reloading builds a new Engine.
type Settings struct {
	EndpointURL string
	Token       string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	// RetryClientErrors retries 4xx responses like any other failure when true.
	RetryClientErrors bool
	// TestMode logs every payload body before sending.
	TestMode bool
}

// SettingsFromConfig snapshots the uploader section of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{RetryDelay: defaultRetryDelay}
	}
	return Settings{
		EndpointURL:       cfg.Uploader.APIURL,
		Token:             cfg.Uploader.APIToken,
		Timeout:           cfg.UploaderTimeout(),
		MaxRetries:        cfg.Uploader.RetryTimes,
		RetryDelay:        cfg.UploaderRetryDelay(),
		RetryClientErrors: cfg.Uploader.RetryClientErrors,
		TestMode:          cfg.Uploader.TestMode,
	}
}

// Configured reports whether both the endpoint and the token are set.
func (s Settings) Configured() bool {
	return s.EndpointURL != "" && s.Token != ""
}

// MaxAttempts is the first attempt plus MaxRetries.
func (s Settings) MaxAttempts() int {
	if s.MaxRetries < 0 {
		return 1
	}
	return s.MaxRetries + 1
}

// WorstCase is the longest a single Deliver call can block: every attempt
// timing out plus every pause between attempts.
func (s Settings) WorstCase() time.Duration {
	retries := s.MaxAttempts() - 1
	return s.Timeout*time.Duration(s.MaxAttempts()) + s.RetryDelay*time.Duration(retries)
}
