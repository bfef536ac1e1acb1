package testsupport

import (
	"path/filepath"
	"testing"

	"cloudpush/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Uploader.RetryDelay = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithUploader enables forwarding to the given endpoint with the given token.
func WithUploader(apiURL, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploader.Enabled = true
		b.cfg.Uploader.APIURL = apiURL
		b.cfg.Uploader.APIToken = token
	}
}

// WithRetries overrides the retry count on the test config.
func WithRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploader.RetryTimes = n
	}
}

// WithDaemonToken requires bearer auth on the daemon API.
func WithDaemonToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
