package delivery_test

import (
	"testing"
	"time"

	"cloudpush/internal/config"
	"cloudpush/internal/delivery"
)

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Uploader.APIURL = "http://uploader:8080/api/transfer"
	cfg.Uploader.APIToken = "tok"
	cfg.Uploader.RetryTimes = 2
	cfg.Uploader.Timeout = 5

	s := delivery.SettingsFromConfig(&cfg)
	if !s.Configured() {
		t.Fatal("expected configured settings")
	}
	if s.Timeout != 5*time.Second || s.RetryDelay != 2*time.Second {
		t.Fatalf("unexpected durations: %+v", s)
	}
	if s.MaxAttempts() != 3 {
		t.Fatalf("expected 3 attempts, got %d", s.MaxAttempts())
	}
	if !s.RetryClientErrors {
		t.Fatal("expected client errors retried by default")
	}

	cfg.Uploader.APIToken = ""
	if delivery.SettingsFromConfig(&cfg).Configured() {
		t.Fatal("expected missing token to leave settings unconfigured")
	}
}

func TestSettingsWorstCase(t *testing.T) {
	s := delivery.Settings{Timeout: 5 * time.Second, MaxRetries: 2, RetryDelay: 2 * time.Second}
	if got := s.WorstCase(); got != 19*time.Second {
		t.Fatalf("expected 19s, got %s", got)
	}
	s.MaxRetries = 0
	if got := s.WorstCase(); got != 5*time.Second {
		t.Fatalf("expected 5s without retries, got %s", got)
	}
}
