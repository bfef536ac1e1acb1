package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
//
// A missing uploader URL or token is not an error: the plugin loads and
// skips every event until both are configured.
func (c *Config) Validate() error {
	if err := c.validateUploader(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateUploader() error {
	if c.Uploader.APIURL != "" {
		parsed, err := url.Parse(c.Uploader.APIURL)
		if err != nil {
			return fmt.Errorf("uploader.api_url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("uploader.api_url must use http or https, got %q", c.Uploader.APIURL)
		}
		if parsed.Host == "" {
			return fmt.Errorf("uploader.api_url is missing a host: %q", c.Uploader.APIURL)
		}
	}
	if c.Uploader.RetryTimes < 0 {
		return errors.New("uploader.retry_times must be >= 0")
	}
	if c.Uploader.RetryTimes > maxRetryTimes {
		return fmt.Errorf("uploader.retry_times must be <= %d", maxRetryTimes)
	}
	if c.Uploader.Timeout <= 0 {
		return errors.New("uploader.timeout must be > 0")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if !strings.Contains(c.Paths.APIBind, ":") {
		return fmt.Errorf("paths.api_bind must be host:port, got %q", c.Paths.APIBind)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}
