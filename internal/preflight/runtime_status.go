package preflight

import (
	"strings"

	"cloudpush/internal/config"
)

// CheckUploaderConfig reports whether the uploader has everything it needs
// to forward events. A disabled uploader passes; it simply forwards nothing.
func CheckUploaderConfig(cfg *config.Config) Result {
	const name = "Uploader"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Uploader.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(cfg.Uploader.APIURL) == "" {
		return Result{Name: name, Detail: "Missing api_url"}
	}
	if strings.TrimSpace(cfg.Uploader.APIToken) == "" {
		return Result{Name: name, Detail: "Missing api_token"}
	}
	return Result{Name: name, Passed: true, Detail: "Configured"}
}
