package preflight

import (
	"context"
	"strings"

	"cloudpush/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckStateDB(ctx, cfg.StateDBPath()),
		CheckUploaderConfig(cfg),
	}

	if cfg.Uploader.Enabled && strings.TrimSpace(cfg.Uploader.APIURL) != "" {
		results = append(results, CheckUploaderReachable(ctx, cfg.Uploader.APIURL))
	}

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
