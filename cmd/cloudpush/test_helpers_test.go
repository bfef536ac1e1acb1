package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"cloudpush/internal/config"
	"cloudpush/internal/daemon"
	"cloudpush/internal/logging"
	"cloudpush/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
	apiAddr    string
}

// setupCLITestEnv writes cfg to disk and, when withDaemon is set, starts a
// daemon on an ephemeral port.
func setupCLITestEnv(t *testing.T, cfg *config.Config, withDaemon bool) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", testsupport.BaseDir(cfg))
	t.Setenv("CLOUDPUSH_API_TOKEN", "")
	t.Setenv("CLOUDPUSH_DAEMON_TOKEN", "")

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{cfg: cfg, configPath: configPath}
	if !withDaemon {
		// Nothing listens here; the client reports the daemon as unavailable.
		env.apiAddr = "127.0.0.1:1"
		return env
	}

	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})

	env.daemon = d
	env.apiAddr = d.APIAddress()
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--config", env.configPath, "--api", env.apiAddr}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
