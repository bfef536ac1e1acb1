package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cloudpush/internal/config"
)

// HealthChecker reports whether the daemon API answers.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// LaunchOptions controls how a detached daemon is started.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// ErrDaemonNotRunning indicates there is no daemon process to stop.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 200 * time.Millisecond

// Launch starts `<executable> run` detached from the calling terminal.
func Launch(executablePath string, opts LaunchOptions) (int, error) {
	if strings.TrimSpace(executablePath) == "" {
		return 0, fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := proc.Process.Pid
	return pid, proc.Process.Release()
}

// WaitForHealthy polls the daemon API until it answers or timeout elapses.
func WaitForHealthy(ctx context.Context, client HealthChecker, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if lastErr = client.Health(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless its API already answers.
func EnsureStarted(ctx context.Context, client HealthChecker, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if err := client.Health(ctx); err == nil {
		return StartResult{State: StartStateAlreadyRunning}, nil
	}
	pid, err := Launch(executablePath, opts)
	if err != nil {
		return StartResult{}, err
	}
	if err := WaitForHealthy(ctx, client, waitTimeout); err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// ReadPID returns the process ID recorded in the daemon pid file, or 0 when
// the file is absent.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(value)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q in %s", value, path)
	}
	return pid, nil
}

// Stop sends SIGTERM to the daemon recorded in cfg's pid file and escalates
// to SIGKILL once gracePeriod passes. A stale pid file is removed.
func Stop(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	pidPath := cfg.PIDPath()
	pid, err := ReadPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == 0 {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if !processAlive(pid) {
		_ = os.Remove(pidPath)
		return result, ErrDaemonNotRunning
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return result, nil
		}
		time.Sleep(pollInterval)
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	result.ForcedKill = true
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	_ = os.Remove(cfg.LockPath())
	return result, nil
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
