package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"cloudpush/internal/daemonctl"
	"cloudpush/internal/testsupport"
)

type fakeHealth struct {
	healthyAfter int
	calls        int
}

func (f *fakeHealth) Health(context.Context) error {
	f.calls++
	if f.calls > f.healthyAfter {
		return nil
	}
	return errors.New("connection refused")
}

func TestEnsureStartedAlreadyRunning(t *testing.T) {
	health := &fakeHealth{}
	result, err := daemonctl.EnsureStarted(context.Background(), health, "", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning {
		t.Fatalf("expected already running, got %s", result.State)
	}
}

func TestEnsureStartedRequiresExecutable(t *testing.T) {
	health := &fakeHealth{healthyAfter: 100}
	if _, err := daemonctl.EnsureStarted(context.Background(), health, "", daemonctl.LaunchOptions{}, time.Second); err == nil {
		t.Fatal("expected error for empty executable")
	}
}

func TestWaitForHealthy(t *testing.T) {
	health := &fakeHealth{healthyAfter: 2}
	if err := daemonctl.WaitForHealthy(context.Background(), health, 5*time.Second); err != nil {
		t.Fatalf("WaitForHealthy: %v", err)
	}
	if health.calls != 3 {
		t.Fatalf("expected 3 health calls, got %d", health.calls)
	}

	never := &fakeHealth{healthyAfter: 1 << 30}
	if err := daemonctl.WaitForHealthy(context.Background(), never, 300*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	pid, err := daemonctl.ReadPID(filepath.Join(dir, "absent.pid"))
	if err != nil || pid != 0 {
		t.Fatalf("expected 0 for missing file, got %d %v", pid, err)
	}

	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("nope\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := daemonctl.ReadPID(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStopWithoutPIDFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemonctl.Stop(cfg, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopTerminatesProcess(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	proc := exec.Command(sleep, "30")
	if err := proc.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		_ = proc.Wait()
		close(exited)
	}()
	t.Cleanup(func() { _ = proc.Process.Kill() })

	if err := os.WriteFile(cfg.PIDPath(), []byte(strconv.Itoa(proc.Process.Pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}

	result, err := daemonctl.Stop(cfg, 5*time.Second)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.PID != proc.Process.Pid {
		t.Fatalf("unexpected pid %d", result.PID)
	}
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}
