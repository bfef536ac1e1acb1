package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloudpush/internal/logs"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudpush.log")
	writeLog(t, path, "a\nb\nc\n")

	lines, offset, err := logs.LastLines(path, 2, logs.Filter{})
	if err != nil {
		t.Fatalf("LastLines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}

	lines, _, err = logs.LastLines(path, 10, logs.Filter{})
	if err != nil {
		t.Fatalf("LastLines: %v", err)
	}
	if len(lines) != 3 || lines[0] != "a" {
		t.Fatalf("expected all lines in order, got %#v", lines)
	}
}

func TestLastLinesFilterAndPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudpush.log")
	writeLog(t, path, "INFO push ok\nWARN push failed\nINFO probe\nWARN partial")

	lines, offset, err := logs.LastLines(path, 5, logs.Filter{Match: "warn"})
	if err != nil {
		t.Fatalf("LastLines: %v", err)
	}
	if len(lines) != 1 || lines[0] != "WARN push failed" {
		t.Fatalf("unexpected filtered lines: %#v", lines)
	}
	if want := int64(len("INFO push ok\nWARN push failed\nINFO probe\n")); offset != want {
		t.Fatalf("expected offset to stop before partial line, got %d want %d", offset, want)
	}
}

func TestLastLinesMissingFile(t *testing.T) {
	lines, offset, err := logs.LastLines(filepath.Join(t.TempDir(), "absent.log"), 5, logs.Filter{})
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %v %d %v", lines, offset, err)
	}
}

func TestFollowEmitsAppendedAndRotatedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudpush.log")
	writeLog(t, path, "start\n")
	_, offset, err := logs.LastLines(path, 1, logs.Filter{})
	if err != nil {
		t.Fatalf("LastLines: %v", err)
	}

	var mu sync.Mutex
	var got []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, logs.Filter{}, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	waitForLines := func(n int) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			mu.Lock()
			count := len(got)
			mu.Unlock()
			if count >= n {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("expected %d lines, got %#v", n, got)
	}

	appendLog(t, path, "later\n")
	waitForLines(1)

	// Rotation replaces the file with a shorter one.
	writeLog(t, path, "new\n")
	waitForLines(2)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow returned %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if got[0] != "later" || got[1] != "new" {
		t.Fatalf("unexpected followed lines: %#v", got)
	}
}
