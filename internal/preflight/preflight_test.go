package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cloudpush/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckUploaderReachable_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	result := CheckUploaderReachable(context.Background(), srv.URL+"/api/transfer")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckUploaderReachable_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := CheckUploaderReachable(context.Background(), url)
	if result.Passed {
		t.Fatal("expected failure for closed server")
	}
}

func TestCheckUploaderReachable_MissingURL(t *testing.T) {
	result := CheckUploaderReachable(context.Background(), "")
	if result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckStateDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	result := CheckStateDB(context.Background(), path)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckUploaderConfig(t *testing.T) {
	cfg := config.Default()
	if r := CheckUploaderConfig(&cfg); !r.Passed || r.Detail != "Disabled" {
		t.Fatalf("expected disabled pass, got %+v", r)
	}

	cfg.Uploader.Enabled = true
	if r := CheckUploaderConfig(&cfg); r.Passed {
		t.Fatal("expected failure for missing url")
	}

	cfg.Uploader.APIURL = "http://uploader.local/api/transfer"
	if r := CheckUploaderConfig(&cfg); r.Passed {
		t.Fatal("expected failure for missing token")
	}

	cfg.Uploader.APIToken = "secret"
	if r := CheckUploaderConfig(&cfg); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if Failed(results) {
		t.Fatal("expected no failures")
	}
}

func TestRunAll_IncludesEndpointWhenEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Uploader.Enabled = true
	cfg.Uploader.APIURL = srv.URL
	cfg.Uploader.APIToken = "test"

	results := RunAll(context.Background(), &cfg)
	found := false
	for _, r := range results {
		if r.Name == "Uploader endpoint" {
			found = true
			if !r.Passed {
				t.Errorf("endpoint check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected endpoint check in results")
	}
}
