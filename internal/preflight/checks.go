package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"cloudpush/internal/state"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckUploaderReachable confirms something answers HTTP at the uploader
// endpoint. Any HTTP response counts; the transfer endpoint itself is never
// posted to.
func CheckUploaderReachable(ctx context.Context, endpoint string) Result {
	const name = "Uploader endpoint"

	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeDialError(err)}
	}
	resp.Body.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Reachable (%d)", resp.StatusCode)}
}

// CheckStateDB opens the state database and pings it.
func CheckStateDB(ctx context.Context, path string) Result {
	const name = "State database"

	store, err := state.OpenPath(path)
	if err != nil {
		if errors.Is(err, state.ErrSchemaMismatch) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (schema mismatch, delete the file to rebuild)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (ping failed: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

func summarizeDialError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "unreachable (timed out)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "unreachable (timed out)"
	}
	return fmt.Sprintf("unreachable (%v)", err)
}
