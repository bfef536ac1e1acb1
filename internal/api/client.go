package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cloudpush/internal/services"
)

// ErrDaemonUnavailable reports that nothing answered at the daemon address.
var ErrDaemonUnavailable = errors.New("cloudpush daemon is not reachable")

// Client talks to a running daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon listening on bind (host:port or a
// full URL). timeout bounds each request; zero means no limit.
func NewClient(bind, token string, timeout time.Duration) *Client {
	base := strings.TrimRight(strings.TrimSpace(bind), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// SendEvent posts a raw event envelope.
func (c *Client) SendEvent(ctx context.Context, envelope json.RawMessage) (EventResponse, error) {
	var out EventResponse
	err := c.do(ctx, http.MethodPost, "/api/events", envelope, &out)
	return out, err
}

// Stats fetches delivery counters.
func (c *Client) Stats(ctx context.Context) (StatsResponse, error) {
	var out StatsResponse
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out)
	return out, err
}

// Recent fetches up to limit recent pushes. Zero means all; a negative
// limit uses the daemon default.
func (c *Client) Recent(ctx context.Context, limit int) ([]RecentPush, error) {
	path := "/api/recent"
	if limit >= 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out RecentResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// Probe asks the daemon to run the connectivity probe.
func (c *Client) Probe(ctx context.Context) (ProbeResponse, error) {
	var out ProbeResponse
	err := c.do(ctx, http.MethodPost, "/api/test", nil, &out)
	return out, err
}

// AddHistory registers a transfer-history record.
func (c *Client) AddHistory(ctx context.Context, req HistoryRequest) (HistoryRecord, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return HistoryRecord{}, fmt.Errorf("encode history request: %w", err)
	}
	var out HistoryRecord
	err = c.do(ctx, http.MethodPost, "/api/history", body, &out)
	return out, err
}

// ListHistory fetches the newest transfer-history records.
func (c *Client) ListHistory(ctx context.Context, limit int) ([]HistoryRecord, error) {
	path := "/api/history"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out HistoryListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// Reload asks the daemon to re-read its configuration.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/reload", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w at %s: %v", ErrDaemonUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return services.Wrap(services.ErrHTTPStatus, "api", method+" "+path, "",
			&services.StatusError{StatusCode: resp.StatusCode, Body: msg})
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
