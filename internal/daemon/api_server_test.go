package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cloudpush/internal/api"
	"cloudpush/internal/config"
	"cloudpush/internal/delivery"
	"cloudpush/internal/events"
	"cloudpush/internal/logging"
	"cloudpush/internal/testsupport"
)

func newTestAPI(t *testing.T, cfg *config.Config) (*Daemon, *httptest.Server) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(d.api.router)
	t.Cleanup(srv.Close)
	return d, srv
}

func doJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.Header.Get(requestIDHeader) == "" && resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected %s header on %s %s", requestIDHeader, method, url)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func organizeEvent(t *testing.T) events.Envelope {
	t.Helper()
	title := "Dune"
	ok := true
	env, err := events.NewEnvelope(events.TypeNotification, events.Notification{
		Type:      events.NotificationOrganize,
		MediaInfo: &events.MediaInfo{Title: &title},
		TransferInfo: &events.TransferInfo{
			Success:    &ok,
			TargetItem: &events.FileItem{Path: "/media/movies/Dune (2021)/Dune.mkv"},
		},
	})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return env
}

func TestAPIAuthRequiredExceptHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDaemonToken("hunter2"))
	_, srv := newTestAPI(t, cfg)

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/health", "", nil, nil); code != http.StatusOK {
		t.Fatalf("expected health without auth, got %d", code)
	}

	var apiErr api.ErrorResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/stats", "", nil, &apiErr); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if apiErr.Error != "unauthorized" {
		t.Fatalf("unexpected error body %+v", apiErr)
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/stats", "wrong", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", code)
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/stats", "hunter2", nil, nil); code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", code)
	}
}

func TestAPIWebhookDeliversAndRecords(t *testing.T) {
	var hits atomic.Int32
	uploader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("X-API-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"taskId": 42}`))
	}))
	defer uploader.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithUploader(uploader.URL, "secret"))
	_, srv := newTestAPI(t, cfg)

	var handled api.EventResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/events", "", organizeEvent(t), &handled); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if handled.Handled != 1 {
		t.Fatalf("expected one handler, got %d", handled.Handled)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one push, got %d", hits.Load())
	}

	var st api.StatsResponse
	doJSON(t, http.MethodGet, srv.URL+"/api/stats", "", nil, &st)
	if st.Total != 1 || st.Success != 1 || st.SuccessRate != 100 {
		t.Fatalf("unexpected stats %+v", st)
	}

	var recent api.RecentResponse
	doJSON(t, http.MethodGet, srv.URL+"/api/recent", "", nil, &recent)
	if len(recent.Records) != 1 || !recent.Records[0].Success || recent.Records[0].Title != "Dune" {
		t.Fatalf("unexpected recent %+v", recent)
	}
}

func TestAPIRecentDefaultsToTen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, srv := newTestAPI(t, cfg)

	ctx := context.Background()
	for i := 0; i < 15; i++ {
		if err := d.stats.AppendRecentPush(ctx, statsRecord(i)); err != nil {
			t.Fatalf("AppendRecentPush: %v", err)
		}
	}

	var recent api.RecentResponse
	doJSON(t, http.MethodGet, srv.URL+"/api/recent", "", nil, &recent)
	if len(recent.Records) != defaultRecentLimit {
		t.Fatalf("expected %d records, got %d", defaultRecentLimit, len(recent.Records))
	}
	if recent.Records[0].Title != "push-14" {
		t.Fatalf("expected newest first, got %q", recent.Records[0].Title)
	}

	doJSON(t, http.MethodGet, srv.URL+"/api/recent?limit=3", "", nil, &recent)
	if len(recent.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent.Records))
	}

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/recent?limit=abc", "", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", code)
	}
}

func TestAPIRejectsBadEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, srv := newTestAPI(t, cfg)

	resp, err := http.Post(srv.URL+"/api/events", "application/json", bytes.NewReader([]byte(`{"event_type":`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", resp.StatusCode)
	}

	if code := doJSON(t, http.MethodPost, srv.URL+"/api/events", "", map[string]any{"event_data": map[string]any{}}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without event_type, got %d", code)
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/events", "", nil, nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET events, got %d", code)
	}
}

func TestAPIHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, srv := newTestAPI(t, cfg)

	var rec api.HistoryRecord
	code := doJSON(t, http.MethodPost, srv.URL+"/api/history", "", api.HistoryRequest{
		Src:   "/downloads/Dune.mkv",
		Dest:  "/media/movies/Dune (2021)/Dune.mkv",
		Title: "Dune",
	}, &rec)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if rec.ID == 0 || rec.CreatedAt == "" {
		t.Fatalf("expected stored record, got %+v", rec)
	}

	if code := doJSON(t, http.MethodPost, srv.URL+"/api/history", "", api.HistoryRequest{Src: "/x"}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing dest, got %d", code)
	}

	var list api.HistoryListResponse
	doJSON(t, http.MethodGet, srv.URL+"/api/history", "", nil, &list)
	if len(list.Records) != 1 || list.Records[0].ID != rec.ID {
		t.Fatalf("unexpected history list %+v", list)
	}
}

func TestAPIProbeUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, srv := newTestAPI(t, cfg)

	var probe api.ProbeResponse
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/test", "", nil, &probe); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if probe.Success {
		t.Fatal("expected probe failure without endpoint")
	}
}

func TestAPIReloadWithoutLoader(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, srv := newTestAPI(t, cfg)

	var apiErr api.ErrorResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/reload", "", nil, &apiErr); code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
	if apiErr.Error == "" {
		t.Fatal("expected error message")
	}
}

func TestWriteTimeoutCoversRetries(t *testing.T) {
	short := delivery.Settings{Timeout: time.Second, MaxRetries: 1, RetryDelay: time.Second}
	if got := writeTimeout(short); got != minWriteTimeout {
		t.Fatalf("expected floor %s, got %s", minWriteTimeout, got)
	}
	long := delivery.Settings{Timeout: 10 * time.Second, MaxRetries: 3, RetryDelay: 2 * time.Second}
	if got := writeTimeout(long); got != 56*time.Second {
		t.Fatalf("expected 56s, got %s", got)
	}
}

func TestEventWriteDeadlineFollowsReload(t *testing.T) {
	uploader := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{"taskId": 1}`))
	}))
	defer uploader.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithUploader(uploader.URL, "secret"))
	reloaded := *cfg
	reloaded.Uploader.RetryTimes = 5
	reloaded.Uploader.RetryDelay = 20
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, logging.NewNop(), func() (*config.Config, error) { return &reloaded, nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	before := writeTimeout(d.plugin.Load().Settings().Delivery)
	if err := d.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	after := writeTimeout(d.plugin.Load().Settings().Delivery)
	if after <= before {
		t.Fatalf("expected reload to raise the write timeout, got %s then %s", before, after)
	}

	srv := httptest.NewUnstartedServer(d.api.router)
	srv.Config.WriteTimeout = 50 * time.Millisecond
	srv.Start()
	defer srv.Close()

	var handled api.EventResponse
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/events", "", organizeEvent(t), &handled); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if handled.Handled != 1 {
		t.Fatalf("expected one handler, got %d", handled.Handled)
	}
}
