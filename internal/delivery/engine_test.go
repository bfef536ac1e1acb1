package delivery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudpush/internal/delivery"
	"cloudpush/internal/payload"
	"cloudpush/internal/services"
	"cloudpush/internal/stats"
)

type fakeRecorder struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakeRecorder) RecordOutcome(_ context.Context, success bool) (stats.Counters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, success)
	var c stats.Counters
	for _, ok := range f.calls {
		c.Total++
		if ok {
			c.Success++
		} else {
			c.Failed++
		}
	}
	return c, nil
}

func (f *fakeRecorder) Calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.calls...)
}

type fakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (f *fakeTimer) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (f *fakeTimer) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

type panicDoer struct{}

func (panicDoer) Do(*http.Request) (*http.Response, error) { panic("transport exploded") }

func settingsFor(url string, retries int) delivery.Settings {
	return delivery.Settings{
		EndpointURL:       url,
		Token:             "secret",
		Timeout:           2 * time.Second,
		MaxRetries:        retries,
		RetryDelay:        2 * time.Second,
		RetryClientErrors: true,
	}
}

func samplePayload() payload.Payload {
	return payload.Payload{Title: "Film", TargetPath: "/media/movies/Film.mkv", FileList: []string{}, Success: true}
}

func TestDeliverSuccessOnFirstAttempt(t *testing.T) {
	received := make(chan payload.Payload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p payload.Payload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		received <- p
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"taskId": 42}`)
	}))
	defer server.Close()

	recorder := &fakeRecorder{}
	timer := &fakeTimer{}
	engine := delivery.NewEngine(settingsFor(server.URL, 3), recorder, nil, delivery.WithTimer(timer))

	out := engine.Deliver(context.Background(), samplePayload())

	require.True(t, out.Success)
	require.NoError(t, out.Err)
	require.Equal(t, 1, out.Attempts)
	require.Equal(t, "42", out.TaskID())
	require.Equal(t, "success", out.Kind())
	require.Equal(t, []bool{true}, recorder.Calls())
	require.Empty(t, timer.Waits())
	require.Equal(t, "Film", (<-received).Title)
}

func TestDeliverMakesRetriesPlusOneAttempts(t *testing.T) {
	for _, retries := range []int{0, 1, 3} {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))

		recorder := &fakeRecorder{}
		timer := &fakeTimer{}
		engine := delivery.NewEngine(settingsFor(server.URL, retries), recorder, nil, delivery.WithTimer(timer))

		out := engine.Deliver(context.Background(), samplePayload())
		server.Close()

		require.False(t, out.Success)
		require.Equal(t, retries+1, out.Attempts)
		require.Equal(t, int32(retries+1), hits.Load())
		require.Equal(t, http.StatusServiceUnavailable, out.StatusCode)
		require.Equal(t, "http_status", out.Kind())
		require.Equal(t, http.StatusServiceUnavailable, services.StatusCode(out.Err))
		require.Equal(t, []bool{false}, recorder.Calls())
		require.Len(t, timer.Waits(), retries)
		for _, wait := range timer.Waits() {
			require.Equal(t, 2*time.Second, wait)
		}
	}
}

func TestDeliverTimesOutEveryAttempt(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	settings := settingsFor(server.URL, 2)
	settings.Timeout = 50 * time.Millisecond
	recorder := &fakeRecorder{}
	timer := &fakeTimer{}
	engine := delivery.NewEngine(settings, recorder, nil, delivery.WithTimer(timer))

	out := engine.Deliver(context.Background(), samplePayload())

	require.False(t, out.Success)
	require.Equal(t, 3, out.Attempts)
	require.Equal(t, "timeout", out.Kind())
	require.ErrorIs(t, out.Err, services.ErrTimeout)
	require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, timer.Waits())
	require.Equal(t, []bool{false}, recorder.Calls())
	require.Equal(t, int32(3), hits.Load())
}

func TestDeliverClientErrorPolicy(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer server.Close()

	settings := settingsFor(server.URL, 2)
	settings.RetryClientErrors = false
	recorder := &fakeRecorder{}
	engine := delivery.NewEngine(settings, recorder, nil, delivery.WithTimer(&fakeTimer{}))

	out := engine.Deliver(context.Background(), samplePayload())
	require.False(t, out.Success)
	require.Equal(t, 1, out.Attempts)
	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, []bool{false}, recorder.Calls())

	hits.Store(0)
	settings.RetryClientErrors = true
	engine = delivery.NewEngine(settings, recorder, nil, delivery.WithTimer(&fakeTimer{}))
	out = engine.Deliver(context.Background(), samplePayload())
	require.Equal(t, 3, out.Attempts)
	require.Equal(t, int32(3), hits.Load())
}

func TestDeliverRecoversAfterTransientFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "created")
	}))
	defer server.Close()

	recorder := &fakeRecorder{}
	timer := &fakeTimer{}
	engine := delivery.NewEngine(settingsFor(server.URL, 3), recorder, nil, delivery.WithTimer(timer))

	out := engine.Deliver(context.Background(), samplePayload())
	require.True(t, out.Success)
	require.Equal(t, 3, out.Attempts)
	require.Nil(t, out.Response, "non-JSON body must not fail the push")
	require.Len(t, timer.Waits(), 2)
	require.Equal(t, []bool{true}, recorder.Calls())
}

func TestDeliverConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	recorder := &fakeRecorder{}
	engine := delivery.NewEngine(settingsFor(url, 1), recorder, nil, delivery.WithTimer(&fakeTimer{}))

	out := engine.Deliver(context.Background(), samplePayload())
	require.False(t, out.Success)
	require.Equal(t, 2, out.Attempts)
	require.Equal(t, "transient", out.Kind())
	require.Equal(t, []bool{false}, recorder.Calls())
}

func TestDeliverRecordsFailureOnPanic(t *testing.T) {
	recorder := &fakeRecorder{}
	engine := delivery.NewEngine(settingsFor("http://uploader.invalid", 2), recorder, nil,
		delivery.WithHTTPClient(panicDoer{}), delivery.WithTimer(&fakeTimer{}))

	out := engine.Deliver(context.Background(), samplePayload())
	require.False(t, out.Success)
	require.Error(t, out.Err)
	require.Contains(t, out.Err.Error(), "transport exploded")
	require.Equal(t, []bool{false}, recorder.Calls())
}

func TestDeliverCancelledContextStillRecordsOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recorder := &fakeRecorder{}
	engine := delivery.NewEngine(settingsFor("http://uploader.invalid", 2), recorder, nil, delivery.WithTimer(&fakeTimer{}))

	out := engine.Deliver(ctx, samplePayload())
	require.False(t, out.Success)
	require.ErrorIs(t, out.Err, context.Canceled)
	require.Equal(t, []bool{false}, recorder.Calls())
}

func TestProbe(t *testing.T) {
	type probeHit struct {
		path string
		body map[string]any
	}
	hits := make(chan probeHit, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		hits <- probeHit{path: r.URL.Path, body: body}
		if r.Header.Get("X-API-Token") != "secret" {
			http.Error(w, "denied", http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer server.Close()

	recorder := &fakeRecorder{}
	engine := delivery.NewEngine(settingsFor(server.URL, 3), recorder, nil)
	res := engine.Probe(context.Background())

	require.True(t, res.Success)
	hit := <-hits
	require.Equal(t, "/test", hit.path)
	require.Equal(t, true, hit.body["test"])
	require.NotEmpty(t, hit.body["timestamp"])
	require.Equal(t, map[string]any{"status": "ok"}, res.Response)
	require.Empty(t, recorder.Calls(), "probe must not touch stats")

	settings := settingsFor(server.URL, 3)
	settings.Token = "wrong"
	res = delivery.NewEngine(settings, recorder, nil).Probe(context.Background())
	require.False(t, res.Success)
	require.Contains(t, res.Message, "HTTP 403")
	require.Equal(t, "denied", res.Details)
	require.Empty(t, recorder.Calls())
}

func TestProbeRequiresConfiguration(t *testing.T) {
	res := delivery.NewEngine(delivery.Settings{}, nil, nil).Probe(context.Background())
	require.False(t, res.Success)
	require.Contains(t, res.Message, "not configured")
}
