package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"cloudpush/internal/api"
	"cloudpush/internal/delivery"
	"cloudpush/internal/events"
	"cloudpush/internal/logging"
	"cloudpush/internal/services"
	"cloudpush/internal/state"
)

const (
	defaultRecentLimit  = 10
	maxEventBodyBytes   = 1 << 20
	minWriteTimeout     = 30 * time.Second
	writeTimeoutHeadway = 10 * time.Second
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	router *mux.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(d *Daemon, logger *slog.Logger) (*apiServer, error) {
	cfg := d.Config()
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("paths.api_bind is required")
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.router = srv.routes()
	return srv, nil
}

func (s *apiServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(authMiddleware(s.token))
	protected.HandleFunc("/events", s.handleEvents).Methods(http.MethodPost)
	protected.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	protected.HandleFunc("/recent", s.handleRecent).Methods(http.MethodGet)
	protected.HandleFunc("/test", s.handleTest).Methods(http.MethodGet, http.MethodPost)
	protected.HandleFunc("/history", s.handleAddHistory).Methods(http.MethodPost)
	protected.HandleFunc("/history", s.handleListHistory).Methods(http.MethodGet)
	protected.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	protected.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *apiServer) token() string {
	return s.daemon.Config().Paths.APIToken
}

// writeTimeout leaves room for a webhook request to sit through every
// delivery attempt before the response is written.
func writeTimeout(settings delivery.Settings) time.Duration {
	timeout := settings.WorstCase() + writeTimeoutHeadway
	if timeout < minWriteTimeout {
		return minWriteTimeout
	}
	return timeout
}

// extendWriteDeadline moves the connection write deadline out to cover the
// plugin's current delivery settings. The server-wide WriteTimeout is fixed
// at start and a reload may raise retries or the request timeout past it.
func (s *apiServer) extendWriteDeadline(w http.ResponseWriter) {
	timeout := writeTimeout(s.daemon.plugin.Load().Settings().Delivery)
	err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(timeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug("write deadline not extended", logging.Error(err))
	}
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}

	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout(s.daemon.plugin.Load().Settings().Delivery),
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBodyBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(body) > maxEventBodyBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "event too large")
		return
	}

	var env events.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid event: "+err.Error())
		return
	}
	env.EventType = strings.TrimSpace(env.EventType)
	if env.EventType == "" {
		s.writeError(w, http.StatusBadRequest, "event_type is required")
		return
	}

	s.extendWriteDeadline(w)
	handled := s.daemon.Publish(r.Context(), env)
	s.writeJSON(w, http.StatusAccepted, api.EventResponse{Handled: handled})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	counters, err := s.daemon.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCounters(counters))
}

func (s *apiServer) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.parseLimit(w, r, defaultRecentLimit)
	if !ok {
		return
	}
	records, err := s.daemon.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecentResponse{Records: api.FromRecentPushes(records)})
}

func (s *apiServer) handleTest(w http.ResponseWriter, r *http.Request) {
	s.extendWriteDeadline(w)
	result := s.daemon.Probe(r.Context())
	s.writeJSON(w, http.StatusOK, api.ProbeResponse(result))
}

func (s *apiServer) handleAddHistory(w http.ResponseWriter, r *http.Request) {
	var req api.HistoryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid history record: "+err.Error())
		return
	}
	rec, err := s.daemon.AddHistory(r.Context(), state.TransferHistoryRecord{
		Src:   req.Src,
		Dest:  req.Dest,
		Title: req.Title,
	})
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromHistoryRecord(rec))
}

func (s *apiServer) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.parseLimit(w, r, 0)
	if !ok {
		return
	}
	records, err := s.daemon.ListHistory(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryListResponse{Records: api.FromHistoryRecords(records)})
}

func (s *apiServer) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.Reload(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ReloadResponse{Reloaded: true})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.DaemonStatus(s.daemon.Status()))
}

func (s *apiServer) parseLimit(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
