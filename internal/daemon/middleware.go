package daemon

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"cloudpush/internal/logging"
	"cloudpush/internal/services"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger tags each request with a correlation id and logs it once
// the handler returns. A client-supplied X-Request-ID is reused.
func (s *apiServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger := logging.WithContext(ctx, s.logger)
		attrs := logging.Args(
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("duration", time.Since(start)),
		)
		if rec.status >= http.StatusInternalServerError {
			logger.Warn("api request failed", attrs...)
			return
		}
		logger.Debug("api request", attrs...)
	})
}
