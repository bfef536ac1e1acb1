package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloudpush/internal/logging"
	"cloudpush/internal/services"
)

type probeRequest struct {
	Test      bool   `json:"test"`
	Timestamp string `json:"timestamp"`
}

// Probe posts a test request to {endpoint}/test once. It never touches stats.
func (e *Engine) Probe(ctx context.Context) ProbeResult {
	if !e.settings.Configured() {
		return ProbeResult{Success: false, Message: "endpoint URL or token not configured"}
	}

	body, err := json.Marshal(probeRequest{Test: true, Timestamp: time.Now().Format(time.RFC3339Nano)})
	if err != nil {
		return ProbeResult{Success: false, Message: fmt.Sprintf("encode probe: %v", err)}
	}

	logger := logging.WithContext(ctx, e.logger)
	result, err := e.post(ctx, e.settings.EndpointURL+"/test", body)
	if err != nil {
		logger.Warn("connectivity probe failed",
			logging.ErrorKind(services.Kind(err)),
			logging.Error(err),
		)
		if code := services.StatusCode(err); code != 0 {
			return ProbeResult{
				Success: false,
				Message: fmt.Sprintf("connection failed: HTTP %d", code),
				Details: snippet(result.raw),
			}
		}
		return ProbeResult{Success: false, Message: fmt.Sprintf("connection error: %v", err)}
	}

	logger.Info("connectivity probe succeeded")
	res := ProbeResult{Success: true, Message: "connection succeeded"}
	if result.json != nil {
		res.Response = result.json
	}
	return res
}
