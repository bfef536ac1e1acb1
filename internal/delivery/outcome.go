package delivery

import (
	"fmt"

	"cloudpush/internal/services"
)

// Outcome is the result of one Deliver call.
type Outcome struct {
	Success  bool
	Attempts int
	// Response holds the decoded JSON body of a successful push, when it parsed.
	Response map[string]any
	// StatusCode is the HTTP status of the last response, 0 when none arrived.
	StatusCode int
	// Err is the final failure reason; nil on success.
	Err error
}

// Kind classifies the outcome: "success", or the services error kind of Err.
func (o Outcome) Kind() string {
	if o.Success {
		return "success"
	}
	return services.Kind(o.Err)
}

// TaskID returns the taskId reported by the uploader, if any.
func (o Outcome) TaskID() string {
	if o.Response == nil {
		return ""
	}
	v, ok := o.Response["taskId"]
	if !ok || v == nil {
		return ""
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}

// ProbeResult is returned by the connectivity probe.
type ProbeResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response any    `json:"response,omitempty"`
	Details  string `json:"details,omitempty"`
}
