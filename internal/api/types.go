package api

import (
	"time"

	"cloudpush/internal/state"
	"cloudpush/internal/stats"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// EventResponse reports how many handlers an event reached.
type EventResponse struct {
	Handled int `json:"handled"`
}

// StatsResponse is the delivery counters plus the derived success rate.
type StatsResponse struct {
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"successRate"`
}

// RecentPush is one recent-push entry.
type RecentPush struct {
	Timestamp  string `json:"timestamp"`
	Title      string `json:"title"`
	TargetPath string `json:"target_path"`
	Success    bool   `json:"success"`
}

// RecentResponse lists recent pushes, newest first.
type RecentResponse struct {
	Records []RecentPush `json:"records"`
}

// HistoryRequest registers a transfer-history record.
type HistoryRequest struct {
	Src   string `json:"src"`
	Dest  string `json:"dest"`
	Title string `json:"title"`
}

// HistoryRecord is a transfer-history record in transport form.
type HistoryRecord struct {
	ID        int64  `json:"id"`
	Src       string `json:"src"`
	Dest      string `json:"dest"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// HistoryListResponse wraps transfer-history records.
type HistoryListResponse struct {
	Records []HistoryRecord `json:"records"`
}

// ProbeResponse mirrors the connectivity probe result.
type ProbeResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response any    `json:"response,omitempty"`
	Details  string `json:"details,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool   `json:"running"`
	Enabled      bool   `json:"enabled"`
	Configured   bool   `json:"configured"`
	StateDBPath  string `json:"stateDbPath"`
	LockFilePath string `json:"lockFilePath"`
	APIAddress   string `json:"apiAddress,omitempty"`
}

// ReloadResponse confirms a configuration reload.
type ReloadResponse struct {
	Reloaded bool `json:"reloaded"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromCounters converts stats counters.
func FromCounters(c stats.Counters) StatsResponse {
	return StatsResponse{
		Total:       c.Total,
		Success:     c.Success,
		Failed:      c.Failed,
		SuccessRate: c.SuccessRate(),
	}
}

// FromRecentPushes converts recent-push records, preserving order.
func FromRecentPushes(records []stats.RecentPushRecord) []RecentPush {
	out := make([]RecentPush, 0, len(records))
	for _, rec := range records {
		out = append(out, RecentPush(rec))
	}
	return out
}

// FromHistoryRecord converts a transfer-history record.
func FromHistoryRecord(rec state.TransferHistoryRecord) HistoryRecord {
	out := HistoryRecord{
		ID:    rec.ID,
		Src:   rec.Src,
		Dest:  rec.Dest,
		Title: rec.Title,
	}
	if !rec.CreatedAt.IsZero() {
		out.CreatedAt = rec.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return out
}

// FromHistoryRecords converts a slice of transfer-history records.
func FromHistoryRecords(records []state.TransferHistoryRecord) []HistoryRecord {
	out := make([]HistoryRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, FromHistoryRecord(rec))
	}
	return out
}

// ParseTime parses a timestamp produced by FromHistoryRecord.
func ParseTime(value string) (time.Time, error) {
	return time.Parse(dateTimeFormat, value)
}
