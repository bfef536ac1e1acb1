package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

const (
	// StatsKey holds the delivery counters.
	StatsKey = "stats"
	// RecentKey holds the recent-push log.
	RecentKey = "recent_pushes"
	// MaxRecentPushes bounds the recent-push log; the oldest entries are evicted first.
	MaxRecentPushes = 100
	// TimestampLayout formats RecentPushRecord timestamps.
	TimestampLayout = "2006-01-02 15:04:05"
)

// KV is the persistence the store needs from the host.
type KV interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	UpdateJSON(ctx context.Context, key string, fn func(current json.RawMessage) (any, error)) error
}

// Counters are the process-wide delivery totals. Total always equals Success + Failed.
type Counters struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// SuccessRate returns the percentage of successful deliveries, or 0 with no deliveries.
func (c Counters) SuccessRate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Success) / float64(c.Total) * 100
}

// RecentPushRecord is one entry of the recent-push log.
type RecentPushRecord struct {
	Timestamp  string `json:"timestamp"`
	Title      string `json:"title"`
	TargetPath string `json:"target_path"`
	Success    bool   `json:"success"`
}

// Store records delivery outcomes. Every read-modify-write holds the store
// mutex and runs in a single KV transaction.
type Store struct {
	mu sync.Mutex
	kv KV
}

// NewStore wraps kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// RecordOutcome increments total and exactly one of success or failed.
func (s *Store) RecordOutcome(ctx context.Context, success bool) (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated Counters
	err := s.kv.UpdateJSON(ctx, StatsKey, func(current json.RawMessage) (any, error) {
		counters, err := decodeCounters(current)
		if err != nil {
			return nil, err
		}
		counters.Total++
		if success {
			counters.Success++
		} else {
			counters.Failed++
		}
		updated = counters
		return counters, nil
	})
	if err != nil {
		return Counters{}, fmt.Errorf("record outcome: %w", err)
	}
	return updated, nil
}

// Stats returns the current counters, zeroed when nothing has been recorded.
func (s *Store) Stats(ctx context.Context) (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counters Counters
	if _, err := s.kv.GetJSON(ctx, StatsKey, &counters); err != nil {
		return Counters{}, fmt.Errorf("load stats: %w", err)
	}
	return counters, nil
}

// AppendRecentPush appends rec and truncates the log to the newest MaxRecentPushes entries.
func (s *Store) AppendRecentPush(ctx context.Context, rec RecentPushRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.kv.UpdateJSON(ctx, RecentKey, func(current json.RawMessage) (any, error) {
		var records []RecentPushRecord
		if len(current) > 0 {
			if err := json.Unmarshal(current, &records); err != nil {
				return nil, fmt.Errorf("decode recent pushes: %w", err)
			}
		}
		records = append(records, rec)
		if len(records) > MaxRecentPushes {
			records = records[len(records)-MaxRecentPushes:]
		}
		return records, nil
	})
	if err != nil {
		return fmt.Errorf("append recent push: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns all of them.
func (s *Store) Recent(ctx context.Context, limit int) ([]RecentPushRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []RecentPushRecord
	if _, err := s.kv.GetJSON(ctx, RecentKey, &records); err != nil {
		return nil, fmt.Errorf("load recent pushes: %w", err)
	}
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}
	out := make([]RecentPushRecord, 0, limit)
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	return out, nil
}

func decodeCounters(raw json.RawMessage) (Counters, error) {
	var counters Counters
	if len(raw) == 0 {
		return counters, nil
	}
	if err := json.Unmarshal(raw, &counters); err != nil {
		return Counters{}, fmt.Errorf("decode stats: %w", err)
	}
	return counters, nil
}
