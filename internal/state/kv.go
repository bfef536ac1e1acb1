package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GetJSON decodes the value stored under key into dst. It reports false when the key is absent.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	ctx = ensureContext(ctx)
	var raw string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON stores value under key, replacing any existing value.
func (s *Store) PutJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return putRaw(ctx, tx, key, data)
	})
}

// UpdateJSON performs a transactional read-modify-write of key. fn receives the
// stored JSON (nil when absent) and returns the value to persist. Returning an
// error aborts the update.
func (s *Store) UpdateJSON(ctx context.Context, key string, fn func(current json.RawMessage) (any, error)) error {
	ctx = ensureContext(ctx)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var raw sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read %s: %w", key, err)
		}
		var current json.RawMessage
		if raw.Valid {
			current = json.RawMessage(raw.String)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		return putRaw(ctx, tx, key, data)
	})
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ensureContext(ctx), `DELETE FROM kv WHERE key = ?`, key)
		return err
	})
}

func putRaw(ctx context.Context, tx *sql.Tx, key string, data []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
