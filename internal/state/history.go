package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloudpush/internal/services"
)

// TransferHistoryRecord is one completed transfer registered by the host.
type TransferHistoryRecord struct {
	ID        int64     `json:"id"`
	Src       string    `json:"src"`
	Dest      string    `json:"dest"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// AddTransferHistory inserts a record and returns it with its assigned ID.
func (s *Store) AddTransferHistory(ctx context.Context, rec TransferHistoryRecord) (TransferHistoryRecord, error) {
	rec.Dest = strings.TrimSpace(rec.Dest)
	if rec.Dest == "" {
		return TransferHistoryRecord{}, services.Wrap(services.ErrValidation, "state", "add transfer history", "dest is required", nil)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ensureContext(ctx),
			`INSERT INTO transfer_history (src, dest, title, created_at) VALUES (?, ?, ?, ?)`,
			nullableString(rec.Src), rec.Dest, nullableString(rec.Title), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		rec.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return TransferHistoryRecord{}, fmt.Errorf("insert transfer history: %w", err)
	}
	return rec, nil
}

// TransferHistoryByDest returns the newest record whose destination equals dest.
// It returns an error wrapping services.ErrNotFound when there is none.
func (s *Store) TransferHistoryByDest(ctx context.Context, dest string) (*TransferHistoryRecord, error) {
	ctx = ensureContext(ctx)
	var rec *TransferHistoryRecord
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, src, dest, title, created_at FROM transfer_history
             WHERE dest = ? ORDER BY id DESC LIMIT 1`, dest)
		var scanErr error
		rec, scanErr = scanHistory(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "state", "transfer history", dest, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup transfer history: %w", err)
	}
	return rec, nil
}

// ListTransferHistory returns up to limit records, newest first.
func (s *Store) ListTransferHistory(ctx context.Context, limit int) ([]TransferHistoryRecord, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, src, dest, title, created_at FROM transfer_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfer history: %w", err)
	}
	defer rows.Close()

	var records []TransferHistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer history: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanHistory(scanner interface{ Scan(dest ...any) error }) (*TransferHistoryRecord, error) {
	var (
		id      int64
		src     sql.NullString
		dest    string
		title   sql.NullString
		created sql.NullString
	)
	if err := scanner.Scan(&id, &src, &dest, &title, &created); err != nil {
		return nil, err
	}
	return &TransferHistoryRecord{
		ID:        id,
		Src:       src.String,
		Dest:      dest,
		Title:     title.String,
		CreatedAt: parseTime(created),
	}, nil
}
