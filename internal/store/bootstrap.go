package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BootstrapStatus is the per-path state of a bulk index run.
type BootstrapStatus string

const (
	BootstrapPending    BootstrapStatus = "PENDING"
	BootstrapProcessing BootstrapStatus = "PROCESSING"
	BootstrapCompleted  BootstrapStatus = "COMPLETED"
	BootstrapFailed     BootstrapStatus = "FAILED"
)

// BootstrapEntry is one path's progress record.
type BootstrapEntry struct {
	Path      string
	Status    BootstrapStatus
	LastError string
	UpdatedAt time.Time
}

// ReplaceBootstrapPending replaces any prior pending state with a fresh
// PENDING set for the given paths. Completed rows from earlier runs are
// kept so a resumed bootstrap skips them.
func (s *Store) ReplaceBootstrapPending(ctx context.Context, paths []string) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		if _, err := q.ExecContext(ctx,
			`DELETE FROM bootstrap_progress WHERE status != ?`, string(BootstrapCompleted)); err != nil {
			return fmt.Errorf("clear pending bootstrap rows: %w", err)
		}
		now := time.Now().UTC()
		for _, p := range paths {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO bootstrap_progress (path, status, last_error, updated_at)
				VALUES (?, ?, NULL, ?)
				ON CONFLICT(path) DO UPDATE SET
					status=excluded.status, last_error=NULL, updated_at=excluded.updated_at`,
				p, string(BootstrapPending), now); err != nil {
				return fmt.Errorf("init bootstrap row %s: %w", p, err)
			}
		}
		return nil
	})
}

// SetBootstrapStatus updates one path's state, recording the error message
// for failures.
func (s *Store) SetBootstrapStatus(ctx context.Context, path string, status BootstrapStatus, lastError string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO bootstrap_progress (path, status, last_error, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			status=excluded.status, last_error=excluded.last_error,
			updated_at=excluded.updated_at`,
		path, string(status), nullString(lastError), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set bootstrap status %s=%s: %w", path, status, err)
	}
	return nil
}

// BootstrapEntries returns every progress row.
func (s *Store) BootstrapEntries(ctx context.Context) ([]*BootstrapEntry, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT path, status, last_error, updated_at FROM bootstrap_progress ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("bootstrap entries: %w", err)
	}
	defer rows.Close()

	var out []*BootstrapEntry
	for rows.Next() {
		var (
			e       BootstrapEntry
			status  string
			lastErr sql.NullString
		)
		if err := rows.Scan(&e.Path, &status, &lastErr, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Status = BootstrapStatus(status)
		e.LastError = lastErr.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ClearBootstrapProgress wipes the tracker.
func (s *Store) ClearBootstrapProgress(ctx context.Context) error {
	_, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM bootstrap_progress`)
	if err != nil {
		return fmt.Errorf("clear bootstrap progress: %w", err)
	}
	return nil
}

// LogBootstrapError appends a per-file indexing failure to bootstrap_errors.
func (s *Store) LogBootstrapError(ctx context.Context, path, phase, message string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO bootstrap_errors (path, phase, message, created_at)
		VALUES (?, ?, ?, ?)`,
		path, nullString(phase), message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("log bootstrap error for %s: %w", path, err)
	}
	return nil
}
