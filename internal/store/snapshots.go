package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ContextSnapshot captures the context payload a consensus run was decided
// against, for audit. Rows reference tasks and (optionally) decisions.
type ContextSnapshot struct {
	ID         int64
	TaskID     string
	DecisionID string
	Payload    string
	CreatedAt  time.Time
}

// InsertSnapshot records a snapshot. The referenced decision must already
// exist; decisions are never deleted, so snapshots never orphan.
func (s *Store) InsertSnapshot(ctx context.Context, snap *ContextSnapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO context_snapshots (task_id, decision_id, payload, created_at)
		VALUES (?, ?, ?, ?)`,
		snap.TaskID, nullString(snap.DecisionID), snap.Payload, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot for %s: %w", snap.TaskID, err)
	}
	snap.ID, _ = res.LastInsertId()
	return nil
}

// SnapshotsForTask lists a task's snapshots, oldest first.
func (s *Store) SnapshotsForTask(ctx context.Context, taskID string) ([]*ContextSnapshot, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, task_id, decision_id, payload, created_at
		FROM context_snapshots WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("snapshots for %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []*ContextSnapshot
	for rows.Next() {
		var (
			snap       ContextSnapshot
			decisionID sql.NullString
		)
		if err := rows.Scan(&snap.ID, &snap.TaskID, &decisionID, &snap.Payload, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snap.DecisionID = decisionID.String
		out = append(out, &snap)
	}
	return out, rows.Err()
}
