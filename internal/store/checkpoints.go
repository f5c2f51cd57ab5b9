package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"conductor/internal/types"
)

// WorkflowCheckpoint is an executor's persisted intermediate state for a
// task, so an interrupted run can resume instead of starting over.
type WorkflowCheckpoint struct {
	ID        string
	TaskID    string
	Strategy  types.RoutingStrategy
	State     string // executor-defined JSON
	CreatedAt time.Time
}

// SaveCheckpoint upserts a checkpoint.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *WorkflowCheckpoint) error {
	if cp.ID == "" || cp.TaskID == "" {
		return &types.DomainError{Kind: types.ErrValidation, Message: "checkpoint requires id and taskId"}
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO workflow_checkpoints (id, task_id, strategy, state, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state`,
		cp.ID, cp.TaskID, string(cp.Strategy), cp.State, cp.CreatedAt)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.ID, err)
	}
	return nil
}

// GetCheckpoint loads one checkpoint by id.
func (s *Store) GetCheckpoint(ctx context.Context, id string) (*WorkflowCheckpoint, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, task_id, strategy, state, created_at
		FROM workflow_checkpoints WHERE id = ?`, id)
	cp, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, &types.DomainError{Kind: types.ErrNotFound, Message: "checkpoint not found"}
	}
	return cp, err
}

// CheckpointsForTask lists a task's checkpoints, oldest first.
func (s *Store) CheckpointsForTask(ctx context.Context, taskID string) ([]*WorkflowCheckpoint, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, task_id, strategy, state, created_at
		FROM workflow_checkpoints WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("checkpoints for %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []*WorkflowCheckpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// DeleteCheckpointsForTask drops a task's checkpoints. Called after a run
// completes so stale state cannot be resumed.
func (s *Store) DeleteCheckpointsForTask(ctx context.Context, taskID string) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM workflow_checkpoints WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("delete checkpoints for %s: %w", taskID, err)
	}
	return nil
}

func scanCheckpoint(r rowScanner) (*WorkflowCheckpoint, error) {
	var (
		cp       WorkflowCheckpoint
		strategy string
	)
	if err := r.Scan(&cp.ID, &cp.TaskID, &strategy, &cp.State, &cp.CreatedAt); err != nil {
		return nil, err
	}
	cp.Strategy = types.RoutingStrategy(strategy)
	return &cp, nil
}
