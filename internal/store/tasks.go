package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"conductor/internal/types"
)

// UpsertTask inserts or refreshes a task row.
func (s *Store) UpsertTask(ctx context.Context, t *types.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, type, status, routing, assignees,
			dependencies, complexity, risk, created_at, updated_at, due_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, description=excluded.description,
			type=excluded.type, status=excluded.status, routing=excluded.routing,
			assignees=excluded.assignees, dependencies=excluded.dependencies,
			complexity=excluded.complexity, risk=excluded.risk,
			updated_at=excluded.updated_at, due_at=excluded.due_at,
			metadata=excluded.metadata`,
		t.ID, t.Title, nullString(t.Description), string(t.Type), string(t.Status),
		string(t.Routing), marshalJSON(t.AssigneeIDs), marshalJSON(t.Dependencies),
		t.Complexity, t.Risk, t.CreatedAt, nullTime(t.UpdatedAt), nullTime(t.DueAt),
		marshalJSON(t.Metadata))
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask loads a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT id, title, description, type, status, routing, assignees,
			dependencies, complexity, risk, created_at, updated_at, due_at, metadata
		FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, &types.DomainError{Kind: types.ErrNotFound, Message: "task not found", TaskID: id}
	}
	return t, err
}

// SetTaskStatus updates only the status and updated_at columns.
func (s *Store) SetTaskStatus(ctx context.Context, id string, status types.TaskStatus) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &types.DomainError{Kind: types.ErrNotFound, Message: "task not found", TaskID: id}
	}
	return nil
}

// SetTaskRouting records the routing strategy chosen for a task.
func (s *Store) SetTaskRouting(ctx context.Context, id string, routing types.RoutingStrategy) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE tasks SET routing = ?, updated_at = ? WHERE id = ?`,
		string(routing), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set task routing: %w", err)
	}
	return nil
}

// SetTaskMetadata merges entries into the task's metadata map. The
// read-modify-write runs in a transaction so concurrent merges do not lose
// keys.
func (s *Store) SetTaskMetadata(ctx context.Context, id string, entries map[string]string) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		t, err := s.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if t.Metadata == nil {
			t.Metadata = make(map[string]string, len(entries))
		}
		for k, v := range entries {
			t.Metadata[k] = v
		}
		if _, err := s.conn(ctx).ExecContext(ctx,
			`UPDATE tasks SET metadata = ?, updated_at = ? WHERE id = ?`,
			marshalJSON(t.Metadata), time.Now().UTC(), id); err != nil {
			return fmt.Errorf("set task metadata: %w", err)
		}
		return nil
	})
}

// ListTasksByStatus returns tasks in a given status, oldest first.
func (s *Store) ListTasksByStatus(ctx context.Context, status types.TaskStatus) ([]*types.Task, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, title, description, type, status, routing, assignees,
			dependencies, complexity, risk, created_at, updated_at, due_at, metadata
		FROM tasks WHERE status = ? ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(r rowScanner) (*types.Task, error) {
	var (
		t                           types.Task
		desc, assignees, deps, meta sql.NullString
		taskType, status, routing   string
		updatedAt, dueAt            sql.NullTime
	)
	err := r.Scan(&t.ID, &t.Title, &desc, &taskType, &status, &routing,
		&assignees, &deps, &t.Complexity, &t.Risk, &t.CreatedAt, &updatedAt, &dueAt, &meta)
	if err != nil {
		return nil, err
	}
	t.Description = desc.String
	t.Type = types.TaskType(taskType)
	t.Status = types.TaskStatus(status)
	t.Routing = types.RoutingStrategy(routing)
	t.AssigneeIDs = unmarshalStrings(assignees)
	t.Dependencies = unmarshalStrings(deps)
	t.UpdatedAt = timeOf(updatedAt)
	t.DueAt = timeOf(dueAt)
	t.Metadata = unmarshalStringMap(meta)
	return &t, nil
}
