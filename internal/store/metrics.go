package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"conductor/internal/types"
)

// RecordUsage appends per-task token usage (written at decision time).
func (s *Store) RecordUsage(ctx context.Context, taskID, agentID string, usage types.TokenUsage) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO usage_metrics (task_id, agent_id, tokens_in, tokens_out, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		taskID, nullString(agentID), usage.In, usage.Out, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record usage for %s: %w", taskID, err)
	}
	return nil
}

// TaskTokenTotals sums recorded usage for a task.
func (s *Store) TaskTokenTotals(ctx context.Context, taskID string) (types.TokenUsage, error) {
	var u types.TokenUsage
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(tokens_in), 0), COALESCE(SUM(tokens_out), 0)
		FROM usage_metrics WHERE task_id = ?`, taskID).Scan(&u.In, &u.Out)
	if err != nil {
		return u, fmt.Errorf("token totals for %s: %w", taskID, err)
	}
	return u, nil
}

// RecordMetric appends one counter/gauge sample to the timeseries.
func (s *Store) RecordMetric(ctx context.Context, name string, value float64) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO metrics_timeseries (name, value, recorded_at) VALUES (?, ?, ?)`,
		name, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record metric %s: %w", name, err)
	}
	return nil
}

// LatestMetric returns the most recent sample of a named series, 0 if none.
func (s *Store) LatestMetric(ctx context.Context, name string) (float64, error) {
	var v float64
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT value FROM metrics_timeseries WHERE name = ?
		ORDER BY recorded_at DESC, id DESC LIMIT 1`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("latest metric %s: %w", name, err)
	}
	return v, nil
}
