package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// JobStatus tracks a background run (currently bootstrap jobs).
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
)

// Job is one recorded background run.
type Job struct {
	ID         string
	Kind       string
	Status     JobStatus
	Payload    string
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// CreateJob records a new queued job.
func (s *Store) CreateJob(ctx context.Context, id, kind, payload string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO jobs (id, kind, status, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, kind, string(JobQueued), nullString(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create job %s: %w", id, err)
	}
	return nil
}

// StartJob marks a job running.
func (s *Store) StartJob(ctx context.Context, id string) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(JobRunning), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("start job %s: %w", id, err)
	}
	return nil
}

// FinishJob records the terminal state; errMsg empty means success.
func (s *Store) FinishJob(ctx context.Context, id string, errMsg string) error {
	status := JobSucceeded
	if errMsg != "" {
		status = JobFailed
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), nullString(errMsg), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	return nil
}

// JobsByStatus lists jobs in a status, newest first.
func (s *Store) JobsByStatus(ctx context.Context, status JobStatus) ([]*Job, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT id, kind, status, payload, error, created_at, started_at, finished_at
		FROM jobs WHERE status = ? ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("jobs by status: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		var (
			j                    Job
			st                   string
			payload, jobErr      sql.NullString
			startedAt, finishedAt sql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.Kind, &st, &payload, &jobErr,
			&j.CreatedAt, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		j.Status = JobStatus(st)
		j.Payload = payload.String
		j.Error = jobErr.String
		j.StartedAt = timeOf(startedAt)
		j.FinishedAt = timeOf(finishedAt)
		out = append(out, &j)
	}
	return out, rows.Err()
}
