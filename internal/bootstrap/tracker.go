// Package bootstrap bulk-indexes a project: scan the configured roots,
// prioritize, then push every file through the incremental indexer while
// recording durable progress so an interrupted run resumes where it stopped.
package bootstrap

import (
	"context"

	"conductor/internal/store"
)

// Progress summarizes the tracker's counts.
type Progress struct {
	Total     int
	Completed int
	Failed    int
	Pending   int
}

// ProgressTracker is the store-backed record of which paths a bootstrap run
// has handled. Progress survives restarts.
type ProgressTracker struct {
	db *store.Store
}

// NewProgressTracker creates a tracker over the store.
func NewProgressTracker(db *store.Store) *ProgressTracker {
	return &ProgressTracker{db: db}
}

// InitProgress replaces prior pending state with a fresh PENDING set.
// Completed rows from earlier runs are kept so resumed runs skip them.
func (t *ProgressTracker) InitProgress(ctx context.Context, paths []string) error {
	return t.db.ReplaceBootstrapPending(ctx, paths)
}

// MarkProcessing flags a path as in flight.
func (t *ProgressTracker) MarkProcessing(ctx context.Context, path string) error {
	return t.db.SetBootstrapStatus(ctx, path, store.BootstrapProcessing, "")
}

// MarkCompleted flags a path done.
func (t *ProgressTracker) MarkCompleted(ctx context.Context, path string) error {
	return t.db.SetBootstrapStatus(ctx, path, store.BootstrapCompleted, "")
}

// MarkFailed flags a path failed with its error message.
func (t *ProgressTracker) MarkFailed(ctx context.Context, path, message string) error {
	return t.db.SetBootstrapStatus(ctx, path, store.BootstrapFailed, message)
}

// GetProgress returns the current counts.
func (t *ProgressTracker) GetProgress(ctx context.Context) (Progress, error) {
	entries, err := t.db.BootstrapEntries(ctx)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case store.BootstrapCompleted:
			p.Completed++
		case store.BootstrapFailed:
			p.Failed++
		default:
			p.Pending++
		}
	}
	return p, nil
}

// GetRemaining returns every path not yet COMPLETED.
func (t *ProgressTracker) GetRemaining(ctx context.Context) ([]string, error) {
	entries, err := t.db.BootstrapEntries(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Status != store.BootstrapCompleted {
			out = append(out, e.Path)
		}
	}
	return out, nil
}

// Reset wipes the tracker.
func (t *ProgressTracker) Reset(ctx context.Context) error {
	return t.db.ClearBootstrapProgress(ctx)
}

// ErrorLogger captures per-file indexing failures for later inspection.
type ErrorLogger struct {
	db *store.Store
}

// NewErrorLogger creates an error logger over the store.
func NewErrorLogger(db *store.Store) *ErrorLogger {
	return &ErrorLogger{db: db}
}

// Log records one failure.
func (l *ErrorLogger) Log(ctx context.Context, path, phase, message string) error {
	return l.db.LogBootstrapError(ctx, path, phase, message)
}
