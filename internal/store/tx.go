package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"conductor/internal/logging"
)

// querier is the surface shared by *sql.DB and *sql.Tx; repositories run
// against whichever the ambient context provides.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// txState is the ambient transaction carried through the context so nested
// Transaction calls discover it without parameter passing.
type txState struct {
	tx    *sql.Tx
	depth int
	seq   int
}

type txKey struct{}

// conn returns the ambient transaction if one is open, the pool otherwise.
func (s *Store) conn(ctx context.Context) querier {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return st.tx
	}
	return s.db
}

// InTransaction reports whether the context carries an open transaction.
func (s *Store) InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// Transaction runs fn atomically. The outermost call opens a real
// transaction, commits on normal return and rolls back on error. Nested
// calls reuse the ambient transaction and wrap fn in a uniquely named
// savepoint, so a nested failure rolls back only its own work.
//
// Transient busy errors retry the outermost transaction a bounded number
// of times.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if st, ok := ctx.Value(txKey{}).(*txState); ok {
		return s.savepoint(ctx, st, fn)
	}

	const maxAttempts = 3
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.runRootTx(ctx, fn)
		if err == nil || !isTransient(err) || ctx.Err() != nil {
			return err
		}
		logging.StoreDebug("transient tx failure (attempt %d/%d): %v", attempt, maxAttempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return err
}

func (s *Store) runRootTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	st := &txState{tx: tx, depth: 0}
	txCtx := context.WithValue(ctx, txKey{}, st)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logging.Get(logging.CategoryStore).Warn("rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// savepoint wraps fn in SAVEPOINT/RELEASE on the ambient transaction.
func (s *Store) savepoint(ctx context.Context, st *txState, fn func(ctx context.Context) error) error {
	st.depth++
	st.seq++
	name := fmt.Sprintf("sp_%d_%d", st.depth, st.seq)
	defer func() { st.depth-- }()

	if _, err := st.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := st.tx.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			logging.Get(logging.CategoryStore).Warn("rollback to %s failed: %v", name, rbErr)
		}
		_, _ = st.tx.ExecContext(ctx, "RELEASE "+name)
		return err
	}
	if _, err := st.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}

// isTransient reports whether the error is a retryable SQLite condition
// (locked database, busy handle) rather than a real failure.
func isTransient(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}
