// Package store implements the embedded SQLite database behind conductor:
// schema initialization, savepoint-nested transactions, and typed CRUD for
// every persisted artifact (tasks, proposals, decisions, file state, chunks,
// embeddings, links, bootstrap progress, jobs, metrics, snapshots).
//
// All writes go through Transaction; repositories never open their own
// connections. Foreign-key cascade is enforced here in application code, not
// by the database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"conductor/internal/logging"
)

// Store owns the process-wide database pool.
type Store struct {
	db        *sql.DB
	dbPath    string
	vectorExt bool
}

// Open initializes the SQLite database at the given path. The schema is
// created idempotently inside one transaction on first acquisition.
func Open(path string, poolSize int, initSchema bool) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("opening store at %s", path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if poolSize < 1 {
		poolSize = 1
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("pragma failed (%s): %v", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: path}
	if initSchema {
		if err := s.initSchema(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	s.detectVecExtension()

	logging.Store("store ready (path=%s pool=%d)", path, poolSize)
	return s, nil
}

// schemaVersion is recorded in project_config on every open; a future
// migration path can branch on it.
const schemaVersion = "1"

// initSchema creates all tables and indexes inside a single transaction.
// Every statement is CREATE IF NOT EXISTS so re-running is harmless.
func (s *Store) initSchema(ctx context.Context) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)
		for _, ddl := range schemaDDL {
			if _, err := q.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("schema statement failed: %w", err)
			}
		}
		return s.SetProjectConfig(ctx, "schema_version", schemaVersion)
	})
}

// DB exposes the raw handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Checkpoint forces a WAL checkpoint. Called on shutdown and from the
// process-exit hook so a crash loses at most the in-flight transaction.
func (s *Store) Checkpoint() {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logging.Get(logging.CategoryStore).Warn("wal checkpoint failed: %v", err)
	}
}

// Close checkpoints the WAL and closes the pool.
func (s *Store) Close() error {
	logging.Store("closing store")
	s.Checkpoint()
	return s.db.Close()
}
