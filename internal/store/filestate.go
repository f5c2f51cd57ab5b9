package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FileState is the authoritative per-file metadata record used for change
// detection. Exactly one row exists per relative path; deletion is soft.
type FileState struct {
	FileID      int64
	RelPath     string
	ContentHash string
	SizeBytes   int64
	MTimeNs     int64
	Language    string
	Kind        string
	Fingerprint string
	IndexedAt   time.Time
	IsDeleted   bool
}

// UpsertFileState inserts or refreshes the row for a relative path and
// returns its surrogate file id. Upserting an entry clears any soft-delete.
func (s *Store) UpsertFileState(ctx context.Context, f *FileState) (int64, error) {
	if f.RelPath == "" {
		return 0, fmt.Errorf("file state requires rel_path")
	}
	if f.IndexedAt.IsZero() {
		f.IndexedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO file_state (rel_path, content_hash, size_bytes, mtime_ns,
			language, kind, fingerprint, indexed_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(rel_path) DO UPDATE SET
			content_hash=excluded.content_hash, size_bytes=excluded.size_bytes,
			mtime_ns=excluded.mtime_ns, language=excluded.language,
			kind=excluded.kind, fingerprint=excluded.fingerprint,
			indexed_at=excluded.indexed_at, is_deleted=0`,
		f.RelPath, f.ContentHash, f.SizeBytes, f.MTimeNs,
		nullString(f.Language), nullString(f.Kind), nullString(f.Fingerprint), f.IndexedAt)
	if err != nil {
		return 0, fmt.Errorf("upsert file_state %s: %w", f.RelPath, err)
	}

	var id int64
	err = s.conn(ctx).QueryRowContext(ctx,
		`SELECT file_id FROM file_state WHERE rel_path = ?`, f.RelPath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("file_state id for %s: %w", f.RelPath, err)
	}
	f.FileID = id
	return id, nil
}

// GetFileState loads the row for a relative path; (nil, nil) when absent.
func (s *Store) GetFileState(ctx context.Context, relPath string) (*FileState, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT file_id, rel_path, content_hash, size_bytes, mtime_ns,
			language, kind, fingerprint, indexed_at, is_deleted
		FROM file_state WHERE rel_path = ?`, relPath)
	f, err := scanFileState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// ActiveFileStates returns every non-deleted row keyed by relative path.
func (s *Store) ActiveFileStates(ctx context.Context) (map[string]*FileState, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT file_id, rel_path, content_hash, size_bytes, mtime_ns,
			language, kind, fingerprint, indexed_at, is_deleted
		FROM file_state WHERE is_deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("active file states: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*FileState)
	for rows.Next() {
		f, err := scanFileState(rows)
		if err != nil {
			return nil, err
		}
		out[f.RelPath] = f
	}
	return out, rows.Err()
}

// MarkFileDeleted soft-deletes the row and removes dependent chunks,
// embeddings and links. Cascade lives here, not in the schema.
func (s *Store) MarkFileDeleted(ctx context.Context, relPath string) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		f, err := s.GetFileState(ctx, relPath)
		if err != nil {
			return err
		}
		if f == nil {
			return nil
		}
		if err := s.DeleteChunksForFile(ctx, f.FileID); err != nil {
			return err
		}
		_, err = s.conn(ctx).ExecContext(ctx,
			`UPDATE file_state SET is_deleted = 1, indexed_at = ? WHERE file_id = ?`,
			time.Now().UTC(), f.FileID)
		if err != nil {
			return fmt.Errorf("mark deleted %s: %w", relPath, err)
		}
		return nil
	})
}

func scanFileState(r rowScanner) (*FileState, error) {
	var (
		f                        FileState
		lang, kind, fingerprint  sql.NullString
		deleted                  int
	)
	err := r.Scan(&f.FileID, &f.RelPath, &f.ContentHash, &f.SizeBytes, &f.MTimeNs,
		&lang, &kind, &fingerprint, &f.IndexedAt, &deleted)
	if err != nil {
		return nil, err
	}
	f.Language = lang.String
	f.Kind = kind.String
	f.Fingerprint = fingerprint.String
	f.IsDeleted = deleted != 0
	return &f, nil
}
