package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Chunk is a bounded, ordinally-stable, semantically-typed slice of a file.
type Chunk struct {
	ChunkID       int64
	FileID        int64
	Ordinal       int
	Kind          string
	StartLine     int // 1-based; 0 means unset (with EndLine)
	EndLine       int
	TokenEstimate int
	Content       string
	Summary       string
	CreatedAt     time.Time
}

// ReplaceChunksForFile atomically swaps a file's chunks for a new set.
// Old chunks and their embeddings/links go away; new ordinals must form a
// contiguous sequence starting at 0 (enforced by the caller's chunker and
// the UNIQUE(file_id, ordinal) constraint).
func (s *Store) ReplaceChunksForFile(ctx context.Context, fileID int64, chunks []*Chunk) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.DeleteChunksForFile(ctx, fileID); err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, c := range chunks {
			if c.Content == "" {
				return fmt.Errorf("chunk %d of file %d has blank content", c.Ordinal, fileID)
			}
			if c.CreatedAt.IsZero() {
				c.CreatedAt = now
			}
			res, err := s.conn(ctx).ExecContext(ctx, `
				INSERT INTO chunks (file_id, ordinal, kind, start_line, end_line,
					token_estimate, content, summary, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				fileID, c.Ordinal, c.Kind, nullInt(c.StartLine), nullInt(c.EndLine),
				nullInt(c.TokenEstimate), c.Content, nullString(c.Summary), c.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert chunk %d for file %d: %w", c.Ordinal, fileID, err)
			}
			c.FileID = fileID
			c.ChunkID, _ = res.LastInsertId()
		}
		return nil
	})
}

// ChunksForFile returns a file's chunks in ordinal order.
func (s *Store) ChunksForFile(ctx context.Context, fileID int64) ([]*Chunk, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT chunk_id, file_id, ordinal, kind, start_line, end_line,
			token_estimate, content, summary, created_at
		FROM chunks WHERE file_id = ? ORDER BY ordinal`, fileID)
	if err != nil {
		return nil, fmt.Errorf("chunks for file %d: %w", fileID, err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		var (
			c                        Chunk
			start, end, tokens       sql.NullInt64
			summary                  sql.NullString
		)
		if err := rows.Scan(&c.ChunkID, &c.FileID, &c.Ordinal, &c.Kind,
			&start, &end, &tokens, &c.Content, &summary, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.StartLine = int(start.Int64)
		c.EndLine = int(end.Int64)
		c.TokenEstimate = int(tokens.Int64)
		c.Summary = summary.String
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeleteChunksForFile removes a file's chunks plus their embeddings and
// links. Application-level cascade.
func (s *Store) DeleteChunksForFile(ctx context.Context, fileID int64) error {
	q := s.conn(ctx)
	_, err := q.ExecContext(ctx, `
		DELETE FROM embeddings WHERE chunk_id IN
			(SELECT chunk_id FROM chunks WHERE file_id = ?)`, fileID)
	if err != nil {
		return fmt.Errorf("delete embeddings for file %d: %w", fileID, err)
	}
	_, err = q.ExecContext(ctx, `
		DELETE FROM links WHERE source_chunk_id IN
			(SELECT chunk_id FROM chunks WHERE file_id = ?)`, fileID)
	if err != nil {
		return fmt.Errorf("delete links for file %d: %w", fileID, err)
	}
	_, err = q.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("delete chunks for file %d: %w", fileID, err)
	}
	return nil
}

func nullInt(v int) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}
