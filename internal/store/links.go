package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Link is a typed edge from a chunk to another file (or chunk): an import,
// a markdown reference, a test-to-subject association.
type Link struct {
	LinkID        int64
	SourceChunkID int64
	TargetFileID  int64
	TargetChunkID int64 // 0 when the link targets the whole file
	Type          string
	Label         string
	Score         float64
	CreatedAt     time.Time
}

// InsertLink records an edge. Links are rebuilt with their owning chunk, so
// there is no upsert; ReplaceChunksForFile already removed the old set.
func (s *Store) InsertLink(ctx context.Context, l *Link) error {
	if l.Type == "" {
		return fmt.Errorf("link requires a type")
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	var targetChunk sql.NullInt64
	if l.TargetChunkID != 0 {
		targetChunk = sql.NullInt64{Int64: l.TargetChunkID, Valid: true}
	}
	var score sql.NullFloat64
	if l.Score != 0 {
		score = sql.NullFloat64{Float64: l.Score, Valid: true}
	}
	res, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO links (source_chunk_id, target_file_id, target_chunk_id,
			type, label, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.SourceChunkID, l.TargetFileID, targetChunk, l.Type,
		nullString(l.Label), score, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert link from chunk %d: %w", l.SourceChunkID, err)
	}
	l.LinkID, _ = res.LastInsertId()
	return nil
}

// LinksFromChunk returns the outgoing edges of a chunk.
func (s *Store) LinksFromChunk(ctx context.Context, chunkID int64) ([]*Link, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT link_id, source_chunk_id, target_file_id, target_chunk_id,
			type, label, score, created_at
		FROM links WHERE source_chunk_id = ? ORDER BY link_id`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("links from chunk %d: %w", chunkID, err)
	}
	defer rows.Close()

	var out []*Link
	for rows.Next() {
		var (
			l           Link
			targetChunk sql.NullInt64
			label       sql.NullString
			score       sql.NullFloat64
		)
		if err := rows.Scan(&l.LinkID, &l.SourceChunkID, &l.TargetFileID,
			&targetChunk, &l.Type, &label, &score, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.TargetChunkID = targetChunk.Int64
		l.Label = label.String
		l.Score = score.Float64
		out = append(out, &l)
	}
	return out, rows.Err()
}
