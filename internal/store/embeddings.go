package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Embedding is one model's vector for one chunk. UNIQUE(chunk_id, model).
type Embedding struct {
	EmbeddingID int64
	ChunkID     int64
	Model       string
	Dimensions  int
	Vector      []float32
	CreatedAt   time.Time
}

// UpsertEmbedding stores or replaces the vector for (chunk, model).
func (s *Store) UpsertEmbedding(ctx context.Context, e *Embedding) error {
	if e.Dimensions <= 0 || len(e.Vector) != e.Dimensions {
		return fmt.Errorf("embedding for chunk %d: vector length %d != dimensions %d",
			e.ChunkID, len(e.Vector), e.Dimensions)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO embeddings (chunk_id, model, dimensions, vector, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, model) DO UPDATE SET
			dimensions=excluded.dimensions, vector=excluded.vector,
			created_at=excluded.created_at`,
		e.ChunkID, e.Model, e.Dimensions, EncodeVector(e.Vector), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert embedding chunk=%d model=%s: %w", e.ChunkID, e.Model, err)
	}
	return nil
}

// EmbeddingForChunk loads the vector for (chunk, model); (nil, nil) if absent.
func (s *Store) EmbeddingForChunk(ctx context.Context, chunkID int64, model string) (*Embedding, error) {
	var (
		e    Embedding
		blob []byte
	)
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT embedding_id, chunk_id, model, dimensions, vector, created_at
		FROM embeddings WHERE chunk_id = ? AND model = ?`, chunkID, model).
		Scan(&e.EmbeddingID, &e.ChunkID, &e.Model, &e.Dimensions, &blob, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("embedding chunk=%d model=%s: %w", chunkID, model, err)
	}
	e.Vector, err = DecodeVector(blob)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CountEmbeddings returns how many vectors a model has stored.
func (s *Store) CountEmbeddings(ctx context.Context, model string) (int64, error) {
	var n int64
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE model = ?`, model).Scan(&n)
	return n, err
}
