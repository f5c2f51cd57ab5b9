package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"conductor/internal/embedding"
	"conductor/internal/logging"
	"conductor/internal/store"
	"conductor/internal/types"
)

// embedConcurrency bounds in-flight embedding requests per file.
const embedConcurrency = 4

// Indexer applies changes to the context tables. Each file updates inside
// one transaction, so a mid-file failure leaves its old state intact.
type Indexer struct {
	db       *store.Store
	embedder embedding.Engine // nil disables vectors
	detector *ChangeDetector
	root     string

	wg sync.WaitGroup
}

// NewIndexer creates an indexer rooted at the project directory.
func NewIndexer(db *store.Store, embedder embedding.Engine, root string) *Indexer {
	root = filepath.Clean(root)
	return &Indexer{
		db:       db,
		embedder: embedder,
		detector: NewChangeDetector(db, root),
		root:     root,
	}
}

// Update detects changes among the given absolute paths and applies them.
// Per-file failures are isolated: the rest of the batch still indexes, and
// the first error comes back wrapped as indexing_per_file.
func (ix *Indexer) Update(ctx context.Context, paths []string) (*ChangeSet, error) {
	timer := logging.StartTimer(logging.CategoryIndexer, "Update")
	defer timer.Stop()

	cs, err := ix.detector.Detect(ctx, paths)
	if err != nil {
		return nil, err
	}

	var firstErr error
	for _, rel := range append(append([]string{}, cs.New...), cs.Modified...) {
		if err := ctx.Err(); err != nil {
			return cs, err
		}
		if err := ix.IndexFile(ctx, rel); err != nil {
			logging.Get(logging.CategoryIndexer).Error("index %s: %v", rel, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	for _, rel := range cs.Deleted {
		if err := ix.db.MarkFileDeleted(ctx, rel); err != nil {
			logging.Get(logging.CategoryIndexer).Error("delete %s: %v", rel, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if cs.Total() > 0 {
		if err := ix.db.RecordMetric(ctx, "indexer.files_updated", float64(cs.Total())); err != nil {
			logging.Get(logging.CategoryIndexer).Warn("metric write: %v", err)
		}
	}
	return cs, firstErr
}

// UpdateAsync runs Update on a background goroutine. The watcher calls this
// so a slow embedder never blocks event delivery.
func (ix *Indexer) UpdateAsync(ctx context.Context, paths []string) {
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		if _, err := ix.Update(ctx, paths); err != nil {
			logging.Get(logging.CategoryIndexer).Error("async update: %v", err)
		}
	}()
}

// Wait blocks until all async updates finish. Called on shutdown.
func (ix *Indexer) Wait() { ix.wg.Wait() }

// IndexFile chunks, embeds and persists one root-relative file.
func (ix *Indexer) IndexFile(ctx context.Context, relPath string) error {
	abs := filepath.Join(ix.root, filepath.FromSlash(relPath))

	content, err := os.ReadFile(abs)
	if err != nil {
		return perFileErr(relPath, "read", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return perFileErr(relPath, "stat", err)
	}
	hash, err := hashFile(abs)
	if err != nil {
		return perFileErr(relPath, "hash", err)
	}

	chunks, language := ChunkFile(ctx, relPath, content)

	// Embeddings are computed before the transaction opens; network calls do
	// not belong inside a write transaction.
	vectors, err := ix.embedChunks(ctx, chunks)
	if err != nil {
		return perFileErr(relPath, "embed", err)
	}

	err = ix.db.Transaction(ctx, func(ctx context.Context) error {
		fileID, err := ix.db.UpsertFileState(ctx, &store.FileState{
			RelPath:     relPath,
			ContentHash: hash,
			SizeBytes:   info.Size(),
			MTimeNs:     info.ModTime().UnixNano(),
			Language:    language,
			Kind:        kindOfFile(language),
		})
		if err != nil {
			return err
		}
		if err := ix.db.ReplaceChunksForFile(ctx, fileID, chunks); err != nil {
			return err
		}
		for i, c := range chunks {
			if vectors != nil {
				if err := ix.db.UpsertEmbedding(ctx, &store.Embedding{
					ChunkID:    c.ChunkID,
					Model:      ix.embedder.Name(),
					Dimensions: len(vectors[i]),
					Vector:     vectors[i],
				}); err != nil {
					return err
				}
			}
			// Navigation edge to the next chunk of the same file.
			if i+1 < len(chunks) {
				if err := ix.db.InsertLink(ctx, &store.Link{
					SourceChunkID: c.ChunkID,
					TargetFileID:  fileID,
					TargetChunkID: chunks[i+1].ChunkID,
					Type:          "next",
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return perFileErr(relPath, "persist", err)
	}

	logging.IndexerDebug("indexed %s: %d chunks (%s)", relPath, len(chunks), language)
	return nil
}

// embedChunks returns one vector per chunk, or nil when embedding is off.
func (ix *Indexer) embedChunks(ctx context.Context, chunks []*store.Chunk) ([][]float32, error) {
	if ix.embedder == nil || len(chunks) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			v, err := ix.embedder.Embed(gctx, c.Content)
			if err != nil {
				return err
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func kindOfFile(language string) string {
	switch language {
	case "markdown":
		return "doc"
	case "":
		return "other"
	default:
		return "source"
	}
}

func perFileErr(relPath, phase string, err error) error {
	return &types.DomainError{
		Kind:    types.ErrIndexingPerFile,
		Message: fmt.Sprintf("%s failed for %s", phase, relPath),
		Err:     err,
	}
}
