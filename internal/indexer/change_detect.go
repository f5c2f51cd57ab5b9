// Package indexer keeps the context tables in step with the project tree:
// change detection against stored file state, semantic chunking, embedding,
// and per-file transactional updates.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conductor/internal/logging"
	"conductor/internal/store"
)

// ChangeSet partitions scanned paths into four disjoint classes, relative to
// the project root.
type ChangeSet struct {
	New       []string
	Modified  []string
	Unchanged []string
	Deleted   []string
	ScannedAt time.Time
}

// Total counts the paths needing work.
func (c *ChangeSet) Total() int {
	return len(c.New) + len(c.Modified) + len(c.Deleted)
}

// ChangeDetector classifies paths against the stored FileState rows.
type ChangeDetector struct {
	db   *store.Store
	root string
}

// NewChangeDetector creates a detector rooted at the project directory.
func NewChangeDetector(db *store.Store, root string) *ChangeDetector {
	return &ChangeDetector{db: db, root: filepath.Clean(root)}
}

// Detect classifies the given absolute paths. Paths outside the root are
// logged and skipped. Active rows whose file is gone from disk and that were
// not in the scan list come back as deleted.
func (d *ChangeDetector) Detect(ctx context.Context, paths []string) (*ChangeSet, error) {
	states, err := d.db.ActiveFileStates(ctx)
	if err != nil {
		return nil, err
	}

	cs := &ChangeSet{ScannedAt: time.Now().UTC()}
	seen := make(map[string]bool, len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, ok := d.relPath(path)
		if !ok {
			logging.Get(logging.CategoryIndexer).Warn("path outside root, skipping: %s", path)
			continue
		}
		seen[rel] = true

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if _, known := states[rel]; known {
					cs.Deleted = append(cs.Deleted, rel)
				}
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}

		hash, err := hashFile(path)
		if err != nil {
			return nil, err
		}

		prev, known := states[rel]
		switch {
		case !known || prev.IsDeleted:
			cs.New = append(cs.New, rel)
		case prev.ContentHash == hash && prev.SizeBytes == info.Size() &&
			prev.MTimeNs == info.ModTime().UnixNano():
			cs.Unchanged = append(cs.Unchanged, rel)
		default:
			cs.Modified = append(cs.Modified, rel)
		}
	}

	for rel := range states {
		if seen[rel] {
			continue
		}
		if _, err := os.Stat(filepath.Join(d.root, rel)); os.IsNotExist(err) {
			cs.Deleted = append(cs.Deleted, rel)
		}
	}

	logging.IndexerDebug("change scan: %d new, %d modified, %d unchanged, %d deleted",
		len(cs.New), len(cs.Modified), len(cs.Unchanged), len(cs.Deleted))
	return cs, nil
}

// relPath normalizes an absolute path to the root-relative form used as the
// FileState key. Returns false for paths escaping the root.
func (d *ChangeDetector) relPath(path string) (string, bool) {
	rel, err := filepath.Rel(d.root, filepath.Clean(path))
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// hashFile streams the file through SHA-256.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
