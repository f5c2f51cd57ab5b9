package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"conductor/internal/store"
	"conductor/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:", 1, true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return abs
}

func TestDetectClassification(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	d := NewChangeDetector(s, root)
	ctx := context.Background()

	newPath := writeFile(t, root, "a.md", "# hello\n")

	cs, err := d.Detect(ctx, []string{newPath})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(cs.New) != 1 || cs.New[0] != "a.md" {
		t.Fatalf("new = %v", cs.New)
	}

	// Index it, then an unchanged rescan.
	ix := NewIndexer(s, nil, root)
	if err := ix.IndexFile(ctx, "a.md"); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	cs, err = d.Detect(ctx, []string{newPath})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(cs.Unchanged) != 1 || len(cs.New) != 0 {
		t.Fatalf("rescan = %+v", cs)
	}

	// Touch content: modified. Backdate mtime so a same-second write cannot
	// alias the stored state.
	if err := os.WriteFile(newPath, []byte("# hello\n\nmore\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(newPath, time.Now(), time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	cs, err = d.Detect(ctx, []string{newPath})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(cs.Modified) != 1 {
		t.Fatalf("after edit = %+v", cs)
	}

	// Remove from disk: deleted, even when not in the scan list.
	if err := os.Remove(newPath); err != nil {
		t.Fatal(err)
	}
	cs, err = d.Detect(ctx, nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(cs.Deleted) != 1 || cs.Deleted[0] != "a.md" {
		t.Fatalf("after remove = %+v", cs)
	}
}

func TestDetectRejectsPathsOutsideRoot(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	outside := writeFile(t, t.TempDir(), "evil.go", "package evil\n")

	cs, err := NewChangeDetector(s, root).Detect(context.Background(), []string{outside})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if cs.Total() != 0 || len(cs.Unchanged) != 0 {
		t.Errorf("outside path classified: %+v", cs)
	}
}

func TestDetectIdempotent(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	path := writeFile(t, root, "b.txt", "contents\n")
	ctx := context.Background()

	ix := NewIndexer(s, nil, root)
	if _, err := ix.Update(ctx, []string{path}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for i := 0; i < 3; i++ {
		cs, err := ix.detector.Detect(ctx, []string{path})
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if cs.Total() != 0 {
			t.Fatalf("rescan %d not idempotent: %+v", i, cs)
		}
	}
}

func TestIndexFilePersistsChunksAndLinks(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	writeFile(t, root, "doc.md", "# One\n\ntext\n\n# Two\n\nmore\n")
	ctx := context.Background()

	ix := NewIndexer(s, nil, root)
	if err := ix.IndexFile(ctx, "doc.md"); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	fs, err := s.GetFileState(ctx, "doc.md")
	if err != nil || fs == nil {
		t.Fatalf("GetFileState: %v %v", fs, err)
	}
	if fs.Language != "markdown" || fs.Kind != "doc" {
		t.Errorf("file state = %+v", fs)
	}

	chunks, err := s.ChunksForFile(ctx, fs.FileID)
	if err != nil {
		t.Fatalf("ChunksForFile: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d", len(chunks))
	}

	links, err := s.LinksFromChunk(ctx, chunks[0].ChunkID)
	if err != nil {
		t.Fatalf("LinksFromChunk: %v", err)
	}
	if len(links) != 1 || links[0].TargetChunkID != chunks[1].ChunkID {
		t.Errorf("links = %+v", links)
	}
}

// fixedEmbedder returns a constant-dimension vector derived from length.
type fixedEmbedder struct{ dims int }

func (f *fixedEmbedder) Name() string    { return "test/fixed" }
func (f *fixedEmbedder) Dimensions() int { return f.dims }
func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dims)
	v[0] = float32(len(text))
	return v, nil
}
func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, s := range texts {
		out[i], _ = f.Embed(ctx, s)
	}
	return out, nil
}

func TestIndexFileEmbeds(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	writeFile(t, root, "notes.md", "# A\n\nbody\n\n# B\n\nbody\n")
	ctx := context.Background()

	ix := NewIndexer(s, &fixedEmbedder{dims: 4}, root)
	if err := ix.IndexFile(ctx, "notes.md"); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	n, err := s.CountEmbeddings(ctx, "test/fixed")
	if err != nil {
		t.Fatalf("CountEmbeddings: %v", err)
	}
	if n != 2 {
		t.Errorf("embeddings = %d, want one per chunk", n)
	}

	fs, _ := s.GetFileState(ctx, "notes.md")
	chunks, _ := s.ChunksForFile(ctx, fs.FileID)
	emb, err := s.EmbeddingForChunk(ctx, chunks[0].ChunkID, "test/fixed")
	if err != nil || emb == nil {
		t.Fatalf("EmbeddingForChunk: %v %v", emb, err)
	}
	if emb.Dimensions != 4 || len(emb.Vector) != 4 {
		t.Errorf("embedding = %+v", emb)
	}
}

func TestUpdateHandlesDeletes(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	path := writeFile(t, root, "gone.md", "# soon gone\n")
	ctx := context.Background()

	ix := NewIndexer(s, nil, root)
	if _, err := ix.Update(ctx, []string{path}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	fs, _ := s.GetFileState(ctx, "gone.md")
	if fs == nil || fs.IsDeleted {
		t.Fatalf("file state after index = %+v", fs)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Update(ctx, nil); err != nil {
		t.Fatalf("Update after delete: %v", err)
	}

	fs, err := s.GetFileState(ctx, "gone.md")
	if err != nil {
		t.Fatalf("GetFileState: %v", err)
	}
	if fs == nil || !fs.IsDeleted {
		t.Fatalf("not soft-deleted: %+v", fs)
	}
	chunks, _ := s.ChunksForFile(ctx, fs.FileID)
	if len(chunks) != 0 {
		t.Errorf("chunks survived delete: %d", len(chunks))
	}
}

func TestIndexFileFailureIsPerFile(t *testing.T) {
	s := newTestStore(t)
	root := t.TempDir()
	ix := NewIndexer(s, nil, root)

	err := ix.IndexFile(context.Background(), "does/not/exist.md")
	if err == nil {
		t.Fatal("want error for missing file")
	}
	if types.KindOf(err) != types.ErrIndexingPerFile {
		t.Errorf("kind = %s", types.KindOf(err))
	}
	if !strings.Contains(err.Error(), "exist.md") {
		t.Errorf("error does not name the file: %v", err)
	}
}
