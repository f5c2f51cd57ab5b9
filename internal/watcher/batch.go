package watcher

import "sync"

// Batcher accumulates distinct paths between flushes so one index update
// covers a burst of settled events.
type Batcher struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewBatcher creates an empty batcher.
func NewBatcher() *Batcher {
	return &Batcher{paths: make(map[string]struct{})}
}

// Add queues a path for the next flush. Duplicates collapse.
func (b *Batcher) Add(path string) {
	b.mu.Lock()
	b.paths[path] = struct{}{}
	b.mu.Unlock()
}

// Flush returns the accumulated paths and clears the batch. Returns nil
// when nothing is queued.
func (b *Batcher) Flush() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(b.paths))
	for p := range b.paths {
		out = append(out, p)
	}
	b.paths = make(map[string]struct{})
	return out
}

// Len reports how many paths are queued.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.paths)
}
