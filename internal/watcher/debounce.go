// Package watcher turns OS file events into incremental index updates.
// Pipeline: fsnotify events -> per-path debouncer -> root/extension/ignore
// filter -> batcher -> Indexer.UpdateAsync.
package watcher

import (
	"sync"
	"time"
)

// EventKind classifies a coalesced file event.
type EventKind int

const (
	KindCreated EventKind = iota
	KindModified
	KindDeleted
)

func (k EventKind) String() string {
	switch k {
	case KindCreated:
		return "CREATED"
	case KindModified:
		return "MODIFIED"
	case KindDeleted:
		return "DELETED"
	}
	return "UNKNOWN"
}

type pending struct {
	kind EventKind
	at   time.Time
}

// Debouncer coalesces rapid events per path. The last event wins the Kind;
// a path is released once it has been quiet for the configured window.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	paths  map[string]pending
}

// NewDebouncer creates a debouncer with the given quiescence window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		paths:  make(map[string]pending),
	}
}

// Record notes an event for a path, resetting its quiescence clock.
func (d *Debouncer) Record(path string, kind EventKind, at time.Time) {
	d.mu.Lock()
	d.paths[path] = pending{kind: kind, at: at}
	d.mu.Unlock()
}

// Settle returns every path quiet for at least the window and forgets it.
func (d *Debouncer) Settle(now time.Time) map[string]EventKind {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out map[string]EventKind
	for path, p := range d.paths {
		if now.Sub(p.at) < d.window {
			continue
		}
		if out == nil {
			out = make(map[string]EventKind)
		}
		out[path] = p.kind
		delete(d.paths, path)
	}
	return out
}

// Drain releases everything still pending regardless of quiescence.
// Called on shutdown so no recorded event is lost.
func (d *Debouncer) Drain() map[string]EventKind {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.paths) == 0 {
		return nil
	}
	out := make(map[string]EventKind, len(d.paths))
	for path, p := range d.paths {
		out[path] = p.kind
		delete(d.paths, path)
	}
	return out
}

// Len reports how many paths are still pending.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.paths)
}
