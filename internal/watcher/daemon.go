package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"conductor/internal/config"
	"conductor/internal/logging"
)

// pollInterval is how often the daemon checks the debouncer for settled paths.
const pollInterval = 50 * time.Millisecond

// Sink receives settled batches of changed paths. *indexer.Indexer is the
// production implementation.
type Sink interface {
	UpdateAsync(ctx context.Context, paths []string)
}

// Daemon keeps the context index in sync with the working tree. Events are
// debounced per path, filtered against the configured extensions and ignore
// patterns, then handed to the indexer in batches.
type Daemon struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	indexer  Sink
	cfg      config.ContextConfig
	root     string
	debounce *Debouncer
	batch    *Batcher
	allowed  map[string]bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// New creates a watcher daemon rooted at the project directory.
func New(cfg config.ContextConfig, ix Sink, root string) (*Daemon, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounceMs := cfg.Watcher.DebounceMs
	if debounceMs <= 0 {
		debounceMs = config.DefaultConfig().Context.Watcher.DebounceMs
	}

	allowed := make(map[string]bool, len(cfg.Indexing.AllowedExtensions))
	for _, ext := range cfg.Indexing.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	return &Daemon{
		watcher:  w,
		indexer:  ix,
		cfg:      cfg,
		root:     filepath.Clean(root),
		debounce: NewDebouncer(time.Duration(debounceMs) * time.Millisecond),
		batch:    NewBatcher(),
		allowed:  allowed,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs on its own
// goroutine until Stop or context cancellation.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.mu.Unlock()

	roots := d.cfg.Watcher.WatchPaths
	if len(roots) == 0 {
		roots = []string{d.root}
	}
	for _, dir := range roots {
		if err := d.watchTree(dir); err != nil {
			logging.Get(logging.CategoryWatcher).Warn("watch %s: %v", dir, err)
		}
	}
	logging.Watcher("watching %d directories under %s", len(d.watcher.WatchList()), d.root)

	go d.run(ctx)
	return nil
}

// Stop flushes any pending batch, then waits up to grace for the event loop
// to exit. The fsnotify handle is closed either way.
func (d *Daemon) Stop(grace time.Duration) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	select {
	case <-d.doneCh:
	case <-time.After(grace):
		logging.Get(logging.CategoryWatcher).Warn("stop: event loop did not exit within %s", grace)
	}

	if err := d.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatcher).Error("close: %v", err)
	}
	logging.Watcher("stopped")
}

func (d *Daemon) run(ctx context.Context) {
	defer close(d.doneCh)
	// Pending events flush on the way out so Stop never drops a change.
	defer d.flushAll(ctx)

	batchWindow := d.cfg.Watcher.BatchWindowMs
	if batchWindow <= 0 {
		batchWindow = config.DefaultConfig().Context.Watcher.BatchWindowMs
	}

	settleTicker := time.NewTicker(pollInterval)
	defer settleTicker.Stop()
	batchTicker := time.NewTicker(time.Duration(batchWindow) * time.Millisecond)
	defer batchTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.handleEvent(event)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatcher).Error("fsnotify: %v", err)

		case now := <-settleTicker.C:
			d.collect(d.debounce.Settle(now))

		case <-batchTicker.C:
			d.flushBatch(ctx)
		}
	}
}

func (d *Daemon) handleEvent(event fsnotify.Event) {
	var kind EventKind
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = KindCreated
	case event.Op&fsnotify.Write != 0:
		kind = KindModified
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = KindDeleted
	default:
		return
	}

	// New directories join the watch set so files created inside them are
	// seen. fsnotify does not recurse on its own.
	if kind == KindCreated {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !d.ignored(filepath.Base(event.Name)) {
				if err := d.watchTree(event.Name); err != nil {
					logging.Get(logging.CategoryWatcher).Warn("watch new dir %s: %v", event.Name, err)
				}
			}
			return
		}
	}

	d.debounce.Record(event.Name, kind, time.Now())
}

// collect filters settled paths into the batch.
func (d *Daemon) collect(settled map[string]EventKind) {
	for path, kind := range settled {
		if !d.accept(path) {
			continue
		}
		logging.WatcherDebug("%s %s", kind, path)
		d.batch.Add(path)
	}
}

func (d *Daemon) flushBatch(ctx context.Context) {
	paths := d.batch.Flush()
	if len(paths) == 0 {
		return
	}
	logging.Watcher("flushing %d changed paths", len(paths))
	d.indexer.UpdateAsync(ctx, paths)
}

// flushAll drains the debouncer regardless of quiescence and pushes the
// final batch. The shutdown flush uses a background context: the loop's
// context is usually already cancelled by the time we get here.
func (d *Daemon) flushAll(ctx context.Context) {
	d.collect(d.debounce.Drain())
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	d.flushBatch(ctx)
}

// accept reports whether a settled path should be indexed: under the root,
// allowed extension (when the list is set), no ignored path element.
func (d *Daemon) accept(path string) bool {
	rel, err := filepath.Rel(d.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if d.ignored(part) {
			return false
		}
	}
	if len(d.allowed) > 0 && !d.allowed[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	return true
}

func (d *Daemon) ignored(name string) bool {
	for _, pat := range d.cfg.Watcher.IgnorePatterns {
		if ok, _ := filepath.Match(pat, name); ok || name == pat {
			return true
		}
	}
	return false
}

// watchTree adds dir and every non-ignored subdirectory to the watch set.
func (d *Daemon) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != dir && d.ignored(entry.Name()) {
			return filepath.SkipDir
		}
		return d.watcher.Add(path)
	})
}
