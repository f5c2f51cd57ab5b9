package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"conductor/internal/config"
	"conductor/internal/indexer"
	"conductor/internal/logging"
	"conductor/internal/store"
	"conductor/internal/types"
)

// Orchestrator runs one bulk index over the configured roots. Each run is
// recorded in the jobs table; per-path progress lives in the tracker.
type Orchestrator struct {
	db      *store.Store
	indexer *indexer.Indexer
	tracker *ProgressTracker
	errors  *ErrorLogger
	cfg     config.ContextConfig
	root    string
}

// New creates a bootstrap orchestrator rooted at the project directory.
func New(db *store.Store, ix *indexer.Indexer, cfg config.ContextConfig, root string) *Orchestrator {
	return &Orchestrator{
		db:      db,
		indexer: ix,
		tracker: NewProgressTracker(db),
		errors:  NewErrorLogger(db),
		cfg:     cfg,
		root:    filepath.Clean(root),
	}
}

// Tracker exposes the progress tracker (status surfaces read it).
func (o *Orchestrator) Tracker() *ProgressTracker { return o.tracker }

// Run executes the bootstrap: scan, prioritize, merge with any prior
// unfinished progress (the fresh scan wins), then index path by path. A
// per-file failure marks that path FAILED and the run continues.
func (o *Orchestrator) Run(ctx context.Context) (Progress, error) {
	timer := logging.StartTimer(logging.CategoryBootstrap, "Run")
	defer timer.Stop()

	jobID := uuid.NewString()
	if err := o.db.CreateJob(ctx, jobID, "bootstrap", o.root); err != nil {
		return Progress{}, err
	}
	if err := o.db.StartJob(ctx, jobID); err != nil {
		return Progress{}, err
	}

	progress, err := o.run(ctx)
	jobErr := ""
	if err != nil {
		jobErr = err.Error()
	}
	if ferr := o.db.FinishJob(ctx, jobID, jobErr); ferr != nil {
		logging.Get(logging.CategoryBootstrap).Warn("finish job %s: %v", jobID, ferr)
	}
	return progress, err
}

func (o *Orchestrator) run(ctx context.Context) (Progress, error) {
	files, err := o.scan()
	if err != nil {
		return Progress{}, err
	}

	maxBytes := int64(o.cfg.Indexing.MaxFileSizeMb) << 20
	files = indexer.Prioritize(files, o.cfg.Bootstrap, maxBytes)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	paths = o.mergeWithRemaining(ctx, paths)

	if err := o.tracker.InitProgress(ctx, paths); err != nil {
		return Progress{}, err
	}
	logging.Get(logging.CategoryBootstrap).Info("bootstrap: %d paths queued", len(paths))

	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return o.progressOr(ctx, err)
		}
		if err := o.tracker.MarkProcessing(ctx, rel); err != nil {
			return o.progressOr(ctx, err)
		}
		if err := o.indexer.IndexFile(ctx, rel); err != nil {
			if types.KindOf(err) == types.ErrCancelled {
				return o.progressOr(ctx, err)
			}
			if merr := o.tracker.MarkFailed(ctx, rel, err.Error()); merr != nil {
				return o.progressOr(ctx, merr)
			}
			if lerr := o.errors.Log(ctx, rel, "index", err.Error()); lerr != nil {
				logging.Get(logging.CategoryBootstrap).Warn("error log for %s: %v", rel, lerr)
			}
			continue
		}
		if err := o.tracker.MarkCompleted(ctx, rel); err != nil {
			return o.progressOr(ctx, err)
		}
	}

	return o.tracker.GetProgress(ctx)
}

func (o *Orchestrator) progressOr(ctx context.Context, cause error) (Progress, error) {
	p, err := o.tracker.GetProgress(ctx)
	if err != nil {
		return Progress{}, cause
	}
	return p, cause
}

// scan walks the configured watch paths (the root itself when none are
// configured) collecting indexable files.
func (o *Orchestrator) scan() ([]indexer.FileInfo, error) {
	roots := o.cfg.Watcher.WatchPaths
	if len(roots) == 0 {
		roots = []string{o.root}
	}

	allowed := make(map[string]bool, len(o.cfg.Indexing.AllowedExtensions))
	for _, ext := range o.cfg.Indexing.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	var files []indexer.FileInfo
	for _, dir := range roots {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if o.ignored(name) {
					return filepath.SkipDir
				}
				return nil
			}
			if o.ignored(name) {
				return nil
			}
			if len(allowed) > 0 && !allowed[strings.ToLower(filepath.Ext(name))] {
				return nil
			}
			rel, err := filepath.Rel(o.root, path)
			if err != nil || strings.HasPrefix(rel, "..") {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			files = append(files, indexer.FileInfo{
				Path:      filepath.ToSlash(rel),
				SizeBytes: info.Size(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}
	return files, nil
}

func (o *Orchestrator) ignored(name string) bool {
	for _, pat := range o.cfg.Watcher.IgnorePatterns {
		if ok, _ := filepath.Match(pat, name); ok || name == pat {
			return true
		}
	}
	return false
}

// mergeWithRemaining unions the fresh scan with unfinished paths from a
// prior run. Scan order wins; leftovers append at the end.
func (o *Orchestrator) mergeWithRemaining(ctx context.Context, scanned []string) []string {
	remaining, err := o.tracker.GetRemaining(ctx)
	if err != nil {
		logging.Get(logging.CategoryBootstrap).Warn("prior progress unavailable: %v", err)
		return scanned
	}
	seen := make(map[string]bool, len(scanned))
	for _, p := range scanned {
		seen[p] = true
	}
	out := scanned
	for _, p := range remaining {
		if !seen[p] {
			out = append(out, p)
		}
	}
	return out
}
