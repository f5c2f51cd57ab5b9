package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxReasonableFileSizeMb caps the per-file size knobs; anything bigger than
// a gigabyte per file is a typo, not a policy.
const maxReasonableFileSizeMb = 1024

// dangerousWatchPaths are never accepted as watch roots.
var dangerousWatchPaths = map[string]bool{
	"/":     true,
	"/etc":  true,
	"/bin":  true,
	"/sbin": true,
	"/usr":  true,
	"/var":  true,
	"/boot": true,
	"/proc": true,
	"/sys":  true,
	"/dev":  true,
}

// Validate checks the configuration for the mistakes that produce confusing
// runtime behavior: malformed extensions, absurd size limits, watch paths
// that escape or target system directories, and watcher/indexing limits that
// disagree so much the intent is ambiguous.
func (c *Config) Validate() error {
	if err := validateExtensions("context.indexing.allowed_extensions", c.Context.Indexing.AllowedExtensions); err != nil {
		return err
	}
	if err := validateExtensions("context.bootstrap.priority_extensions", c.Context.Bootstrap.PriorityExtensions); err != nil {
		return err
	}

	if err := validateFileSizeMb("context.indexing.max_file_size_mb", c.Context.Indexing.MaxFileSizeMb); err != nil {
		return err
	}
	if err := validateFileSizeMb("context.watcher.max_file_size_mb", c.Context.Watcher.MaxFileSizeMb); err != nil {
		return err
	}

	// The watcher and the indexer both skip oversized files; when their
	// limits differ by more than 2x it is unclear which one the operator
	// meant, so reject rather than guess.
	wm, im := c.Context.Watcher.MaxFileSizeMb, c.Context.Indexing.MaxFileSizeMb
	if wm > 2*im || im > 2*wm {
		return fmt.Errorf("ambiguous configuration: watcher.max_file_size_mb=%d and indexing.max_file_size_mb=%d differ by more than a factor of two", wm, im)
	}

	for _, p := range c.Context.Watcher.WatchPaths {
		if err := validateWatchPath(p); err != nil {
			return err
		}
	}

	if t := c.Consensus.Voting.Threshold; t <= 0 || t > 1 {
		return fmt.Errorf("consensus.voting.threshold %v outside (0,1]", t)
	}
	if c.Context.Watcher.DebounceMs < 0 {
		return fmt.Errorf("context.watcher.debounce_ms must be >= 0")
	}
	if c.Storage.DB.PoolSize < 1 {
		return fmt.Errorf("storage.db.pool_size must be >= 1")
	}
	return nil
}

func validateExtensions(field string, exts []string) error {
	for _, ext := range exts {
		if strings.TrimSpace(ext) == "" {
			return fmt.Errorf("%s contains a blank extension", field)
		}
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%s: extension %q must start with '.'", field, ext)
		}
	}
	return nil
}

func validateFileSizeMb(field string, mb int) error {
	if mb <= 0 {
		return fmt.Errorf("%s must be positive, got %d", field, mb)
	}
	if mb > maxReasonableFileSizeMb {
		return fmt.Errorf("%s=%d exceeds the %dMB ceiling", field, mb, maxReasonableFileSizeMb)
	}
	return nil
}

func validateWatchPath(p string) error {
	if strings.Contains(p, "..") {
		return fmt.Errorf("watch path %q escapes via '..' traversal", p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("watch path %q: %w", p, err)
	}
	if dangerousWatchPaths[filepath.Clean(abs)] {
		return fmt.Errorf("watch path %q targets a protected system directory", p)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch path %q does not exist: %w", p, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch path %q is not a directory", p)
	}
	return nil
}
