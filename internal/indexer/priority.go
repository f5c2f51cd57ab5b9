package indexer

import (
	"path/filepath"
	"sort"
	"strings"

	"conductor/internal/config"
)

// FileInfo is the input to prioritization: a path plus its size.
type FileInfo struct {
	Path      string
	SizeBytes int64
}

// oversizePenalty demotes files above the size cap past every normal bucket.
const oversizePenalty = 100

// sizeBucketBytes groups sizes into 64 KiB steps so sort order does not churn
// on byte-level differences.
const sizeBucketBytes = 64 * 1024

// specialNames always land in the top priority bucket.
var specialNames = map[string]bool{
	"dockerfile":   true,
	"makefile":     true,
	"go.mod":       true,
	"package.json": true,
	"cargo.toml":   true,
	"readme.md":    true,
}

var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true,
	".tsx": true, ".rs": true, ".java": true, ".c": true, ".h": true,
	".cpp": true, ".sql": true, ".sh": true,
}

var docExtensions = map[string]bool{
	".md": true, ".markdown": true, ".rst": true, ".txt": true,
}

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".json": true, ".toml": true, ".ini": true,
}

// Prioritize orders files for indexing: priority bucket, then size bucket,
// then original position. The sort is stable so equal keys keep their input
// order.
func Prioritize(files []FileInfo, cfg config.BootstrapConfig, maxFileSizeBytes int64) []FileInfo {
	priority := make(map[string]bool, len(cfg.PriorityExtensions))
	for _, ext := range cfg.PriorityExtensions {
		priority[strings.ToLower(ext)] = true
	}

	out := make([]FileInfo, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := bucketOf(out[i], priority, maxFileSizeBytes), bucketOf(out[j], priority, maxFileSizeBytes)
		if bi != bj {
			return bi < bj
		}
		return out[i].SizeBytes/sizeBucketBytes < out[j].SizeBytes/sizeBucketBytes
	})
	return out
}

func bucketOf(f FileInfo, priority map[string]bool, maxFileSizeBytes int64) int {
	name := strings.ToLower(filepath.Base(f.Path))
	ext := strings.ToLower(filepath.Ext(f.Path))

	var bucket int
	switch {
	case specialNames[name] || priority[ext]:
		bucket = 0
	case sourceExtensions[ext]:
		bucket = 1
	case docExtensions[ext]:
		bucket = 2
	case configExtensions[ext]:
		bucket = 3
	default:
		bucket = 4
	}
	if maxFileSizeBytes > 0 && f.SizeBytes > maxFileSizeBytes {
		bucket += oversizePenalty
	}
	return bucket
}
