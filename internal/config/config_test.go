package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Consensus.Voting.Threshold, cfg.Consensus.Voting.Threshold)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
}

func TestLoadOverlaysOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
consensus:
  voting:
    threshold: 0.6
context:
  watcher:
    debounce_ms: 50
embedding:
  provider: none
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Consensus.Voting.Threshold)
	assert.Equal(t, 50, cfg.Context.Watcher.DebounceMs)
	assert.Equal(t, "none", cfg.Embedding.Provider)

	// Untouched sections keep their defaults.
	assert.Equal(t, 500, cfg.Context.Watcher.BatchWindowMs)
	assert.Equal(t, 1, cfg.Storage.DB.PoolSize)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("consensus: [not a map"), 0644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"blank extension", func(c *Config) {
			c.Context.Indexing.AllowedExtensions = []string{".go", " "}
		}, "blank extension"},
		{"extension without dot", func(c *Config) {
			c.Context.Bootstrap.PriorityExtensions = []string{"go"}
		}, "must start with '.'"},
		{"zero file size", func(c *Config) {
			c.Context.Indexing.MaxFileSizeMb = 0
		}, "must be positive"},
		{"absurd file size", func(c *Config) {
			c.Context.Watcher.MaxFileSizeMb = 4096
		}, "ceiling"},
		{"disagreeing size limits", func(c *Config) {
			c.Context.Watcher.MaxFileSizeMb = 20
			c.Context.Indexing.MaxFileSizeMb = 4
		}, "factor of two"},
		{"traversal watch path", func(c *Config) {
			c.Context.Watcher.WatchPaths = []string{"../../etc"}
		}, ".."},
		{"system watch path", func(c *Config) {
			c.Context.Watcher.WatchPaths = []string{"/etc"}
		}, "protected system directory"},
		{"threshold zero", func(c *Config) {
			c.Consensus.Voting.Threshold = 0
		}, "threshold"},
		{"threshold above one", func(c *Config) {
			c.Consensus.Voting.Threshold = 1.5
		}, "threshold"},
		{"negative debounce", func(c *Config) {
			c.Context.Watcher.DebounceMs = -1
		}, "debounce_ms"},
		{"zero pool size", func(c *Config) {
			c.Storage.DB.PoolSize = 0
		}, "pool_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestValidateAcceptsExistingWatchDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Context.Watcher.WatchPaths = []string{t.TempDir()}
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingWatchDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Context.Watcher.WatchPaths = []string{filepath.Join(t.TempDir(), "absent")}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestValidateRejectsWatchFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	cfg := DefaultConfig()
	cfg.Context.Watcher.WatchPaths = []string{file}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
