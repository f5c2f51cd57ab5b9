// Package config loads and validates the conductor configuration file.
// The config is a single hierarchical YAML document; every subsystem reads
// its slice from here rather than parsing files of its own.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"conductor/internal/logging"
)

// Config holds all conductor configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Storage   StorageConfig   `yaml:"storage"`
	Context   ContextConfig   `yaml:"context"`
	Consensus ConsensusConfig `yaml:"consensus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig configures the categorized logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "conductor",
		Version: "0.3.0",

		Storage: StorageConfig{
			DB: DBConfig{
				Path:       "data/conductor.db",
				PoolSize:   1,
				InitSchema: true,
			},
		},

		Context: ContextConfig{
			Watcher: WatcherConfig{
				Enabled:       true,
				DebounceMs:    200,
				BatchWindowMs: 500,
				WatchPaths:    nil,
				IgnorePatterns: []string{".git", "node_modules", ".conductor", "vendor"},
				MaxFileSizeMb: 4,
			},
			Indexing: IndexingConfig{
				AllowedExtensions: []string{".go", ".py", ".js", ".ts", ".md", ".yaml", ".yml", ".json", ".sql", ".sh"},
				MaxFileSizeMb:     4,
			},
			Bootstrap: BootstrapConfig{
				PriorityExtensions: []string{".go", ".md"},
			},
		},

		Consensus: ConsensusConfig{
			Voting: VotingConfig{Threshold: 0.75},
			Reasoning: ReasoningConfig{
				MinQuality:       0.45,
				LengthWeight:     0.3,
				StructureWeight:  0.4,
				ConfidenceWeight: 0.3,
			},
			WaitForMs: 0,
		},

		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			BaseURL:    "http://localhost:11434",
			Dimensions: 768,
		},

		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the config file at path, overlaying it on the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryConfig).Info("no config at %s, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryConfig).Info("config loaded from %s", path)
	return cfg, nil
}
