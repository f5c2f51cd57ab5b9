package config

// ContextConfig configures the context-indexing subsystem.
type ContextConfig struct {
	Watcher   WatcherConfig   `yaml:"watcher"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// WatcherConfig configures the file-system watcher daemon.
type WatcherConfig struct {
	Enabled        bool     `yaml:"enabled"`
	DebounceMs     int      `yaml:"debounce_ms"`
	BatchWindowMs  int      `yaml:"batch_window_ms"`
	WatchPaths     []string `yaml:"watch_paths"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
	MaxFileSizeMb  int      `yaml:"max_file_size_mb"`
}

// IndexingConfig configures chunking and embedding of files.
type IndexingConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxFileSizeMb     int      `yaml:"max_file_size_mb"`
}

// BootstrapConfig configures the one-shot bulk index.
type BootstrapConfig struct {
	PriorityExtensions []string `yaml:"priority_extensions"`
}
