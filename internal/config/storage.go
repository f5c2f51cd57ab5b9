package config

// StorageConfig configures the embedded database.
type StorageConfig struct {
	DB DBConfig `yaml:"db"`
}

// DBConfig configures the SQLite store.
type DBConfig struct {
	Path       string `yaml:"path"`
	PoolSize   int    `yaml:"pool_size"`
	InitSchema bool   `yaml:"init_schema"`
}
