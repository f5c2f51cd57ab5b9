package config

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "ollama", "genai", or "none"
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"` // ollama only
	APIKey     string `yaml:"api_key"`  // genai only; env var wins
	Dimensions int    `yaml:"dimensions"`
}
