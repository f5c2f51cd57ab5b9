// Package embedding provides the vector-embedding backends behind the
// context indexer. Two real providers exist (Ollama over HTTP, Google GenAI)
// plus a no-op engine for deployments that index without vectors.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"conductor/internal/config"
	"conductor/internal/types"
)

// Engine turns text into vectors. Implementations must be safe for
// concurrent use.
type Engine interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds the configured engine. Provider "none" (or empty) returns nil,
// which the indexer treats as embeddings-disabled.
func New(cfg config.EmbeddingConfig) (Engine, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "ollama":
		return NewOllamaEngine(cfg), nil
	case "genai":
		return NewGenAIEngine(cfg)
	default:
		return nil, &types.DomainError{
			Kind:    types.ErrValidation,
			Message: fmt.Sprintf("unknown embedding provider %q", cfg.Provider),
		}
	}
}

// transientErr wraps a backend failure worth retrying (timeouts, 5xx,
// connection refused while the model loads).
func transientErr(msg string, err error) error {
	return &types.DomainError{Kind: types.ErrIOTransient, Message: msg, Err: err}
}

// fatalErr wraps a failure retrying cannot fix (bad model name, auth).
func fatalErr(msg string, err error) error {
	return &types.DomainError{Kind: types.ErrIOFatal, Message: msg, Err: err}
}
