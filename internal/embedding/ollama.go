package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"conductor/internal/config"
	"conductor/internal/logging"
)

// OllamaEngine embeds through a local Ollama server's /api/embeddings
// endpoint.
type OllamaEngine struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

// NewOllamaEngine creates the engine. The server is not contacted until the
// first Embed call.
func NewOllamaEngine(cfg config.EmbeddingConfig) *OllamaEngine {
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	return &OllamaEngine{
		baseURL: base,
		model:   cfg.Model,
		dims:    cfg.Dimensions,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Name implements Engine.
func (e *OllamaEngine) Name() string { return "ollama/" + e.model }

// Dimensions implements Engine.
func (e *OllamaEngine) Dimensions() int { return e.dims }

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements Engine.
func (e *OllamaEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fatalErr("marshal embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fatalErr("build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, transientErr("ollama unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, data)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, transientErr(msg, nil)
		}
		return nil, fatalErr(msg, nil)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, transientErr("decode embedding response", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fatalErr("ollama returned an empty embedding", nil)
	}
	if e.dims > 0 && len(out.Embedding) != e.dims {
		logging.Get(logging.CategoryEmbedding).Warn("model %s returned %d dims, configured %d",
			e.model, len(out.Embedding), e.dims)
	}
	return out.Embedding, nil
}

// EmbedBatch implements Engine. Ollama has no batch endpoint; requests go
// out sequentially so a local model is not overwhelmed.
func (e *OllamaEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
