package embedding

import (
	"context"

	"google.golang.org/genai"

	"conductor/internal/config"
)

// GenAIEngine embeds through the Google GenAI API.
type GenAIEngine struct {
	client *genai.Client
	model  string
	dims   int
}

// NewGenAIEngine creates the engine. The API key comes from config or, when
// blank, the SDK's environment lookup.
func NewGenAIEngine(cfg config.EmbeddingConfig) (*GenAIEngine, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fatalErr("create genai client", err)
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	return &GenAIEngine{client: client, model: model, dims: cfg.Dimensions}, nil
}

// Name implements Engine.
func (e *GenAIEngine) Name() string { return "genai/" + e.model }

// Dimensions implements Engine.
func (e *GenAIEngine) Dimensions() int { return e.dims }

// Embed implements Engine.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements Engine. The API embeds all contents in one call.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, transientErr("genai embed call failed", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fatalErr("genai returned a partial embedding batch", nil)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		out = append(out, emb.Values)
	}
	return out, nil
}
