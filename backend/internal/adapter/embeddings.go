package adapter

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"tweet-graph/backend/pkg/logger"
	"go.uber.org/zap"
)

// EmbeddingAdapter produces text embeddings through any OpenAI-compatible
// endpoint. With no API key configured the adapter is disabled and Embed
// returns nil, which callers treat as "store without an embedding".
type EmbeddingAdapter struct {
	client     *openai.Client
	model      string
	dimensions int
	enabled    bool
	logger     *zap.Logger
}

// NewEmbeddingAdapter creates an embedding adapter. baseURL may point at any
// OpenAI-compatible server; an empty apiKey disables the adapter.
func NewEmbeddingAdapter(baseURL, apiKey, model string, dimensions int) *EmbeddingAdapter {
	a := &EmbeddingAdapter{
		model:      model,
		dimensions: dimensions,
		enabled:    apiKey != "",
		logger:     logger.Get(),
	}
	if !a.enabled {
		a.logger.Info("Embeddings disabled, no API key configured")
		return a
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	a.client = openai.NewClientWithConfig(config)
	return a
}

// Enabled reports whether the adapter can produce embeddings.
func (a *EmbeddingAdapter) Enabled() bool {
	return a.enabled
}

// Dimensions returns the configured embedding width.
func (a *EmbeddingAdapter) Dimensions() int {
	return a.dimensions
}

// Embed returns the embedding vector for text, or nil when disabled.
func (a *EmbeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	if !a.enabled {
		return nil, nil
	}

	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(a.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	a.logger.Debug("Embedding generated",
		zap.String("model", a.model),
		zap.Int("dimensions", len(resp.Data[0].Embedding)),
	)
	return resp.Data[0].Embedding, nil
}
