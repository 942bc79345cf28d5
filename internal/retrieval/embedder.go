// Package retrieval provides text embedding and nearest-neighbor chunk
// search over the SQLite store.
package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbedClient is the embedding capability the Embedder consumes.
type EmbedClient interface {
	Embed(ctx context.Context, model, text string, dimensions int) ([]float32, error)
}

// Embedder generates fixed-dimension embeddings for text.
type Embedder struct {
	client     EmbedClient
	model      string
	dimensions int
}

// NewEmbedder creates an Embedder using the given client, model name and
// vector dimension.
func NewEmbedder(client EmbedClient, model string, dimensions int) *Embedder {
	return &Embedder{client: client, model: model, dimensions: dimensions}
}

// Dimensions returns the configured vector dimension.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.model, text, e.dimensions)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently.
// Returns nil (not error) for empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the provider.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.client.Embed(gCtx, e.model, text, e.dimensions)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
