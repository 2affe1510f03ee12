// Package embedders implements the embedding client for OpenAI-compatible
// endpoints. Texts are embedded in batches of at most the configured size;
// the vector dimension is discovered on the first call and pinned for the
// life of the process.
package embedders

import (
	"context"
	"fmt"
)

// Embedder converts text to vectors.
type Embedder interface {
	// EmbedBatch embeds texts preserving input order. Empty input yields
	// an empty result, not an error.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension reports the vector dimension, probing the endpoint once
	// if no embedding has been made yet.
	Dimension(ctx context.Context) (int, error)

	ModelName() string
	Close() error
}

// EmbedError reports an embedding endpoint failure: a non-2xx after all
// retries, a vector count that disagrees with the input count, or a vector
// whose dimension disagrees with the first vector seen.
type EmbedError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *EmbedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embed: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("embed: %s", e.Message)
}

func (e *EmbedError) Unwrap() error {
	return e.Err
}
