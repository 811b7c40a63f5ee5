package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrMalformedEmbedding indicates the embedding service returned a response that does
// not line up with the request: a wrong number of vectors or an empty vector.
var ErrMalformedEmbedding = errors.New("malformed embedding response")

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}

// CheckEmbeddings verifies that embeddings is positionally aligned with a request of
// want texts and that no vector is empty. It returns an error wrapping
// ErrMalformedEmbedding otherwise.
func CheckEmbeddings(embeddings [][]float32, want int) error {
	if embeddings == nil {
		return fmt.Errorf("%w: missing data", ErrMalformedEmbedding)
	}
	if len(embeddings) != want {
		return fmt.Errorf("%w: expected %d vectors, received %d", ErrMalformedEmbedding, want, len(embeddings))
	}
	if want == 0 {
		return nil
	}
	dim := len(embeddings[0])
	for i, vec := range embeddings {
		if len(vec) == 0 {
			return fmt.Errorf("%w: vector %d is empty", ErrMalformedEmbedding, i)
		}
		if len(vec) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrMalformedEmbedding, i, len(vec), dim)
		}
	}
	return nil
}
