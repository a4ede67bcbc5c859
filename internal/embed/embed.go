// Package embed provides text embedding generation for the taste engine and
// the claim evolution detector. Both consumers share one Embedder so the
// system carries a single embedding model.
package embed

import (
	"context"
	"errors"
	"math"
)

// Sentinel errors for embedding operations.
var (
	// ErrEmptyInput indicates an empty text or text slice.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmbeddingFailed indicates the underlying model call failed.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid embedding configuration")
)

// Embedder generates vector embeddings from text.
//
// Implementations must be symmetric: embedding the same text as a document
// and as a query yields the same vector, so identical texts always score
// similarity 1.0 against each other.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension of the model.
	Dimension() int
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
