// Package embed produces dense vector embeddings for entity summary
// strings. The model is interchangeable; the pipeline only requires
// determinism given (model identity, input string) and a stable
// dimensionality across a single corpus run.
package embed

import "context"

// Embedder produces a fixed-dimension dense vector for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dims() int
}

// Summary builds the canonical embedding input string for an entity,
// combining its standardized name and description.
func Summary(standardName, description string) string {
	return "Concept: " + standardName + ". Description: " + description
}
