// Package embed defines the embedding contract the engine depends on and an
// OpenAI-backed implementation used at ingest time. The query path treats
// embedding computation as opaque: it only ever reads stored vectors.
//
// All vectors are L2-normalised before they leave this package, so dot
// product equals cosine similarity and the store's L2-distance kNN maps to
// cosine via sim = 1 - d/2.
package embed

import (
	"context"
	"fmt"
	"math"
)

// Embedder turns text into a unit vector.
type Embedder interface {
	// Embed returns the L2-normalised vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one request, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model is the identifier stored alongside each vector.
	Model() string

	// Dim is the vector dimension.
	Dim() int
}

// NormalizeL2 scales vec to unit length in place and returns its original
// norm. A zero vector is left unchanged with norm 0.
func NormalizeL2(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return 0
	}
	inv := 1.0 / norm
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
	return norm
}

// checkDim verifies an embedding response matches the configured dimension.
func checkDim(got, want int) error {
	if got != want {
		return fmt.Errorf("embed: model returned %d dimensions, expected %d", got, want)
	}
	return nil
}
