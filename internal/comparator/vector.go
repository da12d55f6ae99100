// Package comparator holds helpers shared by the comparator variants.
package comparator

import (
	"fmt"
	"math"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// Cosine returns the cosine similarity of two vectors in [-1, 1].
// A zero vector scores 0. Vectors of different length fail with ErrComparatorMismatch.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions %d and %d differ: %w", len(a), len(b), domain.ErrComparatorMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// VectorSimilarity scores two vector encodings of the given variant.
// If either encoding is empty the result is 0.
func VectorSimilarity(want domain.Variant, a, b domain.Encoding) (float64, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return 0, nil
	}
	if err := domain.CheckVariant(want, a, b); err != nil {
		return 0, err
	}
	va, err := a.Vector()
	if err != nil {
		return 0, err
	}
	vb, err := b.Vector()
	if err != nil {
		return 0, err
	}
	return Cosine(va, vb)
}
