// Package rank orders search candidates by similarity.
package rank

import (
	"cmp"
	"slices"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// Unbounded asks TopK for every item.
const Unbounded = -1

// TopK returns the k most similar items, highest first.
// Items with equal similarity keep their input order. The input is not modified.
// k == Unbounded returns all items; any other negative k returns none.
func TopK[T any](items []domain.RankedItem[T], k int) []domain.RankedItem[T] {
	if k < Unbounded {
		k = 0
	}
	out := slices.Clone(items)
	if out == nil {
		out = []domain.RankedItem[T]{}
	}
	slices.SortStableFunc(out, func(a, b domain.RankedItem[T]) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if k == Unbounded || k >= len(out) {
		return out
	}
	return out[:k:k]
}
