// Package lexical implements the edit-distance comparator.
package lexical

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

var _ domain.Comparator = (*Comparator)(nil)

// Comparator scores strings by normalized Levenshtein distance.
// It is stateless and safe for concurrent use.
type Comparator struct{}

// New creates a lexical comparator.
func New() *Comparator { return &Comparator{} }

// Variant implements domain.Comparator.
func (*Comparator) Variant() domain.Variant { return domain.VariantLexical }

// Distance is the unit-cost edit distance between s1 and s2 in code points.
// It is +Inf when either string is empty.
func Distance(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return math.Inf(1)
	}
	return float64(levenshtein.ComputeDistance(s1, s2))
}

// Score returns 1 - distance/max(len) in [0, 1], or 0 if either string is empty.
func (*Comparator) Score(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0
	}
	maxLen := max(utf8.RuneCountInString(s1), utf8.RuneCountInString(s2))
	d := levenshtein.ComputeDistance(s1, s2)
	return 1 - float64(d)/float64(maxLen)
}

// Encode wraps the text itself; lexical comparison needs no model.
func (*Comparator) Encode(_ context.Context, item domain.Item) (domain.Encoding, error) {
	if item.Text == "" {
		return nil, fmt.Errorf("empty text: %w", domain.ErrEncoding)
	}
	return domain.NewStringEncoding(domain.VariantLexical, item.Text), nil
}

// Similarity implements domain.Comparator for raw texts.
func (c *Comparator) Similarity(_ context.Context, a, b domain.Item) (float64, error) {
	return c.Score(a.Text, b.Text), nil
}

// SimilarityEncoded implements domain.Comparator for stored encodings.
func (c *Comparator) SimilarityEncoded(a, b domain.Encoding) (float64, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return 0, nil
	}
	if err := domain.CheckVariant(domain.VariantLexical, a, b); err != nil {
		return 0, err
	}
	sa, err := a.Text()
	if err != nil {
		return 0, err
	}
	sb, err := b.Text()
	if err != nil {
		return 0, err
	}
	return c.Score(sa, sb), nil
}
