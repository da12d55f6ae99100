// Package text implements the sentence-embedding text comparator.
package text

import (
	"context"
	"fmt"
	"strings"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

var _ domain.Comparator = (*Comparator)(nil)

// Comparator encodes text through an embedding model and scores by cosine similarity.
type Comparator struct {
	embed domain.Embedder
}

// New creates a text comparator over the given embedder chain.
func New(embed domain.Embedder) *Comparator {
	return &Comparator{embed: embed}
}

// Variant implements domain.Comparator.
func (*Comparator) Variant() domain.Variant { return domain.VariantText }

// Encode embeds the item text. Blank text fails with ErrEncoding.
func (c *Comparator) Encode(ctx context.Context, item domain.Item) (domain.Encoding, error) {
	if strings.TrimSpace(item.Text) == "" {
		return nil, fmt.Errorf("empty text: %w", domain.ErrEncoding)
	}

	res, err := c.embed.Embed(ctx, item.Text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector: %w", domain.ErrEmbeddingProviderError)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	return domain.NewVectorEncoding(domain.VariantText, res.Embedding), nil
}

// Similarity encodes both texts and compares them. Blank text scores 0.
func (c *Comparator) Similarity(ctx context.Context, a, b domain.Item) (float64, error) {
	if strings.TrimSpace(a.Text) == "" || strings.TrimSpace(b.Text) == "" {
		return 0, nil
	}
	ea, err := c.Encode(ctx, a)
	if err != nil {
		return 0, err
	}
	eb, err := c.Encode(ctx, b)
	if err != nil {
		return 0, err
	}
	return c.SimilarityEncoded(ea, eb)
}

// SimilarityEncoded implements domain.Comparator for stored encodings.
func (*Comparator) SimilarityEncoded(a, b domain.Encoding) (float64, error) {
	return comparator.VectorSimilarity(domain.VariantText, a, b)
}
