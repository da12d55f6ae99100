// Package image implements the CNN-feature image comparator.
package image

import (
	"context"
	"fmt"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// FeatureDim is the length of the pooled feature vector of a resnet18 backbone.
const FeatureDim = 512

var _ domain.Comparator = (*Comparator)(nil)

// Backbone runs a classification network truncated at its global pooling
// layer and returns the pooled feature vector.
type Backbone interface {
	Features(ctx context.Context, t Tensor) ([]float32, error)
}

// Comparator encodes images into backbone features and scores by cosine similarity.
type Comparator struct {
	backbone Backbone
	dim      int
}

// New creates an image comparator. dim <= 0 selects FeatureDim.
func New(backbone Backbone, dim int) *Comparator {
	if dim <= 0 {
		dim = FeatureDim
	}
	return &Comparator{backbone: backbone, dim: dim}
}

// Variant implements domain.Comparator.
func (*Comparator) Variant() domain.Variant { return domain.VariantImage }

// Encode preprocesses the image bytes and extracts features.
func (c *Comparator) Encode(ctx context.Context, item domain.Item) (domain.Encoding, error) {
	t, err := Preprocess(item.Image)
	if err != nil {
		return nil, err
	}

	features, err := c.backbone.Features(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}
	if len(features) != c.dim {
		return nil, fmt.Errorf("backbone returned %d features, want %d: %w",
			len(features), c.dim, domain.ErrEmbeddingProviderError)
	}

	return domain.NewVectorEncoding(domain.VariantImage, features), nil
}

// Similarity encodes both images and compares them. Empty input scores 0.
func (c *Comparator) Similarity(ctx context.Context, a, b domain.Item) (float64, error) {
	if len(a.Image) == 0 || len(b.Image) == 0 {
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
	return comparator.VectorSimilarity(domain.VariantImage, a, b)
}
