package search

import (
	"context"
	"iter"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// TextCollection reads stored texts.
type TextCollection interface {
	All(ctx context.Context) (iter.Seq2[int64, domain.StoredText], error)
}

// ImageCollection reads stored images.
type ImageCollection interface {
	All(ctx context.Context) (iter.Seq2[int64, domain.StoredImage], error)
	Get(ctx context.Context, id int64) (domain.StoredImage, error)
}

// PostRepository reads stored posts.
type PostRepository interface {
	Get(ctx context.Context, postID string) (domain.Post, error)
	Find(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error)
}

// Fetcher downloads images referenced by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.Resource, error)
}

// Scorer scores two strings lexically.
type Scorer interface {
	Score(a, b string) float64
}
