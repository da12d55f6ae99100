package ingest

import (
	"context"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// TextStore persists texts.
type TextStore interface {
	Append(ctx context.Context, items ...domain.StoredText) ([]int64, error)
}

// ImageStore persists images.
type ImageStore interface {
	Append(ctx context.Context, items ...domain.StoredImage) ([]int64, error)
}

// PostStore persists posts. Posts whose id already exists get domain.NoID.
type PostStore interface {
	Append(ctx context.Context, items ...domain.Post) ([]int64, error)
}

// Fetcher downloads images referenced by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.Resource, error)
}

// Encoder turns a raw item into an Encoding.
type Encoder interface {
	Encode(ctx context.Context, item domain.Item) (domain.Encoding, error)
}
