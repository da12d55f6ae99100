package search

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// --- Mocks ---

type mockImages struct {
	items  []domain.StoredImage
	allErr error
}

func (m *mockImages) All(_ context.Context) (iter.Seq2[int64, domain.StoredImage], error) {
	if m.allErr != nil {
		return nil, m.allErr
	}
	return func(yield func(int64, domain.StoredImage) bool) {
		for _, img := range m.items {
			if !yield(img.ID, img) {
				return
			}
		}
	}, nil
}

func (m *mockImages) Get(_ context.Context, id int64) (domain.StoredImage, error) {
	for _, img := range m.items {
		if img.ID == id {
			return img, nil
		}
	}
	return domain.StoredImage{}, domain.ErrNotFound
}

type mockPosts struct {
	items []domain.Post
}

func (m *mockPosts) Get(_ context.Context, postID string) (domain.Post, error) {
	for _, p := range m.items {
		if p.PostID == postID {
			return p, nil
		}
	}
	return domain.Post{}, domain.ErrNotFound
}

func (m *mockPosts) Find(_ context.Context, f domain.PostFilter) ([]domain.Post, error) {
	var out []domain.Post
	for _, p := range m.items {
		if len(f.PageIDs) > 0 && !slices.Contains(f.PageIDs, p.PageID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type mockFetcher struct {
	data    map[string][]byte
	calls   []string
	failAll bool
}

func (m *mockFetcher) Fetch(_ context.Context, url string) (domain.Resource, error) {
	m.calls = append(m.calls, url)
	data, ok := m.data[url]
	if m.failAll || !ok {
		return domain.Resource{}, fmt.Errorf("get %s: status 404: %w", url, domain.ErrFetch)
	}
	return domain.Resource{Data: data, ContentType: "image/png"}, nil
}

// vectorComparator encodes items by looking up a fixed vector for the raw
// text or image bytes.
type vectorComparator struct {
	variant domain.Variant
	vectors map[string][]float32
	encoded []string
}

func (c *vectorComparator) Variant() domain.Variant { return c.variant }

func (c *vectorComparator) Encode(_ context.Context, item domain.Item) (domain.Encoding, error) {
	key := item.Text
	if c.variant == domain.VariantImage {
		key = string(item.Image)
	}
	c.encoded = append(c.encoded, key)
	v, ok := c.vectors[key]
	if !ok {
		return nil, fmt.Errorf("no vector for %q: %w", key, domain.ErrEncoding)
	}
	return domain.NewVectorEncoding(c.variant, v), nil
}

func (c *vectorComparator) Similarity(ctx context.Context, a, b domain.Item) (float64, error) {
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

func (c *vectorComparator) SimilarityEncoded(a, b domain.Encoding) (float64, error) {
	return comparator.VectorSimilarity(c.variant, a, b)
}

func textVec(v ...float32) domain.Encoding  { return domain.NewVectorEncoding(domain.VariantText, v) }
func imageVec(v ...float32) domain.Encoding { return domain.NewVectorEncoding(domain.VariantImage, v) }

func keys[T any](items []domain.RankedItem[T]) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out
}
