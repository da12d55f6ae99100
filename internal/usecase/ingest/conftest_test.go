package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/collection"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// --- Mocks ---

type mockEncoder struct {
	variant domain.Variant
	fail    map[string]error
}

func (m *mockEncoder) Encode(_ context.Context, item domain.Item) (domain.Encoding, error) {
	key := item.Text
	if m.variant == domain.VariantImage {
		key = string(item.Image)
	}
	if err, ok := m.fail[key]; ok {
		return nil, err
	}
	return domain.NewVectorEncoding(m.variant, []float32{float32(len(key)), 1}), nil
}

type mockImageStore struct {
	mu    sync.Mutex
	items []domain.StoredImage
	err   error
}

func (m *mockImageStore) Append(_ context.Context, items ...domain.StoredImage) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]int64, len(items))
	for i, it := range items {
		m.items = append(m.items, it)
		ids[i] = int64(len(m.items))
	}
	return ids, nil
}

type mockPostStore struct {
	mu    sync.Mutex
	posts map[string]domain.Post
	seq   int64
}

func newMockPostStore(existing ...string) *mockPostStore {
	m := &mockPostStore{posts: make(map[string]domain.Post)}
	for _, id := range existing {
		m.seq++
		m.posts[id] = domain.Post{PostID: id, Seq: m.seq}
	}
	return m
}

func (m *mockPostStore) Append(_ context.Context, items ...domain.Post) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, len(items))
	for i, p := range items {
		if _, ok := m.posts[p.PostID]; ok {
			ids[i] = domain.NoID
			continue
		}
		m.seq++
		p.Seq = m.seq
		m.posts[p.PostID] = p
		ids[i] = m.seq
	}
	return ids, nil
}

// blockingTextStore holds every Append until release is closed.
type blockingTextStore struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingTextStore() *blockingTextStore {
	return &blockingTextStore{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (m *blockingTextStore) Append(_ context.Context, items ...domain.StoredText) ([]int64, error) {
	m.entered <- struct{}{}
	<-m.release
	ids := make([]int64, len(items))
	for i := range ids {
		ids[i] = int64(i)
	}
	return ids, nil
}

// gatedTextStore holds an Append containing the gate text until release is
// closed. Other batches go straight to the wrapped collection.
type gatedTextStore struct {
	gate    string
	inner   *collection.Memory[domain.StoredText]
	entered chan struct{}
	release chan struct{}
}

func newGatedTextStore(gate string) *gatedTextStore {
	return &gatedTextStore{
		gate:    gate,
		inner:   collection.NewMemory[domain.StoredText](),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (m *gatedTextStore) Append(ctx context.Context, items ...domain.StoredText) ([]int64, error) {
	for _, it := range items {
		if it.Body == m.gate {
			m.entered <- struct{}{}
			<-m.release
			break
		}
	}
	return m.inner.Append(ctx, items...)
}

type failingTextStore struct{ err error }

func (m *failingTextStore) Append(_ context.Context, _ ...domain.StoredText) ([]int64, error) {
	return nil, m.err
}

type mockFetcher struct {
	data map[string][]byte
}

func (m *mockFetcher) Fetch(_ context.Context, url string) (domain.Resource, error) {
	data, ok := m.data[url]
	if !ok {
		return domain.Resource{}, fmt.Errorf("get %s: status 404: %w", url, domain.ErrFetch)
	}
	return domain.Resource{Data: data, ContentType: "image/jpeg"}, nil
}
