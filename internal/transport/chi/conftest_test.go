package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/collection"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator/lexical"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator/text"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/combine"
	imagerepo "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/repository/image"
	healthuc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/health"
	ingestuc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/ingest"
	searchuc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/search"
)

// --- Mocks ---

type mockEmbedder struct {
	vectors map[string][]float32
}

func (m *mockEmbedder) Embed(_ context.Context, s string) (domain.EmbeddingResult, error) {
	v, ok := m.vectors[s]
	if !ok {
		v = []float32{0, 0, 1}
	}
	return domain.EmbeddingResult{Embedding: v, PromptTokens: 3, TotalTokens: 3}, nil
}

// bytesComparator maps raw image bytes to fixed vectors.
type bytesComparator struct {
	vectors map[string][]float32
}

func (c *bytesComparator) Variant() domain.Variant { return domain.VariantImage }

func (c *bytesComparator) Encode(_ context.Context, item domain.Item) (domain.Encoding, error) {
	v, ok := c.vectors[string(item.Image)]
	if !ok {
		return nil, fmt.Errorf("unknown image: %w", domain.ErrEncoding)
	}
	return domain.NewVectorEncoding(domain.VariantImage, v), nil
}

func (c *bytesComparator) Similarity(context.Context, domain.Item, domain.Item) (float64, error) {
	return 0, nil
}

func (c *bytesComparator) SimilarityEncoded(a, b domain.Encoding) (float64, error) {
	return comparator.VectorSimilarity(domain.VariantImage, a, b)
}

type mockFetcher struct {
	data map[string][]byte
}

func (m *mockFetcher) Fetch(_ context.Context, url string) (domain.Resource, error) {
	d, ok := m.data[url]
	if !ok {
		return domain.Resource{}, fmt.Errorf("get %s: status 404: %w", url, domain.ErrFetch)
	}
	return domain.Resource{Data: d, ContentType: "image/png"}, nil
}

type memPosts struct {
	mu    sync.Mutex
	posts []domain.Post
}

func (m *memPosts) Append(_ context.Context, items ...domain.Post) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, len(items))
	for i, p := range items {
		if slices.ContainsFunc(m.posts, func(o domain.Post) bool { return o.PostID == p.PostID }) {
			ids[i] = domain.NoID
			continue
		}
		p.Seq = int64(len(m.posts) + 1)
		m.posts = append(m.posts, p)
		ids[i] = p.Seq
	}
	return ids, nil
}

func (m *memPosts) Get(_ context.Context, postID string) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.PostID == postID {
			return p, nil
		}
	}
	return domain.Post{}, domain.ErrNotFound
}

func (m *memPosts) Find(_ context.Context, f domain.PostFilter) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Post
	for _, p := range m.posts {
		if len(f.PageIDs) == 0 || slices.Contains(f.PageIDs, p.PageID) {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

type testEnv struct {
	handler http.Handler
	ingest  *ingestuc.Service
	texts   *collection.Memory[domain.StoredText]
	images  *imagerepo.Repo
	posts   *memPosts
	pinger  *mockPinger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	texts := collection.NewMemory[domain.StoredText]()
	images, err := imagerepo.Open("", true, zap.NewNop())
	if err != nil {
		t.Fatalf("open image repo: %v", err)
	}
	t.Cleanup(func() { _ = images.Close() })
	posts := &memPosts{}

	textCmp := text.New(&mockEmbedder{vectors: map[string][]float32{
		"kitten": {1, 0, 0},
		"cat":    {0.9, 0.1, 0},
		"car":    {0, 1, 0},
	}})
	imageCmp := &bytesComparator{vectors: map[string][]float32{
		"red-square":  {1, 0},
		"red-circle":  {0.9, 0.1},
		"blue-square": {0, 1},
	}}
	fetcher := &mockFetcher{data: map[string][]byte{
		"https://cdn.example.com/red.png":  []byte("red-square"),
		"https://cdn.example.com/blue.png": []byte("blue-square"),
	}}

	ingest, err := ingestuc.New(ingestuc.Deps{
		Texts:        texts,
		Images:       images,
		Posts:        posts,
		Fetcher:      fetcher,
		TextEncoder:  textCmp,
		ImageEncoder: imageCmp,
	}, ingestuc.Config{MaxBatchSize: 10}, zap.NewNop())
	if err != nil {
		t.Fatalf("new ingest service: %v", err)
	}
	t.Cleanup(ingest.Release)

	search := searchuc.New(texts, images, posts, fetcher, searchuc.Comparators{
		Lexical: lexical.New(),
		Text:    textCmp,
		Image:   imageCmp,
	}, combine.Default(), zap.NewNop())

	pinger := &mockPinger{}
	health := healthuc.New(pinger, nil)

	srv := NewServer(search, ingest, images, health, zap.NewNop()).WithMaxBodyBytes(1 << 10)
	r := chi.NewRouter()
	srv.Routes(r)

	return &testEnv{handler: r, ingest: ingest, texts: texts, images: images, posts: posts, pinger: pinger}
}

// waitJob blocks until the job named in an accepted response finishes.
func (e *testEnv) waitJob(t *testing.T, rr *httptest.ResponseRecorder) ingestuc.Report {
	t.Helper()
	var acc JobAccepted
	if err := json.Unmarshal(rr.Body.Bytes(), &acc); err != nil {
		t.Fatalf("decode accepted response: %v", err)
	}
	job, err := e.ingest.Job(acc.JobID)
	if err != nil {
		t.Fatalf("lookup job %s: %v", acc.JobID, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := e.ingest.Wait(ctx, job)
	if err != nil {
		t.Fatalf("wait job %s: %v", acc.JobID, err)
	}
	return report
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}
