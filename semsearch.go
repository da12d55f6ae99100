// Package semsearch is an embeddable fuzzy-match search engine.
//
// An Engine keeps texts in memory and finds the ones containing a fuzzy
// occurrence of a query, scored by normalized edit distance, or (with an
// Embedder) the ones semantically close to it.
package semsearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/collection"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator/lexical"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator/text"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/combine"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/rank"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/scanner"
	searchuc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/search"
)

const (
	// Unbounded as a top-k limit keeps every result.
	Unbounded = rank.Unbounded
	// NoID marks an input AddTexts did not store.
	NoID = domain.NoID
)

// Errors returned by the Engine. Match with errors.Is.
var (
	ErrInvalidRequest = domain.ErrInvalidRequest
	ErrEncoding       = domain.ErrEncoding
	ErrNotFound       = domain.ErrNotFound
)

// Ranked is a scored candidate; Rank orders by Similarity only.
type Ranked[T any] = domain.RankedItem[T]

// Match is one fuzzy occurrence of a query inside a text.
// Start and End are byte offsets, Text == doc[Start:End].
type Match = domain.MatchSpan

// Result is a stored text that matched a search.
type Result struct {
	ID         int64   `json:"id"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
	// Matches is empty for semantic searches.
	Matches []Match `json:"occurrences"`
}

// Engine is an in-process text search engine. It is safe for concurrent use.
type Engine struct {
	texts     *collection.Memory[domain.StoredText]
	encoder   *text.Comparator
	search    *searchuc.Service
	threshold float64
}

// New creates an empty Engine.
func New(opts ...Option) *Engine {
	cfg := &engineConfig{logger: zap.NewNop()}
	for _, o := range opts {
		o.apply(cfg)
	}

	texts := collection.NewMemory[domain.StoredText]()
	cmps := searchuc.Comparators{Lexical: lexical.New()}

	var encoder *text.Comparator
	if cfg.embedder != nil {
		encoder = text.New(&embedderAdapter{inner: cfg.embedder})
		cmps.Text = encoder
	}

	return &Engine{
		texts:     texts,
		encoder:   encoder,
		search:    searchuc.New(texts, nil, nil, nil, cmps, combine.Default(), cfg.logger),
		threshold: cfg.threshold,
	}
}

// AddTexts stores texts and returns their ids in input order. Each text is
// handled on its own: blank texts, and texts the Embedder fails on, get NoID
// and an error naming their index, while the rest are stored. The returned
// error joins the per-text errors.
func (e *Engine) AddTexts(ctx context.Context, texts ...string) ([]int64, error) {
	if len(texts) == 0 {
		return []int64{}, nil
	}

	ids := make([]int64, len(texts))
	items := make([]domain.StoredText, 0, len(texts))
	slots := make([]int, 0, len(texts))
	var errs []error
	for i, t := range texts {
		ids[i] = NoID
		if strings.TrimSpace(t) == "" {
			errs = append(errs, fmt.Errorf("semsearch: text %d: empty text: %w", i, ErrEncoding))
			continue
		}
		item := domain.StoredText{Body: t}
		if e.encoder != nil {
			enc, err := e.encoder.Encode(ctx, domain.TextItem(t))
			if err != nil {
				errs = append(errs, fmt.Errorf("semsearch: encode text %d: %w", i, err))
				continue
			}
			item.Encoding = enc
		}
		items = append(items, item)
		slots = append(slots, i)
	}

	if len(items) > 0 {
		stored, err := e.texts.Append(ctx, items...)
		if err != nil {
			return nil, fmt.Errorf("semsearch: append texts: %w", err)
		}
		for j, id := range stored {
			ids[slots[j]] = id
		}
	}
	return ids, errors.Join(errs...)
}

// Len returns the number of stored texts.
func (e *Engine) Len(ctx context.Context) (int, error) {
	return e.texts.Len(ctx)
}

// SearchText returns stored texts matching query, best first.
func (e *Engine) SearchText(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	sc := searchConfig{topK: Unbounded}
	for _, o := range opts {
		o(&sc)
	}
	q := searchuc.TextQuery{Query: query, TopK: sc.topK, Threshold: e.threshold, Mode: searchuc.ModeLexical}
	if sc.threshold != nil {
		q.Threshold = *sc.threshold
	}
	if sc.semantic {
		if e.encoder == nil {
			return nil, errors.New("semsearch: semantic search needs an embedder (use WithEmbedder)")
		}
		q.Mode = searchuc.ModeSemantic
	}

	hits, err := e.search.SearchText(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("semsearch: search: %w", err)
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{
			ID:         h.Payload.ID,
			Similarity: h.Similarity,
			Text:       h.Payload.Text,
			Matches:    h.Payload.Occurrences,
		}
	}
	return out, nil
}

// FindInDoc returns every window of doc, as many words long as query, whose
// lexical similarity to query is strictly above threshold, in document order.
func FindInDoc(doc, query string, threshold float64) []Match {
	return scanner.FindInDoc(doc, query, threshold, lexical.New())
}

// Similarity is the normalized edit-distance similarity of a and b in [0, 1].
func Similarity(a, b string) float64 {
	return lexical.New().Score(a, b)
}

// Rank returns the k most similar items, best first. Equal similarities
// keep their input order. k == Unbounded keeps everything.
func Rank[T any](items []Ranked[T], k int) []Ranked[T] {
	return rank.TopK(items, k)
}
