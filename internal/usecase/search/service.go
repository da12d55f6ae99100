// Package search ranks stored texts, images and posts against a query.
package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/logger"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/combine"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/rank"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/scanner"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/metrics"
)

// Comparators groups the comparator variants. Text and Image may be nil,
// in which case the searches that need them fail with ErrInvalidRequest.
type Comparators struct {
	Lexical Scorer
	Text    domain.Comparator
	Image   domain.Comparator
}

// Service runs brute-force similarity searches over the stored collections.
type Service struct {
	texts    TextCollection
	images   ImageCollection
	posts    PostRepository
	fetcher  Fetcher
	cmp      Comparators
	combiner combine.Combiner
	logger   *zap.Logger
}

// New creates a search service. Any collection may be nil when the
// corresponding search is not served.
func New(
	texts TextCollection,
	images ImageCollection,
	posts PostRepository,
	fetcher Fetcher,
	cmp Comparators,
	combiner combine.Combiner,
	l *zap.Logger,
) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{
		texts:    texts,
		images:   images,
		posts:    posts,
		fetcher:  fetcher,
		cmp:      cmp,
		combiner: combiner,
		logger:   l,
	}
}

// SearchText finds stored texts matching q.Query.
//
// In lexical mode every stored text is scanned with FindInDoc; texts with at
// least one occurrence rank by their best occurrence. In semantic mode the
// query is embedded and compared to each stored text encoding.
func (s *Service) SearchText(ctx context.Context, q TextQuery) ([]domain.RankedItem[TextHit], error) {
	if q.Query == "" {
		return nil, fmt.Errorf("empty query: %w", domain.ErrInvalidRequest)
	}
	if err := validateTopK(q.TopK); err != nil {
		return nil, err
	}
	if s.texts == nil {
		return nil, fmt.Errorf("text search is not configured: %w", domain.ErrInvalidRequest)
	}
	if q.Mode == "" {
		q.Mode = ModeLexical
	}

	start := time.Now()
	var (
		items      []domain.RankedItem[TextHit]
		candidates int
		err        error
	)
	switch q.Mode {
	case ModeLexical:
		items, candidates, err = s.searchTextLexical(ctx, q)
	case ModeSemantic:
		items, candidates, err = s.searchTextSemantic(ctx, q)
	default:
		return nil, fmt.Errorf("unknown search mode %q: %w", q.Mode, domain.ErrInvalidRequest)
	}
	if err != nil {
		return nil, err
	}

	out := rank.TopK(items, q.TopK)
	s.observe(ctx, "text", string(q.Mode), start, candidates, len(out))
	return out, nil
}

func (s *Service) searchTextLexical(ctx context.Context, q TextQuery) ([]domain.RankedItem[TextHit], int, error) {
	if s.cmp.Lexical == nil {
		return nil, 0, fmt.Errorf("lexical comparator is not configured: %w", domain.ErrInvalidRequest)
	}
	seq, err := s.texts.All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list texts: %w", err)
	}

	var items []domain.RankedItem[TextHit]
	n := 0
	for id, t := range seq {
		if err := ctx.Err(); err != nil {
			return nil, n, err
		}
		n++
		spans := scanner.FindInDoc(t.Body, q.Query, q.Threshold, s.cmp.Lexical)
		if len(spans) == 0 {
			continue
		}
		items = append(items, domain.RankedItem[TextHit]{
			Key:        strconv.FormatInt(id, 10),
			Similarity: scanner.Best(spans),
			Payload:    TextHit{ID: id, Text: t.Body, Occurrences: spans},
		})
	}
	return items, n, nil
}

func (s *Service) searchTextSemantic(ctx context.Context, q TextQuery) ([]domain.RankedItem[TextHit], int, error) {
	if s.cmp.Text == nil {
		return nil, 0, fmt.Errorf("semantic search is not configured: %w", domain.ErrInvalidRequest)
	}
	query, err := s.cmp.Text.Encode(ctx, domain.TextItem(q.Query))
	if err != nil {
		return nil, 0, fmt.Errorf("encode query: %w", err)
	}
	seq, err := s.texts.All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list texts: %w", err)
	}

	var items []domain.RankedItem[TextHit]
	n := 0
	for id, t := range seq {
		if err := ctx.Err(); err != nil {
			return nil, n, err
		}
		n++
		sim, err := s.cmp.Text.SimilarityEncoded(t.Encoding, query)
		if err != nil {
			return nil, n, fmt.Errorf("compare text %d: %w", id, err)
		}
		if sim <= q.Threshold {
			continue
		}
		items = append(items, domain.RankedItem[TextHit]{
			Key:        strconv.FormatInt(id, 10),
			Similarity: sim,
			Payload:    TextHit{ID: id, Text: t.Body, Occurrences: []domain.MatchSpan{}},
		})
	}
	return items, n, nil
}

// SearchImage ranks stored images by similarity to the query image.
// A query URL that cannot be downloaded fails with ErrFetch, an unknown
// stored id with ErrNotFound.
func (s *Service) SearchImage(ctx context.Context, q ImageQuery) ([]domain.RankedItem[ImageHit], error) {
	if err := validateTopK(q.TopK); err != nil {
		return nil, err
	}
	if q.sources() != 1 {
		return nil, fmt.Errorf("exactly one of image, url or id is required: %w", domain.ErrInvalidRequest)
	}
	if s.images == nil || s.cmp.Image == nil {
		return nil, fmt.Errorf("image search is not configured: %w", domain.ErrInvalidRequest)
	}

	start := time.Now()
	query, err := s.imageQueryEncoding(ctx, q)
	if err != nil {
		return nil, err
	}

	seq, err := s.images.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	var items []domain.RankedItem[ImageHit]
	n := 0
	for id, img := range seq {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n++
		sim, err := s.cmp.Image.SimilarityEncoded(img.Encoding, query)
		if err != nil {
			return nil, fmt.Errorf("compare image %d: %w", id, err)
		}
		if sim <= q.Threshold {
			continue
		}
		items = append(items, domain.RankedItem[ImageHit]{
			Key:        strconv.FormatInt(id, 10),
			Similarity: sim,
			Payload:    ImageHit{ID: id, ContentType: img.ContentType, Source: img.Source},
		})
	}

	out := rank.TopK(items, q.TopK)
	s.observe(ctx, "image", "embedding", start, n, len(out))
	return out, nil
}

func (s *Service) imageQueryEncoding(ctx context.Context, q ImageQuery) (domain.Encoding, error) {
	if q.ID != nil {
		img, err := s.images.Get(ctx, *q.ID)
		if err != nil {
			return nil, fmt.Errorf("get image %d: %w", *q.ID, err)
		}
		if img.Encoding.IsEmpty() {
			return nil, fmt.Errorf("image %d has no encoding: %w", *q.ID, domain.ErrEncoding)
		}
		return img.Encoding, nil
	}

	data := q.Image
	if q.URL != "" {
		if s.fetcher == nil {
			return nil, fmt.Errorf("image download is not configured: %w", domain.ErrInvalidRequest)
		}
		res, err := s.fetcher.Fetch(ctx, q.URL)
		if err != nil {
			return nil, fmt.Errorf("download query image: %w", err)
		}
		data = res.Data
	}

	enc, err := s.cmp.Image.Encode(ctx, domain.ImageItem(data))
	if err != nil {
		return nil, fmt.Errorf("encode query image: %w", err)
	}
	return enc, nil
}

// SearchPost ranks posts, optionally restricted to q.PageIDs, by the combined
// message and image similarity to the stored post q.PostID. Posts scoring at
// or below the threshold are discarded.
func (s *Service) SearchPost(ctx context.Context, q PostQuery) ([]domain.RankedItem[PostHit], error) {
	if q.PostID == "" {
		return nil, fmt.Errorf("empty post id: %w", domain.ErrInvalidRequest)
	}
	if err := validateTopK(q.TopK); err != nil {
		return nil, err
	}
	if s.posts == nil || s.cmp.Text == nil || s.cmp.Image == nil {
		return nil, fmt.Errorf("post search is not configured: %w", domain.ErrInvalidRequest)
	}

	start := time.Now()
	query, err := s.posts.Get(ctx, q.PostID)
	if err != nil {
		return nil, fmt.Errorf("get post %q: %w", q.PostID, err)
	}

	candidates, err := s.posts.Find(ctx, domain.PostFilter{PageIDs: q.PageIDs})
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}

	combiner := s.combiner
	if q.Threshold != nil {
		combiner = combiner.WithThreshold(*q.Threshold)
	}

	var items []domain.RankedItem[PostHit]
	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores, err := combiner.Posts(s.cmp.Text, s.cmp.Image, p, query)
		if err != nil {
			return nil, fmt.Errorf("score post %q: %w", p.PostID, err)
		}
		if !combiner.Accept(scores.Total) {
			continue
		}
		items = append(items, domain.RankedItem[PostHit]{
			Key:        p.PostID,
			Similarity: scores.Total,
			Payload:    PostHit{PostID: p.PostID, PageID: p.PageID, Message: p.Message, Scores: scores},
		})
	}

	out := rank.TopK(items, q.TopK)
	s.observe(ctx, "post", "combined", start, len(candidates), len(out))
	return out, nil
}

func (s *Service) observe(ctx context.Context, kind, mode string, start time.Time, candidates, returned int) {
	elapsed := time.Since(start)
	metrics.SearchDuration.WithLabelValues(kind, mode).Observe(elapsed.Seconds())
	metrics.SearchCandidates.WithLabelValues(kind).Observe(float64(candidates))

	logger.FromContext(ctx, s.logger).Debug("Search completed",
		zap.String("kind", kind),
		zap.String("mode", mode),
		zap.Int("candidates", candidates),
		zap.Int("returned", returned),
		zap.Duration("duration", elapsed),
	)
}
