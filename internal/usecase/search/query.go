package search

import (
	"fmt"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/combine"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/rank"
)

// Mode selects how text queries are matched.
type Mode string

// Supported text search modes.
const (
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
)

// ParseMode maps an empty string to ModeLexical and rejects unknown modes.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeLexical:
		return ModeLexical, nil
	case ModeSemantic:
		return ModeSemantic, nil
	default:
		return "", fmt.Errorf("unknown search mode %q: %w", s, domain.ErrInvalidRequest)
	}
}

// TextQuery searches stored texts for a phrase.
type TextQuery struct {
	Query     string
	TopK      int
	Threshold float64
	Mode      Mode
}

// TextHit is one matching stored text. Occurrences is empty in semantic mode.
type TextHit struct {
	ID          int64
	Text        string
	Occurrences []domain.MatchSpan
}

// ImageQuery searches stored images. Exactly one of Image, URL or ID is set.
type ImageQuery struct {
	Image     []byte
	URL       string
	ID        *int64
	TopK      int
	Threshold float64
}

// ImageHit is one matching stored image.
type ImageHit struct {
	ID          int64
	ContentType string
	Source      string
}

// PostQuery searches posts similar to a stored post.
// A nil Threshold uses the configured acceptance threshold.
type PostQuery struct {
	PostID    string
	PageIDs   []string
	TopK      int
	Threshold *float64
}

// PostHit is one matching post with its score breakdown.
type PostHit struct {
	PostID  string
	PageID  string
	Message string
	Scores  combine.Scores
}

func validateTopK(k int) error {
	if k < rank.Unbounded {
		return fmt.Errorf("topk must be >= %d, got %d: %w", rank.Unbounded, k, domain.ErrInvalidRequest)
	}
	return nil
}

func (q ImageQuery) sources() int {
	n := 0
	if len(q.Image) > 0 {
		n++
	}
	if q.URL != "" {
		n++
	}
	if q.ID != nil {
		n++
	}
	return n
}
