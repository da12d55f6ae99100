// Package scanner locates approximate occurrences of a phrase inside a document.
package scanner

import (
	"strings"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// Scorer scores two strings for similarity.
type Scorer interface {
	Score(a, b string) float64
}

// Scanner binds a Scorer for repeated FindInDoc calls.
type Scanner struct {
	scorer Scorer
}

// New creates a scanner over the given scorer.
func New(scorer Scorer) *Scanner {
	return &Scanner{scorer: scorer}
}

// Find runs FindInDoc with the bound scorer.
func (s *Scanner) Find(doc, query string, threshold float64) []domain.MatchSpan {
	return FindInDoc(doc, query, threshold, s.scorer)
}

// FindInDoc slides a window of as many words as the query has over doc and
// returns every window that scores strictly above threshold, in document order.
//
// Words are delimited by single spaces; runs of spaces are not collapsed, so
// they produce empty windows. The space in front of a window is not part of it.
// Offsets are byte offsets and Text == doc[Start:End].
func FindInDoc(doc, query string, threshold float64, scorer Scorer) []domain.MatchSpan {
	result := []domain.MatchSpan{}
	if doc == "" {
		return result
	}

	queryWords := strings.Count(query, " ") + 1

	// cursor is the offset of the space preceding the window (or 0 for the
	// first window); end is the offset of the space closing it.
	cursor, end := 0, 0
	for range queryWords {
		next := indexFrom(doc, end+1)
		if next == -1 {
			end = len(doc)
			break
		}
		end = next
	}

	first := true
	for {
		start := cursor
		if !first {
			start = min(cursor+1, end)
		}
		window := doc[start:end]
		if sim := scorer.Score(window, query); sim > threshold {
			result = append(result, domain.MatchSpan{
				Similarity: sim,
				Start:      start,
				End:        end,
				Text:       window,
			})
		}

		if end == len(doc) {
			break
		}

		first = false
		cursor = indexFrom(doc, cursor+1)
		end = indexFrom(doc, end+1)
		if end == -1 {
			end = len(doc)
		}
	}

	return result
}

// Best returns the highest span similarity, or 0 for no spans.
func Best(spans []domain.MatchSpan) float64 {
	var best float64
	for i, s := range spans {
		if i == 0 || s.Similarity > best {
			best = s.Similarity
		}
	}
	return best
}

// indexFrom returns the index of the first space at or after from, or -1.
func indexFrom(s string, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.IndexByte(s[from:], ' ')
	if i == -1 {
		return -1
	}
	return from + i
}
