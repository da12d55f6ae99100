// Package combine merges message and image similarity into one post score.
package combine

import (
	"fmt"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// Defaults used when configuration leaves the post scoring section empty.
const (
	DefaultMessageWeight = 0.5
	DefaultImageWeight   = 0.5
	DefaultThreshold     = 0.65
)

// Weights scale each sub-score. They need not sum to 1.
type Weights struct {
	Message float64
	Image   float64
}

// DefaultWeights returns the equal 0.5/0.5 split.
func DefaultWeights() Weights {
	return Weights{Message: DefaultMessageWeight, Image: DefaultImageWeight}
}

// EncodedComparer compares two stored encodings.
type EncodedComparer interface {
	SimilarityEncoded(a, b domain.Encoding) (float64, error)
}

// Scores is the breakdown of one post comparison.
type Scores struct {
	Message float64
	Image   float64
	Total   float64
}

// Combiner is an immutable weighting with an acceptance threshold.
type Combiner struct {
	weights   Weights
	threshold float64
}

// New creates a combiner.
func New(w Weights, threshold float64) Combiner {
	return Combiner{weights: w, threshold: threshold}
}

// Default creates a combiner with default weights and threshold.
func Default() Combiner {
	return New(DefaultWeights(), DefaultThreshold)
}

// WithThreshold returns a copy using a different acceptance threshold.
func (c Combiner) WithThreshold(threshold float64) Combiner {
	c.threshold = threshold
	return c
}

// Weights returns the configured weights.
func (c Combiner) Weights() Weights { return c.weights }

// Threshold returns the acceptance threshold.
func (c Combiner) Threshold() float64 { return c.threshold }

// Score is the weighted sum of the two sub-scores.
func (c Combiner) Score(messageSim, imageSim float64) float64 {
	return c.weights.Message*messageSim + c.weights.Image*imageSim
}

// Accept reports whether score is strictly above the threshold.
func (c Combiner) Accept(score float64) bool {
	return score > c.threshold
}

// Posts scores a stored post against a query post. Missing encodings on
// either side contribute 0 to their sub-score.
func (c Combiner) Posts(text, image EncodedComparer, stored, query domain.Post) (Scores, error) {
	var s Scores
	var err error

	if !stored.MessageEncoding.IsEmpty() && !query.MessageEncoding.IsEmpty() {
		s.Message, err = text.SimilarityEncoded(stored.MessageEncoding, query.MessageEncoding)
		if err != nil {
			return Scores{}, fmt.Errorf("message similarity: %w", err)
		}
	}
	if !stored.ImageEncoding.IsEmpty() && !query.ImageEncoding.IsEmpty() {
		s.Image, err = image.SimilarityEncoded(stored.ImageEncoding, query.ImageEncoding)
		if err != nil {
			return Scores{}, fmt.Errorf("image similarity: %w", err)
		}
	}

	s.Total = c.Score(s.Message, s.Image)
	return s, nil
}
