// Package embedding holds the logging decorators placed around encoder backends.
// Transport metrics (requests, duration, tokens) are recorded in the transports;
// this layer owns per-call logging with the request logger.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/comparator/image"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/logger"
)

// InstrumentedEmbedder wraps a text Embedder with structured logging.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, l *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{inner: inner, provider: provider, model: model, logger: l}
}

// Embed delegates to the inner embedder and logs the outcome.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	log := logger.FromContext(ctx, p.logger)
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		log.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	log.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// InstrumentedBackbone wraps an image Backbone with structured logging.
type InstrumentedBackbone struct {
	inner  image.Backbone
	model  string
	logger *zap.Logger
}

// NewInstrumentedBackbone wraps a feature extractor with observability.
func NewInstrumentedBackbone(inner image.Backbone, model string, l *zap.Logger) *InstrumentedBackbone {
	return &InstrumentedBackbone{inner: inner, model: model, logger: l}
}

// Features delegates to the inner backbone and logs the outcome.
func (b *InstrumentedBackbone) Features(ctx context.Context, t image.Tensor) ([]float32, error) {
	log := logger.FromContext(ctx, b.logger)
	start := time.Now()

	features, err := b.inner.Features(ctx, t)

	duration := time.Since(start)

	if err != nil {
		log.Error("Feature extraction failed",
			zap.String("model", b.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("features: %w", err)
	}

	log.Debug("Feature extraction completed",
		zap.String("model", b.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(features)),
	)
	return features, nil
}
