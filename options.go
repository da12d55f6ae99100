package semsearch

import "go.uber.org/zap"

// Option configures the Engine.
type Option interface {
	apply(*engineConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*engineConfig)

func (f optionFunc) apply(c *engineConfig) { f(c) }

type engineConfig struct {
	embedder  Embedder
	threshold float64
	logger    *zap.Logger
}

// WithEmbedder enables semantic text search. Texts added afterwards are
// embedded on insert; texts added before stay lexical-only.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *engineConfig) {
		c.embedder = e
	})
}

// WithThreshold sets the default similarity threshold for SearchText.
func WithThreshold(t float64) Option {
	return optionFunc(func(c *engineConfig) {
		c.threshold = t
	})
}

// WithLogger sets a zap logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *engineConfig) {
		c.logger = l
	})
}

// SearchOption configures a single SearchText call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK      int
	threshold *float64
	semantic  bool
}

// TopK limits the number of results. Unbounded (the default) returns all.
func TopK(k int) SearchOption {
	return func(c *searchConfig) { c.topK = k }
}

// Threshold overrides the engine threshold for one search.
func Threshold(t float64) SearchOption {
	return func(c *searchConfig) { c.threshold = &t }
}

// Semantic compares embeddings instead of scanning for lexical matches.
// It requires WithEmbedder.
func Semantic() SearchOption {
	return func(c *searchConfig) { c.semantic = true }
}
