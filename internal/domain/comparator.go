package domain

import "context"

// Item is a raw comparable item: either a text or encoded image bytes.
type Item struct {
	Text  string
	Image []byte
}

// TextItem wraps a string as an Item.
func TextItem(s string) Item { return Item{Text: s} }

// ImageItem wraps image bytes as an Item.
func ImageItem(b []byte) Item { return Item{Image: b} }

// Comparator encodes items and scores pairs of items or encodings.
//
// Similarity is symmetric. Empty inputs score 0 rather than failing.
// Encodings from another variant fail with ErrComparatorMismatch.
type Comparator interface {
	Variant() Variant
	Encode(ctx context.Context, item Item) (Encoding, error)
	Similarity(ctx context.Context, a, b Item) (float64, error)
	SimilarityEncoded(a, b Encoding) (float64, error)
}
