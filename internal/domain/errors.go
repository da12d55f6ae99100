package domain

import "errors"

var (
	// ErrNotFound signals a missing stored item (text, image or post).
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a malformed search or ingest request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEncoding signals empty or malformed input to an encoder, or a corrupt encoding.
	ErrEncoding = errors.New("encoding error")
	// ErrFetch signals that a remote resource could not be downloaded.
	ErrFetch = errors.New("fetch failed")
	// ErrComparatorMismatch signals encodings produced by different comparator variants.
	ErrComparatorMismatch = errors.New("comparator mismatch")
	// ErrEmbeddingProviderError signals an embedding or inference provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrOverloaded signals that the ingestion queue cannot accept more work.
	ErrOverloaded = errors.New("ingestion queue is full")
	// ErrDuplicate signals an item whose key already exists in the collection.
	ErrDuplicate = errors.New("duplicate item")
)
