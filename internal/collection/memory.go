// Package collection provides the in-process Collection used by the text
// store and the library facade.
package collection

import (
	"context"
	"iter"
	"sync"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

var _ domain.Collection[string] = (*Memory[string])(nil)

// Memory is an append-only slice guarded by a single-writer lock.
// Ids are slice positions, so they start at 0 and never change.
type Memory[T any] struct {
	mu    sync.RWMutex
	items []T

	// onAppend runs under the write lock after items are added. A non-nil
	// error rolls the append back.
	onAppend func(all []T) error
}

// NewMemory creates a collection seeded with items.
func NewMemory[T any](items ...T) *Memory[T] {
	return &Memory[T]{items: append([]T(nil), items...)}
}

// OnAppend installs a hook called with the full contents after every append.
// Persistent stores use it to flush to disk before the append is visible.
func (m *Memory[T]) OnAppend(fn func(all []T) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAppend = fn
}

// All returns a snapshot iterator. Items appended after the call are not seen.
func (m *Memory[T]) All(ctx context.Context) (iter.Seq2[int64, T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	snapshot := m.items[:len(m.items):len(m.items)]
	m.mu.RUnlock()

	return func(yield func(int64, T) bool) {
		for i, item := range snapshot {
			if !yield(int64(i), item) {
				return
			}
		}
	}, nil
}

// Append adds items and returns their ids. It never reports duplicates.
func (m *Memory[T]) Append(ctx context.Context, items ...T) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []int64{}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	base := len(m.items)
	next := append(m.items[:base:base], items...)
	if m.onAppend != nil {
		if err := m.onAppend(next); err != nil {
			return nil, err
		}
	}
	m.items = next

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = int64(base + i)
	}
	return ids, nil
}

// Get returns the item with the given id.
func (m *Memory[T]) Get(_ context.Context, id int64) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero T
	if id < 0 || id >= int64(len(m.items)) {
		return zero, domain.ErrNotFound
	}
	return m.items[id], nil
}

// Len returns the number of stored items.
func (m *Memory[T]) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}
