package post

import (
	"cmp"
	"context"
	"slices"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/db"
)

// memStore is an in-memory implementation of the consumer interface.
// Func fields override individual operations for failure tests.
type memStore struct {
	kv    map[string][]byte
	zsets map[string][]db.ZMember
	seq   map[string]int64

	setNXMultiFn func(ctx context.Context, items []db.KVItem) ([]bool, error)
	zaddMultiFn  func(ctx context.Context, items []db.ZAddItem) error
}

func newMemStore() *memStore {
	return &memStore{
		kv:    map[string][]byte{},
		zsets: map[string][]db.ZMember{},
		seq:   map[string]int64{},
	}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) MGet(_ context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.kv[k]
	}
	return out, nil
}

func (m *memStore) SetNXMulti(ctx context.Context, items []db.KVItem) ([]bool, error) {
	if m.setNXMultiFn != nil {
		return m.setNXMultiFn(ctx, items)
	}
	out := make([]bool, len(items))
	for i, it := range items {
		if _, ok := m.kv[it.Key]; ok {
			continue
		}
		m.kv[it.Key] = it.Value
		out[i] = true
	}
	return out, nil
}

func (m *memStore) Incr(_ context.Context, key string) (int64, error) {
	m.seq[key]++
	return m.seq[key], nil
}

func (m *memStore) ZAddMulti(ctx context.Context, items []db.ZAddItem) error {
	if m.zaddMultiFn != nil {
		return m.zaddMultiFn(ctx, items)
	}
	for _, it := range items {
		set := slices.DeleteFunc(m.zsets[it.Key], func(z db.ZMember) bool { return z.Member == it.Member })
		set = append(set, db.ZMember{Member: it.Member, Score: it.Score})
		slices.SortFunc(set, func(a, b db.ZMember) int { return cmp.Compare(a.Score, b.Score) })
		m.zsets[it.Key] = set
	}
	return nil
}

func (m *memStore) ZRangeWithScores(_ context.Context, key string) ([]db.ZMember, error) {
	return slices.Clone(m.zsets[key]), nil
}

func (m *memStore) ZCard(_ context.Context, key string) (int64, error) {
	return int64(len(m.zsets[key])), nil
}
