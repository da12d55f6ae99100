package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	KVStore
	SortedSetStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVItem holds a single key+value pair for pipelined writes.
type KVItem struct {
	Key   string
	Value []byte
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNXMulti(ctx context.Context, items []KVItem) ([]bool, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// ZMember is a sorted set member with its score.
type ZMember struct {
	Member string
	Score  float64
}

// ZAddItem holds one sorted set insertion for pipelined ZADD.
type ZAddItem struct {
	Key    string
	Member string
	Score  float64
}

// SortedSetStore provides ordered index operations.
type SortedSetStore interface {
	ZAddMulti(ctx context.Context, items []ZAddItem) error
	ZRangeWithScores(ctx context.Context, key string) ([]ZMember, error)
	ZCard(ctx context.Context, key string) (int64, error)
}
