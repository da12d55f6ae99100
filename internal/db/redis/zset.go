package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/db"
)

// ZAddMulti adds members to sorted sets in a single DoMulti round-trip.
func (s *Store) ZAddMulti(ctx context.Context, items []db.ZAddItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmds[i] = s.b().Zadd().Key(item.Key).ScoreMember().ScoreMember(item.Score, item.Member).Build()
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpZAdd, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// ZRangeWithScores returns every member of a sorted set in ascending score order.
// A missing key yields an empty result.
func (s *Store) ZRangeWithScores(ctx context.Context, key string) ([]db.ZMember, error) {
	cmd := s.b().Zrange().Key(key).Min("0").Max("-1").Withscores().Build()
	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}

	out := make([]db.ZMember, len(scores))
	for i, z := range scores {
		out[i] = db.ZMember{Member: z.Member, Score: z.Score}
	}
	return out, nil
}

// ZCard returns the number of members in a sorted set.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Zcard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpZCard, Err: err}
	}
	return n, nil
}
