// Package post stores social media posts and their encodings in Redis.
package post

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/db"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// store is the consumer interface for posts (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	SetNXMulti(ctx context.Context, items []db.KVItem) ([]bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	ZAddMulti(ctx context.Context, items []db.ZAddItem) error
	ZRangeWithScores(ctx context.Context, key string) ([]db.ZMember, error)
	ZCard(ctx context.Context, key string) (int64, error)
}

var _ domain.Collection[domain.Post] = (*Repo)(nil)

// Repo implements the post collection.
//
// Layout under prefix:
//
//	post:<post_id>   JSON value, written with SET NX
//	seq:post         INCR counter for insertion order
//	posts            sorted set of all post ids, score = seq
//	page:<page_id>   sorted set of the page's post ids, score = seq
type Repo struct {
	store  store
	prefix string
}

// New creates a post repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Append stores posts whose post id is not taken yet. Existing post ids are
// skipped and reported as domain.NoID; the rest of the batch is still stored.
// A post left unindexed by an earlier failed call is indexed and gets an id.
func (r *Repo) Append(ctx context.Context, posts ...domain.Post) ([]int64, error) {
	if len(posts) == 0 {
		return []int64{}, nil
	}

	items := make([]db.KVItem, len(posts))
	for i, p := range posts {
		if p.PostID == "" {
			return nil, fmt.Errorf("post %d has no post id: %w", i, domain.ErrInvalidRequest)
		}
		data, err := marshalPost(p)
		if err != nil {
			return nil, err
		}
		items[i] = db.KVItem{Key: r.postKey(p.PostID), Value: data}
	}

	written, err := r.store.SetNXMulti(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("store posts: %w", err)
	}

	orphans, err := r.orphans(ctx, posts, written)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(posts))
	var index []db.ZAddItem
	for i, p := range posts {
		if !written[i] {
			orphan, ok := orphans[p.PostID]
			if !ok {
				ids[i] = domain.NoID
				continue
			}
			// keep the stored value as the source of truth for the page
			p = orphan
			delete(orphans, p.PostID)
		}
		seq, err := r.store.Incr(ctx, r.seqKey())
		if err != nil {
			return nil, fmt.Errorf("assign post seq: %w", err)
		}
		ids[i] = seq

		index = append(index, db.ZAddItem{Key: r.allKey(), Member: p.PostID, Score: float64(seq)})
		if p.PageID != "" {
			index = append(index, db.ZAddItem{Key: r.pageKey(p.PageID), Member: p.PostID, Score: float64(seq)})
		}
	}

	if err := r.store.ZAddMulti(ctx, index); err != nil {
		return nil, fmt.Errorf("index posts: %w", err)
	}
	return ids, nil
}

// orphans returns the skipped posts whose value exists but which never made
// it into the index, as happens when a previous Append failed after SET NX.
// They are indexed again so a retry makes them visible.
func (r *Repo) orphans(ctx context.Context, posts []domain.Post, written []bool) (map[string]domain.Post, error) {
	fresh := make(map[string]struct{}, len(posts))
	for i, p := range posts {
		if written[i] {
			fresh[p.PostID] = struct{}{}
		}
	}
	var skipped []string
	for i, p := range posts {
		if _, ok := fresh[p.PostID]; !ok && !written[i] {
			skipped = append(skipped, p.PostID)
		}
	}
	if len(skipped) == 0 {
		return nil, nil
	}

	indexed, err := r.store.ZRangeWithScores(ctx, r.allKey())
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	seen := make(map[string]struct{}, len(indexed))
	for _, m := range indexed {
		seen[m.Member] = struct{}{}
	}

	var missing []string
	for _, id := range skipped {
		if _, ok := seen[id]; !ok {
			missing = append(missing, r.postKey(id))
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	values, err := r.store.MGet(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	out := make(map[string]domain.Post, len(missing))
	for i, data := range values {
		if data == nil {
			continue
		}
		p, err := unmarshalPost(data, 0)
		if err != nil {
			return nil, fmt.Errorf("post %s: %w", missing[i], err)
		}
		out[p.PostID] = p
	}
	return out, nil
}

// Get returns a post by its external post id. Seq is not populated.
func (r *Repo) Get(ctx context.Context, postID string) (domain.Post, error) {
	data, err := r.store.Get(ctx, r.postKey(postID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Post{}, fmt.Errorf("post %s: %w", postID, domain.ErrNotFound)
		}
		return domain.Post{}, fmt.Errorf("get post %s: %w", postID, err)
	}
	return unmarshalPost(data, 0)
}

// Find returns posts matching filter in insertion order.
func (r *Repo) Find(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error) {
	members, err := r.members(ctx, filter.PageIDs)
	if err != nil {
		return nil, err
	}

	if len(filter.PostIDs) > 0 {
		members = slices.DeleteFunc(members, func(m db.ZMember) bool {
			return !slices.Contains(filter.PostIDs, m.Member)
		})
	}
	if len(members) == 0 {
		return []domain.Post{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = r.postKey(m.Member)
	}
	values, err := r.store.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}

	posts := make([]domain.Post, 0, len(values))
	for i, data := range values {
		if data == nil {
			continue
		}
		p, err := unmarshalPost(data, int64(members[i].Score))
		if err != nil {
			return nil, fmt.Errorf("post %s: %w", members[i].Member, err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// members resolves the index entries to load, sorted by seq.
func (r *Repo) members(ctx context.Context, pageIDs []string) ([]db.ZMember, error) {
	if len(pageIDs) == 0 {
		members, err := r.store.ZRangeWithScores(ctx, r.allKey())
		if err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		return members, nil
	}

	var members []db.ZMember
	for _, page := range slices.Compact(slices.Sorted(slices.Values(pageIDs))) {
		m, err := r.store.ZRangeWithScores(ctx, r.pageKey(page))
		if err != nil {
			return nil, fmt.Errorf("list page %s: %w", page, err)
		}
		members = append(members, m...)
	}
	slices.SortFunc(members, func(a, b db.ZMember) int {
		return cmp.Compare(a.Score, b.Score)
	})
	return members, nil
}

// All implements domain.Collection. Keys are post sequence numbers.
func (r *Repo) All(ctx context.Context) (iter.Seq2[int64, domain.Post], error) {
	posts, err := r.Find(ctx, domain.PostFilter{})
	if err != nil {
		return nil, err
	}
	return func(yield func(int64, domain.Post) bool) {
		for _, p := range posts {
			if !yield(p.Seq, p) {
				return
			}
		}
	}, nil
}

// Len implements domain.Collection.
func (r *Repo) Len(ctx context.Context) (int, error) {
	n, err := r.store.ZCard(ctx, r.allKey())
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return int(n), nil
}

func (r *Repo) postKey(postID string) string { return r.prefix + "post:" + postID }
func (r *Repo) seqKey() string { return r.prefix + "seq:post" }
func (r *Repo) allKey() string { return r.prefix + "posts" }
func (r *Repo) pageKey(pageID string) string { return r.prefix + "page:" + pageID }
