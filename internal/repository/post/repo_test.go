package post

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/db"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/db/redis"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

func postIDs(posts []domain.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.PostID
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAppend_AssignsIncreasingSeq(t *testing.T) {
	repo := New(newMemStore(), "t:")
	ctx := context.Background()

	ids, err := repo.Append(ctx,
		domain.Post{PostID: "a", PageID: "p1", Message: "hello"},
		domain.Post{PostID: "b", PageID: "p2"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	n, err := repo.Len(ctx)
	if err != nil || n != 2 {
		t.Errorf("Len = %d, %v", n, err)
	}
}

func TestAppend_SkipsExistingPostIDs(t *testing.T) {
	repo := New(newMemStore(), "t:")
	ctx := context.Background()

	if _, err := repo.Append(ctx, domain.Post{PostID: "a", Message: "original"}); err != nil {
		t.Fatal(err)
	}

	ids, err := repo.Append(ctx,
		domain.Post{PostID: "a", Message: "replacement"},
		domain.Post{PostID: "b"},
		domain.Post{PostID: "b"},
	)
	if err != nil {
		t.Fatalf("partial conflict must not fail the batch: %v", err)
	}
	if ids[0] != domain.NoID || ids[1] == domain.NoID || ids[2] != domain.NoID {
		t.Errorf("unexpected ids: %v", ids)
	}

	got, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Message != "original" {
		t.Errorf("existing post overwritten: %q", got.Message)
	}
}

func TestAppend_RequiresPostID(t *testing.T) {
	repo := New(newMemStore(), "")
	_, err := repo.Append(context.Background(), domain.Post{PageID: "p"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestAppend_StoreError(t *testing.T) {
	ms := newMemStore()
	ms.setNXMultiFn = func(context.Context, []db.KVItem) ([]bool, error) {
		return nil, &db.Error{Op: db.OpSetNX, Err: errors.New("down")}
	}
	repo := New(ms, "")
	if _, err := repo.Append(context.Background(), domain.Post{PostID: "a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAppend_IndexError(t *testing.T) {
	ms := newMemStore()
	ms.zaddMultiFn = func(context.Context, []db.ZAddItem) error {
		return errors.New("down")
	}
	repo := New(ms, "")
	ctx := context.Background()
	if _, err := repo.Append(ctx, domain.Post{PostID: "a", PageID: "p1", Message: "first"}); err == nil {
		t.Fatal("expected error")
	}

	// the value was written before indexing failed; a retry must index it
	ms.zaddMultiFn = nil
	ids, err := repo.Append(ctx, domain.Post{PostID: "a", PageID: "p1", Message: "second"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if ids[0] == domain.NoID {
		t.Fatalf("retry skipped unindexed post: %v", ids)
	}

	for _, filter := range []domain.PostFilter{{}, {PageIDs: []string{"p1"}}} {
		posts, err := repo.Find(ctx, filter)
		if err != nil {
			t.Fatal(err)
		}
		if len(posts) != 1 || posts[0].PostID != "a" || posts[0].Message != "first" {
			t.Fatalf("Find(%+v) = %+v", filter, posts)
		}
		if posts[0].Seq != ids[0] {
			t.Errorf("seq = %d, want %d", posts[0].Seq, ids[0])
		}
	}

	ids, err = repo.Append(ctx, domain.Post{PostID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if ids[0] != domain.NoID {
		t.Errorf("indexed post appended twice: %v", ids)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := New(newMemStore(), "")
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_RoundTripsEncodings(t *testing.T) {
	repo := New(newMemStore(), "")
	ctx := context.Background()
	msg := domain.NewVectorEncoding(domain.VariantText, []float32{0.5, 0.25})
	img := domain.NewVectorEncoding(domain.VariantImage, []float32{1})

	if _, err := repo.Append(ctx, domain.Post{PostID: "a", PageID: "p", MessageEncoding: msg, ImageEncoding: img}); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.MessageEncoding) != string(msg) || string(got.ImageEncoding) != string(img) {
		t.Error("encodings not preserved")
	}
	if got.PageID != "p" {
		t.Errorf("page id = %q", got.PageID)
	}
}

func TestFind_Filters(t *testing.T) {
	repo := New(newMemStore(), "")
	ctx := context.Background()

	_, err := repo.Append(ctx,
		domain.Post{PostID: "a", PageID: "p1"},
		domain.Post{PostID: "b", PageID: "p2"},
		domain.Post{PostID: "c", PageID: "p1"},
		domain.Post{PostID: "d", PageID: "p3"},
	)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter domain.PostFilter
		want   []string
	}{
		{"all", domain.PostFilter{}, []string{"a", "b", "c", "d"}},
		{"one page", domain.PostFilter{PageIDs: []string{"p1"}}, []string{"a", "c"}},
		{"pages merge in insertion order", domain.PostFilter{PageIDs: []string{"p3", "p1", "p1"}}, []string{"a", "c", "d"}},
		{"post ids", domain.PostFilter{PostIDs: []string{"d", "b"}}, []string{"b", "d"}},
		{"both", domain.PostFilter{PageIDs: []string{"p1"}, PostIDs: []string{"c", "d"}}, []string{"c"}},
		{"unknown page", domain.PostFilter{PageIDs: []string{"nope"}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Find(ctx, tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !sameStrings(postIDs(got), tt.want) {
				t.Errorf("Find = %v, want %v", postIDs(got), tt.want)
			}
		})
	}
}

func TestAll_KeysAreSeq(t *testing.T) {
	repo := New(newMemStore(), "")
	ctx := context.Background()
	if _, err := repo.Append(ctx, domain.Post{PostID: "x"}, domain.Post{PostID: "y"}); err != nil {
		t.Fatal(err)
	}

	seq, err := repo.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var keys []int64
	for k, p := range seq {
		if k != p.Seq {
			t.Errorf("key %d != seq %d", k, p.Seq)
		}
		keys = append(keys, k)
	}
	if len(keys) != 2 || keys[0] != 1 || keys[1] != 2 {
		t.Errorf("unexpected keys %v", keys)
	}
}

// TestAppend_RedisPartialConflict drives the real Redis store through a mocked
// client: the second post already exists and is indexed, so only the first
// is indexed.
func TestAppend_RedisPartialConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			DoMulti(gomock.Any(),
				mock.MatchFn(func(cmd []string) bool {
					return cmd[0] == "SET" && cmd[1] == "s:post:a" && cmd[3] == "NX"
				}),
				mock.MatchFn(func(cmd []string) bool {
					return cmd[0] == "SET" && cmd[1] == "s:post:b" && cmd[3] == "NX"
				}),
			).
			Return([]rueidis.RedisResult{
				mock.Result(mock.RedisString("OK")),
				mock.Result(mock.RedisNil()),
			}),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("ZRANGE", "s:posts", "0", "-1", "WITHSCORES")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisBlobString("b"), mock.RedisBlobString("2"),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("INCR", "s:seq:post")).
			Return(mock.Result(mock.RedisInt64(5))),
		c.EXPECT().
			DoMulti(gomock.Any(),
				mock.Match("ZADD", "s:posts", "5", "a"),
				mock.Match("ZADD", "s:page:p1", "5", "a"),
			).
			Return([]rueidis.RedisResult{
				mock.Result(mock.RedisInt64(1)),
				mock.Result(mock.RedisInt64(1)),
			}),
	)

	repo := New(redis.NewStoreForTest(c), "s:")
	ids, err := repo.Append(context.Background(),
		domain.Post{PostID: "a", PageID: "p1"},
		domain.Post{PostID: "b", PageID: "p1"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids[0] != 5 || ids[1] != domain.NoID {
		t.Errorf("unexpected ids: %v", ids)
	}
}
