package image

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

func newMemoryRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Open("", true, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRepo_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	r := newMemoryRepo(t)

	enc := domain.NewVectorEncoding(domain.VariantImage, []float32{0.1, 0.2})
	ids, err := r.Append(ctx,
		domain.StoredImage{ContentType: "image/png", Image: []byte{1, 2, 3}, Encoding: enc},
		domain.StoredImage{ContentType: "image/jpeg", Image: []byte{4}, Source: "https://example.com/a.jpg"},
	)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Greater(t, ids[0], int64(0), "id 0 is reserved")
	assert.Greater(t, ids[1], ids[0])

	got, err := r.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], got.ID)
	assert.Equal(t, "image/png", got.ContentType)
	assert.Equal(t, []byte{1, 2, 3}, got.Image)
	assert.Equal(t, enc, got.Encoding)

	second, err := r.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.jpg", second.Source)
	assert.True(t, second.Encoding.IsEmpty())
}

func TestRepo_AppendLargerThanOneTransaction(t *testing.T) {
	ctx := context.Background()
	r := newMemoryRepo(t)

	const n = 20
	items := make([]domain.StoredImage, n)
	for i := range items {
		img := make([]byte, 500<<10)
		img[0] = byte(i)
		items[i] = domain.StoredImage{ContentType: "image/png", Image: img}
	}

	ids, err := r.Append(ctx, items...)
	require.NoError(t, err)
	require.Len(t, ids, n)
	for i := 1; i < n; i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}

	count, err := r.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)

	last, err := r.Get(ctx, ids[n-1])
	require.NoError(t, err)
	assert.Equal(t, items[n-1].Image, last.Image)
}

func TestRepo_GetMissing(t *testing.T) {
	r := newMemoryRepo(t)
	_, err := r.Get(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepo_AllFollowsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	r := newMemoryRepo(t)

	var want []int64
	for i := range 300 {
		ids, err := r.Append(ctx, domain.StoredImage{Image: []byte{byte(i)}})
		require.NoError(t, err)
		want = append(want, ids...)
	}

	seq, err := r.All(ctx)
	require.NoError(t, err)

	var got []int64
	for id, rec := range seq {
		assert.Equal(t, id, rec.ID)
		got = append(got, id)
	}
	assert.Equal(t, want, got)

	n, err := r.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300, n)
}

func TestRepo_AllIsSnapshot(t *testing.T) {
	ctx := context.Background()
	r := newMemoryRepo(t)

	_, err := r.Append(ctx, domain.StoredImage{Image: []byte{1}})
	require.NoError(t, err)

	seq, err := r.All(ctx)
	require.NoError(t, err)
	_, err = r.Append(ctx, domain.StoredImage{Image: []byte{2}})
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestRepo_PersistsOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r, err := Open(dir, false, zap.NewNop())
	require.NoError(t, err)
	ids, err := r.Append(ctx, domain.StoredImage{ContentType: "image/gif", Image: []byte("GIF89a")})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	reopened, err := Open(dir, false, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "image/gif", got.ContentType)

	more, err := reopened.Append(ctx, domain.StoredImage{Image: []byte{9}})
	require.NoError(t, err)
	assert.Greater(t, more[0], ids[0], "ids keep increasing across restarts")
}

func TestMakeKey_SortsByID(t *testing.T) {
	assert.Less(t, string(makeKey(9)), string(makeKey(10)))
	assert.Less(t, string(makeKey(255)), string(makeKey(256)))
}
