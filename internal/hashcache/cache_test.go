package hashcache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mecondev/oncutf-sub007/internal/store"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	c, err := New(st, 16)
	require.NoError(t, err)
	return c
}

// TestHashRoundTrip covers P2.
func TestHashRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.StoreHash(ctx, "/t/a.jpg", AlgoCRC32, "cafebabe", nil))

	got, ok, err := c.GetHash(ctx, "/t/a.jpg", AlgoCRC32)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "cafebabe", got)
}

// TestFindDuplicates covers the groups-with->=2-members rule.
func TestFindDuplicates(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.StoreHash(ctx, "/t/a.jpg", AlgoCRC32, "same", nil))
	require.NoError(t, c.StoreHash(ctx, "/t/b.jpg", AlgoCRC32, "same", nil))
	require.NoError(t, c.StoreHash(ctx, "/t/c.jpg", AlgoCRC32, "unique", nil))

	dupes, err := c.FindDuplicates(ctx, []string{"/t/a.jpg", "/t/b.jpg", "/t/c.jpg"}, AlgoCRC32)
	require.NoError(t, err)
	require.Len(t, dupes, 1)
	require.Len(t, dupes["same"], 2)
}

func TestComputeAlgorithms(t *testing.T) {
	data := []byte("hello world")
	require.NotEmpty(t, Compute(AlgoCRC32, data))
	require.NotEmpty(t, Compute(AlgoBlake3, data))
	require.NotEqual(t, Compute(AlgoCRC32, data), Compute(AlgoBlake3, data))
}
