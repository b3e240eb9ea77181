package metadatacache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
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

// TestMonotoneExtended covers S1 and C2-I2: a fast write against an
// already-extended record merges instead of downgrading.
func TestMonotoneExtended(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "/t/a.jpg", store.Payload{"EXIF:Orientation": "1"}, false, false))

	payload, ok, err := c.Get(ctx, "/t/a.jpg")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", payload["EXIF:Orientation"])
	require.NotContains(t, payload, store.FlagExtended)

	require.NoError(t, c.Set(ctx, "/t/a.jpg", store.Payload{"EXIF:Artist": "x"}, true, false))

	payload, ok, err = c.Get(ctx, "/t/a.jpg")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "x", payload["EXIF:Artist"])
	require.Equal(t, true, payload[store.FlagExtended])

	require.NoError(t, c.Set(ctx, "/t/a.jpg", store.Payload{"EXIF:Orientation": "6"}, false, false))

	payload, ok, err = c.Get(ctx, "/t/a.jpg")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, true, payload[store.FlagExtended], "extended must not be downgraded by a later fast write")
	require.Equal(t, "6", payload["EXIF:Orientation"])
	require.Equal(t, "x", payload["EXIF:Artist"], "prior extended fields must survive the merge")
}

func TestAddFailsIfExists(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, "/t/a.jpg", store.Payload{"k": "v"}, false))
	err := c.Add(ctx, "/t/a.jpg", store.Payload{"k": "v2"}, false)
	require.ErrorIs(t, err, coreerr.ErrAlreadyExists)
}
