package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	path string
}

func (f *fakeStore) Path() string                        { return f.path }
func (f *fakeStore) Checkpoint(ctx context.Context) error { return nil }

func newFakeDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "oncutf_data.db")
	require.NoError(t, os.WriteFile(path, []byte("sqlite-bytes"), 0o644))
	return path
}

func TestCreateWritesBackupFile(t *testing.T) {
	path := newFakeDB(t)
	m := New(&fakeStore{path: path}, nil, nil, 5, 0)

	backup, err := m.Create(context.Background())
	require.NoError(t, err)
	require.FileExists(t, backup)

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	require.Equal(t, "sqlite-bytes", string(data))
}

func TestCreateRotatesOldestBeyondCount(t *testing.T) {
	path := newFakeDB(t)
	m := New(&fakeStore{path: path}, nil, nil, 2, 0)

	for i := 0; i < 4; i++ {
		_, err := m.Create(context.Background())
		require.NoError(t, err)
		time.Sleep(1100 * time.Millisecond) // ensure distinct second-resolution filenames
	}

	backups, err := m.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 2)
}

func TestStatusReflectsLastBackup(t *testing.T) {
	path := newFakeDB(t)
	m := New(&fakeStore{path: path}, nil, nil, 5, 0)

	require.Zero(t, m.Status().LastBackup)

	_, err := m.Create(context.Background())
	require.NoError(t, err)

	require.False(t, m.Status().LastBackup.IsZero())
}

func TestSetCountAndEnablePeriodic(t *testing.T) {
	path := newFakeDB(t)
	m := New(&fakeStore{path: path}, nil, nil, 5, time.Hour)

	m.SetCount(3)
	require.Equal(t, 3, m.Status().Count)

	m.EnablePeriodic(true)
	require.True(t, m.Status().PeriodicEnabled)

	m.StartPeriodic(context.Background())
	m.StopPeriodic() // must not hang or panic when started then immediately stopped
}
