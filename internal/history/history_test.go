package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mecondev/oncutf-sub007/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fakeFS tracks which path currently "holds" a file, letting Undo/Redo and
// CanUndo's I6 filesystem validation be exercised without touching the real
// filesystem.
type fakeFS struct {
	locations map[string]bool
}

func newFakeFS(initial ...string) *fakeFS {
	f := &fakeFS{locations: make(map[string]bool)}
	for _, p := range initial {
		f.locations[p] = true
	}
	return f
}

func (f *fakeFS) rename(old, new string) error {
	delete(f.locations, old)
	f.locations[new] = true
	return nil
}

func (f *fakeFS) stat(path string) bool {
	return f.locations[path]
}

func TestRecordBatchPushesUndoStack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertPath(ctx, "/t/a.txt", "a.txt", nil)
	require.NoError(t, err)

	fs := newFakeFS("/t/a.txt")
	h := New(s, fs.rename, fs.stat)

	require.False(t, h.HasUndo())

	opID, err := h.RecordBatch(ctx, []store.RenamePair{{OldPath: "/t/a.txt", NewPath: "/t/a2.txt"}}, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, opID)
	require.True(t, h.HasUndo())
	require.False(t, h.HasRedo())
}

func TestCanUndoValidatesFilesystem(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertPath(ctx, "/t/a.txt", "a.txt", nil)
	require.NoError(t, err)

	fs := newFakeFS("/t/a.txt")
	h := New(s, fs.rename, fs.stat)

	opID, err := h.RecordBatch(ctx, []store.RenamePair{{OldPath: "/t/a.txt", NewPath: "/t/a2.txt"}}, nil, nil)
	require.NoError(t, err)

	ok, reason := h.CanUndo(ctx, opID)
	require.False(t, ok, "new_path a2.txt was never actually created on the filesystem")
	require.Contains(t, reason, "Missing files")
	require.Contains(t, reason, "a2.txt")

	require.NoError(t, fs.rename("/t/a.txt", "/t/a2.txt"))
	ok, reason = h.CanUndo(ctx, opID)
	require.True(t, ok)
	require.Empty(t, reason)
}

func TestUndoReversesRenameAndEnablesRedo(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertPath(ctx, "/t/a.txt", "a.txt", nil)
	require.NoError(t, err)

	fs := newFakeFS("/t/a.txt")
	h := New(s, fs.rename, fs.stat)

	opID, err := h.RecordBatch(ctx, []store.RenamePair{{OldPath: "/t/a.txt", NewPath: "/t/a2.txt"}}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, fs.rename("/t/a.txt", "/t/a2.txt"))

	ok, message, n := h.Undo(ctx, opID)
	require.True(t, ok)
	require.NotEmpty(t, message)
	require.Equal(t, 1, n)
	require.True(t, fs.locations["/t/a.txt"])
	require.False(t, fs.locations["/t/a2.txt"])
	require.False(t, h.HasUndo())
	require.True(t, h.HasRedo())
}

func TestUndoRefusedAfterExternalRename(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertPath(ctx, "/t/a.txt", "a.txt", nil)
	require.NoError(t, err)

	fs := newFakeFS("/t/a.txt")
	h := New(s, fs.rename, fs.stat)

	opID, err := h.RecordBatch(ctx, []store.RenamePair{{OldPath: "/t/a.txt", NewPath: "/t/a2.txt"}}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, fs.rename("/t/a.txt", "/t/a2.txt"))

	// An external tool renames a2.txt to something else before undo runs.
	require.NoError(t, fs.rename("/t/a2.txt", "/t/a3.txt"))

	ok, message, n := h.Undo(ctx, opID)
	require.False(t, ok)
	require.Contains(t, message, "Missing files")
	require.Zero(t, n)
	require.True(t, h.HasUndo(), "a refused undo leaves the stack untouched")
	require.False(t, fs.locations["/t/a.txt"], "filesystem must be untouched on refusal")
	require.True(t, fs.locations["/t/a3.txt"])
}

func TestRedoReappliesUndoneBatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertPath(ctx, "/t/a.txt", "a.txt", nil)
	require.NoError(t, err)

	fs := newFakeFS("/t/a.txt")
	h := New(s, fs.rename, fs.stat)

	opID, err := h.RecordBatch(ctx, []store.RenamePair{{OldPath: "/t/a.txt", NewPath: "/t/a2.txt"}}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, fs.rename("/t/a.txt", "/t/a2.txt"))

	ok, _, _ := h.Undo(ctx, opID)
	require.True(t, ok)

	ok, message, n := h.Redo(ctx)
	require.True(t, ok)
	require.NotEmpty(t, message)
	require.Equal(t, 1, n)
	require.True(t, fs.locations["/t/a2.txt"])
	require.True(t, h.HasUndo())
	require.False(t, h.HasRedo())
}

func TestRedoRefusedWhenUndoResultWasTamperedWith(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertPath(ctx, "/t/a.txt", "a.txt", nil)
	require.NoError(t, err)

	fs := newFakeFS("/t/a.txt")
	h := New(s, fs.rename, fs.stat)

	opID, err := h.RecordBatch(ctx, []store.RenamePair{{OldPath: "/t/a.txt", NewPath: "/t/a2.txt"}}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, fs.rename("/t/a.txt", "/t/a2.txt"))

	ok, _, _ := h.Undo(ctx, opID)
	require.True(t, ok)

	// Something else moves a.txt (the file the undo just restored) away
	// before redo gets a chance to run.
	require.NoError(t, fs.rename("/t/a.txt", "/t/elsewhere.txt"))

	ok, message, n := h.Redo(ctx)
	require.False(t, ok)
	require.Contains(t, message, "Missing files")
	require.Zero(t, n)
	require.True(t, h.HasRedo(), "a refused redo leaves the stack untouched")
}

func TestUndoLatestUsesUndoStackTop(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertPath(ctx, "/t/a.txt", "a.txt", nil)
	require.NoError(t, err)

	fs := newFakeFS("/t/a.txt")
	h := New(s, fs.rename, fs.stat)

	opID, err := h.RecordBatch(ctx, []store.RenamePair{{OldPath: "/t/a.txt", NewPath: "/t/a2.txt"}}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, fs.rename("/t/a.txt", "/t/a2.txt"))

	gotID, message, n, err := h.UndoLatest(ctx)
	require.NoError(t, err)
	require.Equal(t, opID, gotID)
	require.NotEmpty(t, message)
	require.Equal(t, 1, n)
}

func TestUndoWithNothingRecordedFails(t *testing.T) {
	s := openTestStore(t)
	fs := newFakeFS()
	h := New(s, fs.rename, fs.stat)

	_, _, _, err := h.UndoLatest(context.Background())
	require.Error(t, err)
}

func TestNewBatchClearsRedoStack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertPath(ctx, "/t/a.txt", "a.txt", nil)
	require.NoError(t, err)

	fs := newFakeFS("/t/a.txt")
	h := New(s, fs.rename, fs.stat)

	opID, err := h.RecordBatch(ctx, []store.RenamePair{{OldPath: "/t/a.txt", NewPath: "/t/a2.txt"}}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, fs.rename("/t/a.txt", "/t/a2.txt"))

	ok, _, _ := h.Undo(ctx, opID)
	require.True(t, ok)
	require.True(t, h.HasRedo())

	_, err = s.UpsertPath(ctx, "/t/c.txt", "c.txt", nil)
	require.NoError(t, err)
	_, err = h.RecordBatch(ctx, []store.RenamePair{{OldPath: "/t/c.txt", NewPath: "/t/c2.txt"}}, nil, nil)
	require.NoError(t, err)

	require.False(t, h.HasRedo(), "recording a fresh batch invalidates the redo branch")
}

func TestRecentOperationsAndDetails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertPath(ctx, "/t/a.txt", "a.txt", nil)
	require.NoError(t, err)

	fs := newFakeFS("/t/a.txt")
	h := New(s, fs.rename, fs.stat)

	opID, err := h.RecordBatch(ctx, []store.RenamePair{{OldPath: "/t/a.txt", NewPath: "/t/a2.txt"}}, nil, nil)
	require.NoError(t, err)

	ops, err := h.RecentOperations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, opID, ops[0].OperationID)

	entries, err := h.OperationDetails(ctx, opID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
