package rename

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

var errInvalidForTest = errors.New("invalid basename")

func fakeEngine(existing map[string]bool) *ExecutionEngine {
	return &ExecutionEngine{
		rename: func(old, new string) error {
			if existing[old] == false {
				return os.ErrNotExist
			}
			delete(existing, old)
			existing[new] = true
			return nil
		},
		stat: func(path string) (os.FileInfo, error) {
			if existing[path] {
				return nil, nil
			}
			return nil, os.ErrNotExist
		},
	}
}

func TestExecuteRenamesAllWhenNoConflicts(t *testing.T) {
	existing := map[string]bool{"/dir/a.jpg": true, "/dir/b.jpg": true}
	e := fakeEngine(existing)

	result := e.Execute([]string{"/dir/a.jpg", "/dir/b.jpg"}, []string{"a1.jpg", "b1.jpg"}, nil, nil)

	require.Equal(t, 2, result.SuccessCount)
	require.Zero(t, result.ErrorCount)
	require.Zero(t, result.SkippedCount)
	require.True(t, existing["/dir/a1.jpg"])
	require.True(t, existing["/dir/b1.jpg"])
}

func TestExecuteSkipsOnConflictByDefault(t *testing.T) {
	existing := map[string]bool{"/dir/a.jpg": true, "/dir/target.jpg": true}
	e := fakeEngine(existing)

	result := e.Execute([]string{"/dir/a.jpg"}, []string{"target.jpg"}, nil, nil)

	require.Equal(t, 1, result.SkippedCount)
	require.Equal(t, 1, result.ConflictsCount)
	require.Zero(t, result.SuccessCount)
	require.True(t, existing["/dir/a.jpg"], "file not touched when skipped")
}

func TestExecuteOverwriteResolvesConflict(t *testing.T) {
	existing := map[string]bool{"/dir/a.jpg": true, "/dir/target.jpg": true}
	e := fakeEngine(existing)

	cb := func(oldName, newName string) ConflictResolution { return ConflictOverwrite }
	result := e.Execute([]string{"/dir/a.jpg"}, []string{"target.jpg"}, cb, nil)

	require.Equal(t, 1, result.SuccessCount)
	require.Equal(t, 1, result.ConflictsCount)
	require.True(t, result.Items[0].ConflictResolved)
}

func TestExecuteSkipAllStopsFurtherConflictPrompts(t *testing.T) {
	existing := map[string]bool{
		"/dir/a.jpg": true, "/dir/b.jpg": true,
		"/dir/x.jpg": true, "/dir/y.jpg": true,
	}
	e := fakeEngine(existing)

	calls := 0
	cb := func(oldName, newName string) ConflictResolution {
		calls++
		return ConflictSkipAll
	}
	result := e.Execute(
		[]string{"/dir/a.jpg", "/dir/b.jpg"},
		[]string{"x.jpg", "y.jpg"},
		cb, nil,
	)

	require.Equal(t, 1, calls, "skip_all must not prompt again for later items")
	require.Equal(t, 2, result.SkippedCount)
}

func TestExecuteCancelStopsImmediately(t *testing.T) {
	existing := map[string]bool{
		"/dir/a.jpg": true, "/dir/b.jpg": true,
		"/dir/x.jpg": true,
	}
	e := fakeEngine(existing)

	cb := func(oldName, newName string) ConflictResolution { return ConflictCancel }
	result := e.Execute(
		[]string{"/dir/a.jpg", "/dir/b.jpg"},
		[]string{"x.jpg", "c.jpg"},
		cb, nil,
	)

	require.Len(t, result.Items, 2, "plan still names every file; cancel only stops processing")
	require.True(t, result.Items[0].IsConflict)
	require.False(t, result.Items[0].Success)
	require.False(t, result.Items[1].Success, "second item was never reached")
	require.False(t, result.Items[1].IsConflict)
	require.Zero(t, result.SuccessCount)
}

func TestExecuteRejectsInvalidNameViaValidator(t *testing.T) {
	existing := map[string]bool{"/dir/a.jpg": true}
	e := fakeEngine(existing)

	validator := func(basename string) error { return errInvalidForTest }
	result := e.Execute([]string{"/dir/a.jpg"}, []string{"bad.jpg"}, nil, validator)

	require.Equal(t, 1, result.ErrorCount)
	require.True(t, existing["/dir/a.jpg"])
}

func TestRenameOneCaseOnlyUsesTempSibling(t *testing.T) {
	var seenSteps []string
	existing := map[string]bool{"/dir/Photo.jpg": true}

	e := &ExecutionEngine{
		rename: func(old, new string) error {
			seenSteps = append(seenSteps, old+"->"+new)
			if existing[old] {
				delete(existing, old)
				existing[new] = true
				return nil
			}
			return os.ErrNotExist
		},
		stat: func(path string) (os.FileInfo, error) {
			if existing[path] {
				return nil, nil
			}
			return nil, os.ErrNotExist
		},
	}

	err := e.RenameOne("/dir/Photo.jpg", "/dir/photo.jpg")
	require.NoError(t, err)
	require.Len(t, seenSteps, 2, "case-only rename goes through a temp sibling")
	require.True(t, existing["/dir/photo.jpg"])
}
