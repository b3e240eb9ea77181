package rename

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mecondev/oncutf-sub007/internal/events"
)

func upperModule() Module {
	return ModuleFunc(func(ctx context.Context, stem string, fc FileContext) (string, error) {
		out := make([]byte, len(stem))
		for i := 0; i < len(stem); i++ {
			c := stem[i]
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			out[i] = c
		}
		return string(out), nil
	})
}

func newTestEngine(bus *events.Bus) *Engine {
	preview := NewPreviewEngine(nil, time.Millisecond)
	validate := NewValidationEngine(time.Millisecond)
	execEngine := &ExecutionEngine{
		rename: func(old, new string) error { return nil },
		stat:   func(path string) (os.FileInfo, error) { return nil, os.ErrNotExist },
	}
	return NewEngine(preview, validate, execEngine, bus)
}

func TestEnginePreviewValidateExecuteSequence(t *testing.T) {
	bus := events.New()
	defer bus.Shutdown()

	previewCh := bus.Subscribe(events.TopicRenamePreviewUpdated)
	validationCh := bus.Subscribe(events.TopicRenameValidationUpdated)
	executionCh := bus.Subscribe(events.TopicRenameExecutionDone)

	e := newTestEngine(bus)
	e.SetPlan([]string{"/dir/a.jpg", "/dir/b.jpg"}, []Module{upperModule()}, nil)

	preview, err := e.Preview(context.Background())
	require.NoError(t, err)
	require.True(t, preview.HasChanges)

	validation := e.Validate()
	require.False(t, validation.HasErrors)

	execution := e.Execute(nil)
	require.Equal(t, 2, execution.SuccessCount)

	require.NotNil(t, (<-previewCh).(PreviewResult))
	require.NotNil(t, (<-validationCh).(ValidationResult))
	require.NotNil(t, (<-executionCh).(ExecutionResult))
}

func TestEngineValidateCaseVariantNamesAreNotDuplicates(t *testing.T) {
	e := newTestEngine(nil)
	e.SetPlan([]string{"/dir/a.jpg", "/dir/A.JPG"}, []Module{}, nil)

	_, err := e.Preview(context.Background())
	require.NoError(t, err)

	validation := e.Validate()
	require.Len(t, validation.Items, 2)
	require.Empty(t, validation.Duplicates)
}

func TestEngineStateChangeFlagsTrackUpdates(t *testing.T) {
	e := newTestEngine(nil)
	e.SetPlan([]string{"/dir/a.jpg"}, []Module{}, nil)

	_, err := e.Preview(context.Background())
	require.NoError(t, err)
	require.True(t, e.State().ChangeFlags.Preview)

	e.Validate()
	require.True(t, e.State().ChangeFlags.Validation)

	e.Execute(nil)
	require.True(t, e.State().ChangeFlags.Execution)
}
