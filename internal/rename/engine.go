package rename

import (
	"context"
	"fmt"

	"github.com/mecondev/oncutf-sub007/internal/events"
)

// Engine is the top-level RenameEngine (spec.md §4.4, C6), wiring
// PreviewEngine, ValidationEngine and ExecutionEngine around a shared
// State, publishing the preview_updated → validation_updated →
// execution_completed signal sequence and a coalesced state_changed
// after each.
type Engine struct {
	preview   *PreviewEngine
	validate  *ValidationEngine
	execute   *ExecutionEngine
	bus       *events.Bus
	manager   *manager
	validator Validator
}

// NewEngine builds an Engine. bus may be nil, in which case no signals are
// published (useful for tests and headless batch runs).
func NewEngine(preview *PreviewEngine, validate *ValidationEngine, execute *ExecutionEngine, bus *events.Bus) *Engine {
	return &Engine{
		preview:   preview,
		validate:  validate,
		execute:   execute,
		bus:       bus,
		manager:   newManager(),
		validator: func(basename string) error {
			if !isSafeFilename(basename) {
				return fmt.Errorf("unsafe filename: %q", basename)
			}
			return nil
		},
	}
}

// State returns the engine's current shared state snapshot.
func (e *Engine) State() State {
	return e.manager.state
}

// SetPlan installs the files/modules/post-transform that subsequent
// Preview/Validate/Execute calls operate against.
func (e *Engine) SetPlan(files []string, modules []Module, postTransform PostTransform) {
	e.manager.state.Files = files
	e.manager.state.Modules = modules
	e.manager.state.PostTransform = postTransform
}

// Preview runs the configured module chain over the engine's current plan,
// updates State, and publishes preview_updated + coalesced state_changed.
func (e *Engine) Preview(ctx context.Context) (PreviewResult, error) {
	result, err := e.preview.Generate(ctx, e.manager.state.Files, e.manager.state.Modules, e.manager.state.PostTransform)
	if err != nil {
		return PreviewResult{}, err
	}

	e.manager.setPreview(&result)
	e.publish(events.TopicRenamePreviewUpdated, result)
	e.publishStateChanged()

	return result, nil
}

// Validate runs duplicate/name-safety validation over the last preview's
// name pairs, updates State, and publishes validation_updated + coalesced
// state_changed.
func (e *Engine) Validate() ValidationResult {
	var pairs []NamePair
	if e.manager.state.LastPreview != nil {
		pairs = e.manager.state.LastPreview.NamePairs
	}

	result := e.validate.Validate(pairs)

	e.manager.setValidation(&result)
	e.publish(events.TopicRenameValidationUpdated, result)
	e.publishStateChanged()

	return result
}

// Execute performs the renames from the last preview's name pairs (the new
// basename side) against the original files, using conflictCB to resolve
// name collisions, then publishes execution_completed + coalesced
// state_changed.
func (e *Engine) Execute(conflictCB ConflictCallback) ExecutionResult {
	files := e.manager.state.Files
	var newNames []string
	if e.manager.state.LastPreview != nil {
		newNames = make([]string, len(e.manager.state.LastPreview.NamePairs))
		for i, p := range e.manager.state.LastPreview.NamePairs {
			newNames[i] = p.New
		}
	}

	result := e.execute.Execute(files, newNames, conflictCB, e.validator)

	e.manager.setExecution(&result)
	e.publish(events.TopicRenameExecutionDone, result)
	e.publishStateChanged()

	return result
}

func (e *Engine) publish(topic string, msg interface{}) {
	if e.bus != nil {
		e.bus.Publish(topic, msg)
	}
}

func (e *Engine) publishStateChanged() {
	if e.bus != nil {
		e.bus.PublishCoalesced(events.TopicRenameStateChanged, e.manager.state.ChangeFlags)
	}
}
