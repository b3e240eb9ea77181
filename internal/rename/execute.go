package rename

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/pathkey"
)

// ConflictResolution is the conflict_callback's verdict for one name
// collision (spec.md §4.4.4).
type ConflictResolution int

const (
	ConflictSkip ConflictResolution = iota
	ConflictSkipAll
	ConflictOverwrite
	ConflictCancel
)

// ConflictCallback is asked to resolve a target-exists collision. Its
// absence defaults to ConflictSkip.
type ConflictCallback func(oldName, newName string) ConflictResolution

// Validator validates a candidate basename before a rename is attempted.
type Validator func(basename string) error

// ExecutionItem is the per-file outcome of a planned rename.
type ExecutionItem struct {
	OldPath         string
	NewPath         string
	Success         bool
	Error           string
	SkipReason      string
	IsConflict      bool
	ConflictResolved bool
}

// ExecutionResult is the aggregated output of ExecutionEngine.Execute.
type ExecutionResult struct {
	Items          []ExecutionItem
	SuccessCount   int
	ErrorCount     int
	SkippedCount   int
	ConflictsCount int
}

// ExecutionEngine performs the filesystem side of a rename batch
// (spec.md §4.4.4). It never returns an error out of band: every failure
// is recorded per-item and the batch continues (unless cancelled).
type ExecutionEngine struct {
	rename func(old, new string) error
	stat   func(path string) (os.FileInfo, error)
}

// NewExecutionEngine builds an ExecutionEngine against the real
// filesystem.
func NewExecutionEngine() *ExecutionEngine {
	return &ExecutionEngine{rename: os.Rename, stat: os.Stat}
}

// Execute zips files with newNames (same directory as the source) and
// performs each rename in order, per the steps of spec.md §4.4.4.
func (e *ExecutionEngine) Execute(files []string, newNames []string, conflictCB ConflictCallback, validator Validator) ExecutionResult {
	n := len(files)
	if len(newNames) < n {
		n = len(newNames)
	}

	items := make([]ExecutionItem, 0, n)
	skipAll := false

	for i := 0; i < n; i++ {
		oldPath := pathkey.Canonicalize(files[i])
		dir := pathkey.Dir(oldPath)
		newPath := filepath.Join(dir, newNames[i])

		item := ExecutionItem{OldPath: oldPath, NewPath: newPath}

		if skipAll {
			item.SkipReason = "skip_all"
			items = append(items, item)
			continue
		}

		if validator != nil {
			if err := validator(pathkey.Basename(newPath)); err != nil {
				item.Error = err.Error()
				items = append(items, item)
				continue
			}
		}

		if _, statErr := e.stat(newPath); statErr == nil && !samePath(newPath, oldPath) {
			item.IsConflict = true
			resolution := ConflictSkip
			if conflictCB != nil {
				resolution = conflictCB(pathkey.Basename(oldPath), pathkey.Basename(newPath))
			}
			switch resolution {
			case ConflictSkip:
				item.SkipReason = "conflict_skipped"
				items = append(items, item)
				continue
			case ConflictSkipAll:
				item.SkipReason = "conflict_skip_all"
				skipAll = true
				items = append(items, item)
				continue
			case ConflictOverwrite:
				item.ConflictResolved = true
			case ConflictCancel:
				items = append(items, item)
				items = append(items, remainingUntouched(files, newNames, i+1, n)...)
				return aggregate(items)
			}
		}

		if err := e.RenameOne(oldPath, newPath); err != nil {
			item.Error = err.Error()
		} else {
			item.Success = true
		}
		items = append(items, item)
	}

	return aggregate(items)
}

// remainingUntouched builds the plan items for files[from:upTo] that a
// cancel never got to process, so ExecutionResult.Items still has one entry
// per planned pair (spec.md S3: "the plan still contains both items").
func remainingUntouched(files, newNames []string, from, upTo int) []ExecutionItem {
	out := make([]ExecutionItem, 0, upTo-from)
	for i := from; i < upTo; i++ {
		oldPath := pathkey.Canonicalize(files[i])
		dir := pathkey.Dir(oldPath)
		newPath := filepath.Join(dir, newNames[i])
		out = append(out, ExecutionItem{OldPath: oldPath, NewPath: newPath})
	}
	return out
}

// samePath reports whether oldPath and newPath name the same filesystem
// entry (used to avoid treating a no-op rename target as a conflict).
func samePath(newPath, oldPath string) bool {
	return newPath == oldPath
}

// RenameOne does a direct rename, or a case-only-safe two-step rename
// through a unique temporary sibling when old and new basenames differ
// only in case (spec.md §4.4.4 step 4, GLOSSARY). Exported so callers that
// need a single filesystem rename outside a full Execute batch (history's
// undo/redo) can reuse the case-only-safety logic.
func (e *ExecutionEngine) RenameOne(oldPath, newPath string) error {
	oldBase := pathkey.Basename(oldPath)
	newBase := pathkey.Basename(newPath)

	caseOnly := strings.EqualFold(oldBase, newBase) && oldBase != newBase
	if !caseOnly {
		if err := e.rename(oldPath, newPath); err != nil {
			return coreerr.Io("rename", oldPath, err)
		}
		return nil
	}

	dir := pathkey.Dir(oldPath)
	tmp := filepath.Join(dir, fmt.Sprintf(".oncutf-tmp-%s", uuid.NewString()))
	if err := e.rename(oldPath, tmp); err != nil {
		return coreerr.Io("rename (case-only, step 1)", oldPath, err)
	}
	if err := e.rename(tmp, newPath); err != nil {
		// best-effort restore so the file isn't left under the temp name
		_ = e.rename(tmp, oldPath)
		return coreerr.Io("rename (case-only, step 2)", tmp, err)
	}
	return nil
}

func aggregate(items []ExecutionItem) ExecutionResult {
	result := ExecutionResult{Items: items}
	for _, item := range items {
		switch {
		case item.Success:
			result.SuccessCount++
		case item.SkipReason != "":
			result.SkippedCount++
		case item.Error != "":
			result.ErrorCount++
		}
		if item.IsConflict {
			result.ConflictsCount++
		}
	}
	return result
}
