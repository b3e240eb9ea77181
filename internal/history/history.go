// Package history implements RenameHistory (C7): recording rename batches,
// listing them, and undoing/redoing a batch file by file; a file that fails
// is reported and skipped, and only the files that succeeded are recorded.
package history

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/pathkey"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

// Renamer performs the single filesystem rename an undo/redo step needs.
// History takes it as a narrow function value instead of importing
// rename.ExecutionEngine directly, keeping the dependency one-directional.
type Renamer func(oldPath, newPath string) error

// Stater reports whether path currently exists on the filesystem. CanUndo
// only needs existence, not a full os.FileInfo, to validate I6.
type Stater func(path string) bool

func defaultStat(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// redoEntry remembers both the undo batch that reverted a rename (so its
// entries can be revalidated against the filesystem the same way CanUndo
// does) and the original operation whose forward renames a redo replays.
type redoEntry struct {
	undoBatchID  string
	originalOpID string
}

// History is the RenameHistory component (spec.md C7). It wraps the
// store's rename_history table with UUID-keyed batch recording and an
// in-memory undo/redo stack scoped to the process lifetime.
type History struct {
	st     *store.Store
	rename Renamer
	stat   Stater

	undoStack []string // operation IDs, most recent last
	redoStack []redoEntry
}

// New builds a History over st. rename performs the undo/redo filesystem
// side; stat validates I6 and may be nil to use the real filesystem.
func New(st *store.Store, rename Renamer, stat Stater) *History {
	if stat == nil {
		stat = defaultStat
	}
	return &History{st: st, rename: rename, stat: stat}
}

// RecordBatch assigns a fresh operation ID to pairs and records them as one
// atomic "rename" batch (spec invariant I5), pushing the ID onto the undo
// stack and clearing any pending redo (a fresh action invalidates history's
// forward branch, per ordinary undo/redo semantics).
func (h *History) RecordBatch(ctx context.Context, pairs []store.RenamePair, modules, postTransform any) (string, error) {
	operationID := uuid.NewString()
	ok, err := h.st.RecordRenameOperation(ctx, operationID, pairs, store.OpRename, modules, postTransform)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", coreerr.Store("record_batch", fmt.Errorf("operation not recorded"))
	}
	h.undoStack = append(h.undoStack, operationID)
	h.redoStack = nil
	return operationID, nil
}

// RecentOperations returns the limit most recent batches, newest first.
func (h *History) RecentOperations(ctx context.Context, limit int) ([]store.OperationSummary, error) {
	return h.st.GetRenameHistory(ctx, limit)
}

// OperationDetails returns every entry of one batch.
func (h *History) OperationDetails(ctx context.Context, operationID string) ([]store.RenameEntry, error) {
	return h.st.GetOperationEntries(ctx, operationID)
}

// HasUndo reports whether the undo stack has anything on it.
func (h *History) HasUndo() bool { return len(h.undoStack) > 0 }

// HasRedo reports whether the redo stack has anything on it.
func (h *History) HasRedo() bool { return len(h.redoStack) > 0 }

// CanUndo validates invariant I6 for every entry of operationID's batch:
// the filesystem at each entry's new_path must currently exist with
// basename equal to new_filename. It returns the first-class failure
// reason spec.md §4.6 calls for ("Missing files: …", names truncated to 3)
// on false, and an empty reason on true.
func (h *History) CanUndo(ctx context.Context, operationID string) (bool, string) {
	entries, err := h.st.GetOperationEntries(ctx, operationID)
	if err != nil {
		return false, err.Error()
	}
	if len(entries) == 0 {
		return false, "no such operation"
	}

	var missing []string
	for _, e := range entries {
		if !h.stat(e.NewPath) || pathkey.Basename(e.NewPath) != e.NewFilename {
			missing = append(missing, e.NewFilename)
		}
	}
	if len(missing) > 0 {
		return false, "Missing files: " + strings.Join(truncateNames(missing, 3), ", ")
	}
	return true, ""
}

// Undo reverses operationID's batch (spec.md §4.6):
//  1. Revalidate via CanUndo; on failure return (false, reason, 0) with the
//     filesystem untouched.
//  2. Reverse-rename every entry's new_path back to old_path, in reverse
//     order so a chain of dependent renames within the batch unwinds
//     correctly, continuing past any per-file failure instead of stopping.
//  3. Record a new "undo" batch containing only the successfully reversed
//     entries.
//  4. Report per-entry failures by filename, truncated to 3, in message.
func (h *History) Undo(ctx context.Context, operationID string) (success bool, message string, filesProcessed int) {
	ok, reason := h.CanUndo(ctx, operationID)
	if !ok {
		return false, reason, 0
	}

	entries, err := h.st.GetOperationEntries(ctx, operationID)
	if err != nil {
		return false, err.Error(), 0
	}

	var reverted []store.RenamePair
	var failed []string
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := h.rename(e.NewPath, e.OldPath); err != nil {
			failed = append(failed, e.NewFilename)
			continue
		}
		reverted = append(reverted, store.RenamePair{OldPath: e.NewPath, NewPath: e.OldPath})
	}

	if len(reverted) == 0 {
		return false, "Undo failed for all files: " + strings.Join(truncateNames(failed, 3), ", "), 0
	}

	undoID := uuid.NewString()
	if _, err := h.st.RecordRenameOperation(ctx, undoID, reverted, store.OpUndo, nil, nil); err != nil {
		return false, err.Error(), 0
	}

	h.undoStack = removeFromStack(h.undoStack, operationID)
	h.redoStack = append(h.redoStack, redoEntry{undoBatchID: undoID, originalOpID: operationID})

	if len(failed) > 0 {
		return true, fmt.Sprintf("Undid %d files, failed: %s", len(reverted), strings.Join(truncateNames(failed, 3), ", ")), len(reverted)
	}
	return true, fmt.Sprintf("Undid %d files", len(reverted)), len(reverted)
}

// UndoLatest undoes the most recently recorded (or redone) batch — the
// current top of the undo stack — for callers with no specific operation
// id on hand, such as a UI's single "Undo" action.
func (h *History) UndoLatest(ctx context.Context) (operationID, message string, filesProcessed int, err error) {
	if !h.HasUndo() {
		return "", "", 0, coreerr.Invalid("undo", "nothing to undo")
	}
	operationID = h.undoStack[len(h.undoStack)-1]
	ok, msg, n := h.Undo(ctx, operationID)
	if !ok {
		return "", msg, n, coreerr.Invalid("undo", msg)
	}
	return operationID, msg, n, nil
}

// Redo re-applies the most recently undone batch. Unlike Undo it always
// operates on the top of the redo stack (no argument), since a caller has
// no operation id of its own to supply for a redo. It revalidates the
// undo batch's entries the same way CanUndo does — the reverted files must
// still be exactly where the undo left them — before replaying the
// original batch's renames forward, continuing past per-file failures and
// recording only the successfully replayed entries as a new "redo" batch.
func (h *History) Redo(ctx context.Context) (success bool, message string, filesProcessed int) {
	if !h.HasRedo() {
		return false, "nothing to redo", 0
	}
	top := h.redoStack[len(h.redoStack)-1]

	ok, reason := h.CanUndo(ctx, top.undoBatchID)
	if !ok {
		return false, reason, 0
	}

	entries, err := h.st.GetOperationEntries(ctx, top.originalOpID)
	if err != nil {
		return false, err.Error(), 0
	}

	var replayed []store.RenamePair
	var failed []string
	for _, e := range entries {
		if err := h.rename(e.OldPath, e.NewPath); err != nil {
			failed = append(failed, e.OldFilename)
			continue
		}
		replayed = append(replayed, store.RenamePair{OldPath: e.OldPath, NewPath: e.NewPath})
	}

	if len(replayed) == 0 {
		return false, "Redo failed for all files: " + strings.Join(truncateNames(failed, 3), ", "), 0
	}

	redoID := uuid.NewString()
	if _, err := h.st.RecordRenameOperation(ctx, redoID, replayed, store.OpRedo, nil, nil); err != nil {
		return false, err.Error(), 0
	}

	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.undoStack = append(h.undoStack, top.originalOpID)

	if len(failed) > 0 {
		return true, fmt.Sprintf("Redid %d files, failed: %s", len(replayed), strings.Join(truncateNames(failed, 3), ", ")), len(replayed)
	}
	return true, fmt.Sprintf("Redid %d files", len(replayed)), len(replayed)
}

// truncateNames returns names, capped at limit entries.
func truncateNames(names []string, limit int) []string {
	if len(names) > limit {
		return names[:limit]
	}
	return names
}

// removeFromStack returns stack with the first occurrence of id removed.
func removeFromStack(stack []string, id string) []string {
	for i, v := range stack {
		if v == id {
			return append(stack[:i], stack[i+1:]...)
		}
	}
	return stack
}

// CleanupOld delegates orphaned path-record cleanup to the store (O1):
// rename history rows reference paths via ON DELETE SET NULL, so removing
// orphaned path rows never breaks a history entry's old/new path strings,
// it only detaches the path_id foreign key.
func (h *History) CleanupOld(ctx context.Context) (int, error) {
	return h.st.CleanupOrphans(ctx)
}
