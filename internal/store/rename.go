package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/pathkey"
)

// OperationKind classifies a rename batch.
type OperationKind string

const (
	OpRename OperationKind = "rename"
	OpUndo   OperationKind = "undo"
	OpRedo   OperationKind = "redo"
)

// RenamePair is one (old_path, new_path) entry of a batch to record.
type RenamePair struct {
	OldPath string
	NewPath string
}

// RenameEntry is one row of the rename_history table.
type RenameEntry struct {
	OperationID        string
	PathID              *int64
	OldPath             string
	NewPath             string
	OldFilename         string
	NewFilename         string
	OperationKind       OperationKind
	ModulesJSON         string
	PostTransformJSON   string
	CreatedAt           time.Time
}

// OperationSummary is the grouped, display-ready view of a batch returned
// by GetRenameHistory.
type OperationSummary struct {
	OperationID   string
	OperationTime time.Time
	FileCount     int
	OperationKind OperationKind
}

// RecordRenameOperation writes every pair of pairs as one atomic batch
// sharing operationID. All entries are written or none (spec invariant I5).
func (s *Store) RecordRenameOperation(ctx context.Context, operationID string, pairs []RenamePair, kind OperationKind, modules, postTransform any) (bool, error) {
	if len(pairs) == 0 {
		return true, nil
	}
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return false, err
	}

	modulesJSON, err := marshalOrEmpty(modules)
	if err != nil {
		return false, coreerr.Store("record_rename_operation", err)
	}
	postJSON, err := marshalOrEmpty(postTransform)
	if err != nil {
		return false, coreerr.Store("record_rename_operation", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, coreerr.Store("record_rename_operation", err)
	}
	defer tx.Rollback()

	for _, pair := range pairs {
		oldCanon := pathkey.Canonicalize(pair.OldPath)
		newCanon := pathkey.Canonicalize(pair.NewPath)

		var pathID *int64
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM paths WHERE file_path = ?`, oldCanon).Scan(&id)
		if err == nil {
			pathID = &id
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO rename_history
				(operation_id, path_id, old_path, new_path, old_filename, new_filename, operation_kind, modules_json, post_transform_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, operationID, pathID, oldCanon, newCanon, pathkey.Basename(oldCanon), pathkey.Basename(newCanon), string(kind), modulesJSON, postJSON)
		if err != nil {
			return false, coreerr.Store("record_rename_operation", err)
		}

		// Reflect the rename in the paths table so subsequent lookups
		// resolve at the new location.
		if pathID != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE paths SET file_path = ?, filename = ?, updated_at = CURRENT_TIMESTAMP
				WHERE id = ?
			`, newCanon, pathkey.Basename(newCanon), *pathID); err != nil {
				return false, coreerr.Store("record_rename_operation", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, coreerr.Store("record_rename_operation", err)
	}
	return true, nil
}

// GetRenameHistory returns the most recent batches, newest first, grouped
// by operation_id.
func (s *Store) GetRenameHistory(ctx context.Context, limit int) ([]OperationSummary, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT operation_id, MIN(created_at), COUNT(*), operation_kind
		FROM rename_history
		GROUP BY operation_id
		ORDER BY MIN(created_at) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, coreerr.Store("get_rename_history", err)
	}
	defer rows.Close()

	var out []OperationSummary
	for rows.Next() {
		var summary OperationSummary
		var kind, opTime string
		if err := rows.Scan(&summary.OperationID, &opTime, &summary.FileCount, &kind); err != nil {
			return nil, coreerr.Store("get_rename_history", err)
		}
		// MIN(created_at) has no declared column type, so the driver hands
		// back CURRENT_TIMESTAMP's text form rather than a time.Time.
		t, err := time.Parse("2006-01-02 15:04:05", opTime)
		if err != nil {
			return nil, coreerr.Store("get_rename_history", err)
		}
		summary.OperationTime = t
		summary.OperationKind = OperationKind(kind)
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, coreerr.Store("get_rename_history", err)
	}
	return out, nil
}

// GetOperationEntries returns every RenameEntry sharing operationID, in the
// order they were recorded. Ordering by id rather than created_at matters
// because CURRENT_TIMESTAMP has one-second resolution and a whole batch
// commonly lands in the same second.
func (s *Store) GetOperationEntries(ctx context.Context, operationID string) ([]RenameEntry, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT operation_id, path_id, old_path, new_path, old_filename, new_filename,
		       operation_kind, modules_json, post_transform_json, created_at
		FROM rename_history
		WHERE operation_id = ?
		ORDER BY id ASC
	`, operationID)
	if err != nil {
		return nil, coreerr.Store("get_operation_entries", err)
	}
	defer rows.Close()

	var out []RenameEntry
	for rows.Next() {
		var e RenameEntry
		var kind string
		var modulesJSON, postJSON *string
		if err := rows.Scan(&e.OperationID, &e.PathID, &e.OldPath, &e.NewPath, &e.OldFilename, &e.NewFilename,
			&kind, &modulesJSON, &postJSON, &e.CreatedAt); err != nil {
			return nil, coreerr.Store("get_operation_entries", err)
		}
		e.OperationKind = OperationKind(kind)
		if modulesJSON != nil {
			e.ModulesJSON = *modulesJSON
		}
		if postJSON != nil {
			e.PostTransformJSON = *postJSON
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, coreerr.Store("get_operation_entries", err)
	}
	return out, nil
}

func marshalOrEmpty(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
