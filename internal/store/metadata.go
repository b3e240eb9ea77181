package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/pathkey"
)

// MetadataKind is the quality of a stored metadata record.
type MetadataKind string

const (
	KindFast     MetadataKind = "fast"
	KindExtended MetadataKind = "extended"
)

// internal flag keys reified as columns; they must never be persisted in
// payload itself (spec invariant I3).
const (
	FlagExtended = "__extended__"
	FlagModified = "__modified__"
)

// Payload is the opaque, dotted-key metadata map (spec.md §6).
type Payload map[string]any

func stripInternalFlags(p Payload) Payload {
	if p == nil {
		return Payload{}
	}
	out := make(Payload, len(p))
	for k, v := range p {
		if k == FlagExtended || k == FlagModified {
			continue
		}
		out[k] = v
	}
	return out
}

// StoreMetadata implicitly upserts the path, then replaces any existing
// MetadataRecord for it (spec invariant I2: a new write replaces, never
// appends — the non-downgrade merge policy is MetadataCache's job, not
// the store's).
func (s *Store) StoreMetadata(ctx context.Context, filePath string, payload Payload, kind MetadataKind, isModified bool) (bool, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return false, err
	}

	clean := stripInternalFlags(payload)
	encoded, err := json.Marshal(clean)
	if err != nil {
		return false, coreerr.Store("store_metadata", err)
	}

	canon := pathkey.Canonicalize(filePath)
	pathID, err := s.UpsertPathAs(ctx, DefaultOwner, canon, pathkey.Basename(canon), nil)
	if err != nil {
		return false, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO metadata (path_id, kind, payload, is_modified, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path_id) DO UPDATE SET
			kind = excluded.kind,
			payload = excluded.payload,
			is_modified = excluded.is_modified,
			updated_at = CURRENT_TIMESTAMP
	`, pathID, string(kind), string(encoded), boolToInt(isModified))
	if err != nil {
		return false, coreerr.Store("store_metadata", err)
	}
	return true, nil
}

// GetMetadata returns the payload for filePath merged with the synthesized
// __extended__/__modified__ flags, or (nil, false) if no record exists.
func (s *Store) GetMetadata(ctx context.Context, filePath string) (Payload, bool, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return nil, false, err
	}
	canon := pathkey.Canonicalize(filePath)

	var kind string
	var payloadJSON string
	var isModified int
	err = db.QueryRowContext(ctx, `
		SELECT m.kind, m.payload, m.is_modified
		FROM metadata m JOIN paths p ON p.id = m.path_id
		WHERE p.file_path = ?
	`, canon).Scan(&kind, &payloadJSON, &isModified)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, coreerr.Store("get_metadata", err)
	}

	var payload Payload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, false, coreerr.Store("get_metadata", err)
	}
	if payload == nil {
		payload = Payload{}
	}
	if kind == string(KindExtended) {
		payload[FlagExtended] = true
	}
	if isModified != 0 {
		payload[FlagModified] = true
	}
	return payload, true, nil
}

// HasMetadata reports whether filePath has a metadata record, optionally
// restricted to a given kind.
func (s *Store) HasMetadata(ctx context.Context, filePath string, kind *MetadataKind) (bool, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return false, err
	}
	canon := pathkey.Canonicalize(filePath)

	var query string
	var args []any
	if kind != nil {
		query = `SELECT 1 FROM metadata m JOIN paths p ON p.id = m.path_id WHERE p.file_path = ? AND m.kind = ?`
		args = []any{canon, string(*kind)}
	} else {
		query = `SELECT 1 FROM metadata m JOIN paths p ON p.id = m.path_id WHERE p.file_path = ?`
		args = []any{canon}
	}

	var one int
	err = db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, coreerr.Store("has_metadata", err)
	}
	return true, nil
}

// UpdateMetadataModifiedFlag sets the is_modified column for filePath's
// metadata record. Returns false if no record exists.
func (s *Store) UpdateMetadataModifiedFlag(ctx context.Context, filePath string, modified bool) (bool, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return false, err
	}
	canon := pathkey.Canonicalize(filePath)

	res, err := db.ExecContext(ctx, `
		UPDATE metadata SET is_modified = ?, updated_at = CURRENT_TIMESTAMP
		WHERE path_id = (SELECT id FROM paths WHERE file_path = ?)
	`, boolToInt(modified), canon)
	if err != nil {
		return false, coreerr.Store("update_metadata_modified_flag", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, coreerr.Store("update_metadata_modified_flag", err)
	}
	return n > 0, nil
}

// HasMetadataBatch checks metadata presence for every path in one round
// trip, used by the preview pipeline's batch-query path.
func (s *Store) HasMetadataBatch(ctx context.Context, filePaths []string) (map[string]bool, error) {
	result := make(map[string]bool, len(filePaths))
	if len(filePaths) == 0 {
		return result, nil
	}
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return nil, err
	}

	canon := make([]string, len(filePaths))
	for i, p := range filePaths {
		canon[i] = pathkey.Canonicalize(p)
		result[p] = false
	}

	placeholders, args := inClause(canon)
	rows, err := db.QueryContext(ctx, `
		SELECT p.file_path FROM metadata m JOIN paths p ON p.id = m.path_id
		WHERE p.file_path IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, coreerr.Store("has_metadata_batch", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(canon))
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, coreerr.Store("has_metadata_batch", err)
		}
		found[fp] = true
	}
	if err := rows.Err(); err != nil {
		return nil, coreerr.Store("has_metadata_batch", err)
	}

	for i, p := range filePaths {
		result[p] = found[canon[i]]
	}
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func inClause(values []string) (string, []any) {
	placeholders := ""
	args := make([]any, len(values))
	for i, v := range values {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = v
	}
	return placeholders, args
}
