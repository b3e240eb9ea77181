package store

import (
	"context"
	"database/sql"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/pathkey"
)

// StoreHash implicitly upserts the path and replaces any existing
// (path, algorithm) hash row (spec invariant I4).
func (s *Store) StoreHash(ctx context.Context, filePath, algorithm, hashValue string, fileSize *int64) (bool, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return false, err
	}
	canon := pathkey.Canonicalize(filePath)
	pathID, err := s.UpsertPathAs(ctx, DefaultOwner, canon, pathkey.Basename(canon), nil)
	if err != nil {
		return false, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO hashes (path_id, algorithm, hash_value, file_size_at_hash, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path_id, algorithm) DO UPDATE SET
			hash_value = excluded.hash_value,
			file_size_at_hash = excluded.file_size_at_hash,
			created_at = CURRENT_TIMESTAMP
	`, pathID, algorithm, hashValue, fileSize)
	if err != nil {
		return false, coreerr.Store("store_hash", err)
	}
	return true, nil
}

// GetHash returns the stored hash value for (filePath, algorithm), or
// ("", false) if absent.
func (s *Store) GetHash(ctx context.Context, filePath, algorithm string) (string, bool, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return "", false, err
	}
	canon := pathkey.Canonicalize(filePath)

	var hash string
	err = db.QueryRowContext(ctx, `
		SELECT h.hash_value FROM hashes h JOIN paths p ON p.id = h.path_id
		WHERE p.file_path = ? AND h.algorithm = ?
	`, canon, algorithm).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, coreerr.Store("get_hash", err)
	}
	return hash, true, nil
}

// HasHash reports whether filePath has a hash recorded for algorithm.
func (s *Store) HasHash(ctx context.Context, filePath, algorithm string) (bool, error) {
	_, ok, err := s.GetHash(ctx, filePath, algorithm)
	return ok, err
}

// GetFilesWithHashBatch returns the subset of filePaths that have a
// recorded hash for algorithm, in one round trip.
func (s *Store) GetFilesWithHashBatch(ctx context.Context, filePaths []string, algorithm string) (map[string]bool, error) {
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
	args = append(args, algorithm)
	rows, err := db.QueryContext(ctx, `
		SELECT p.file_path FROM hashes h JOIN paths p ON p.id = h.path_id
		WHERE p.file_path IN (`+placeholders+`) AND h.algorithm = ?
	`, args...)
	if err != nil {
		return nil, coreerr.Store("get_files_with_hash_batch", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(canon))
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, coreerr.Store("get_files_with_hash_batch", err)
		}
		found[fp] = true
	}
	if err := rows.Err(); err != nil {
		return nil, coreerr.Store("get_files_with_hash_batch", err)
	}

	for i, p := range filePaths {
		result[p] = found[canon[i]]
	}
	return result, nil
}
