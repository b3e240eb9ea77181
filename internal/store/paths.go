package store

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/pathkey"
)

// UpsertPath inserts or updates the path record for filePath, returning its
// opaque id. The filesystem is stat'd to enrich file_size/modified_time;
// a stat failure is tolerated silently and the caller-supplied size is kept.
func (s *Store) UpsertPath(ctx context.Context, filePath, filename string, size *int64) (int64, error) {
	return s.UpsertPathAs(ctx, DefaultOwner, filePath, filename, size)
}

// UpsertPathAs is UpsertPath scoped to a specific logical-worker connection.
func (s *Store) UpsertPathAs(ctx context.Context, owner ConnectionOwner, filePath, filename string, size *int64) (int64, error) {
	canon := pathkey.Canonicalize(filePath)
	db, err := s.conn(owner)
	if err != nil {
		return 0, err
	}

	var modTime *time.Time
	if info, statErr := os.Stat(canon); statErr == nil {
		t := info.ModTime()
		modTime = &t
		sz := info.Size()
		size = &sz
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO paths (file_path, filename, file_size, modified_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(file_path) DO UPDATE SET
			filename = excluded.filename,
			file_size = excluded.file_size,
			modified_time = excluded.modified_time,
			updated_at = CURRENT_TIMESTAMP
	`, canon, filename, size, modTime)
	if err != nil {
		return 0, coreerr.Store("upsert_path", err)
	}

	var id int64
	if err := db.QueryRowContext(ctx, `SELECT id FROM paths WHERE file_path = ?`, canon).Scan(&id); err != nil {
		return 0, coreerr.Store("upsert_path", err)
	}
	return id, nil
}

// GetPathID canonicalizes filePath and returns its id, or (0, false) if
// unknown.
func (s *Store) GetPathID(ctx context.Context, filePath string) (int64, bool, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return 0, false, err
	}
	canon := pathkey.Canonicalize(filePath)
	var id int64
	err = db.QueryRowContext(ctx, `SELECT id FROM paths WHERE file_path = ?`, canon).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, coreerr.Store("get_path_id", err)
	}
	return id, true, nil
}

// RemovePath deletes the path record for filePath, cascading to its
// metadata/hash rows; its rename_history rows are kept with path_id set to
// NULL. Returns true iff a row existed.
func (s *Store) RemovePath(ctx context.Context, filePath string) (bool, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return false, err
	}
	canon := pathkey.Canonicalize(filePath)
	res, err := db.ExecContext(ctx, `DELETE FROM paths WHERE file_path = ?`, canon)
	if err != nil {
		return false, coreerr.Store("remove_path", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, coreerr.Store("remove_path", err)
	}
	return n > 0, nil
}

// CleanupOrphans deletes path records whose file no longer exists on disk,
// cascading to their metadata/hash rows; their rename_history rows are kept
// with path_id set to NULL. Returns the number removed.
func (s *Store) CleanupOrphans(ctx context.Context) (int, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return 0, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, file_path FROM paths`)
	if err != nil {
		return 0, coreerr.Store("cleanup_orphans", err)
	}
	type row struct {
		id   int64
		path string
	}
	var orphans []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.path); err != nil {
			rows.Close()
			return 0, coreerr.Store("cleanup_orphans", err)
		}
		if _, statErr := os.Stat(r.path); statErr != nil {
			orphans = append(orphans, r)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, coreerr.Store("cleanup_orphans", err)
	}

	for _, r := range orphans {
		if _, err := db.ExecContext(ctx, `DELETE FROM paths WHERE id = ?`, r.id); err != nil {
			return 0, coreerr.Store("cleanup_orphans", err)
		}
	}
	return len(orphans), nil
}
