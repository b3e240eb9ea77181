// Package store is the persistent store (spec.md §4.1, C1): the single
// source of truth for paths, metadata, hashes and the rename journal, over
// an embedded SQLite database with WAL journaling and foreign keys.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
)

// Store is the persistent backend. All public operations fail with a
// *coreerr.StoreError on unrecoverable conditions; reads that can
// legitimately return nothing do so without raising.
type Store struct {
	path string
	pool *pool
	log  *zap.Logger
}

// Open opens (creating if absent) the SQLite database at path, applying any
// pending migrations inside a single transaction. A forward on-disk schema
// version (greater than SchemaVersion) is a fatal error.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{path: path, pool: newPool(path), log: log}

	db, err := s.pool.get(DefaultOwner)
	if err != nil {
		return nil, coreerr.Store("open", err)
	}

	if err := s.migrate(context.Background(), db); err != nil {
		s.pool.closeAll()
		return nil, coreerr.Store("migrate", err)
	}

	return s, nil
}

// conn returns the connection dedicated to owner, opening one lazily.
func (s *Store) conn(owner ConnectionOwner) (*sql.DB, error) {
	db, err := s.pool.get(owner)
	if err != nil {
		return nil, coreerr.Store("connect", err)
	}
	return db, nil
}

func (s *Store) migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaInfoDDL); err != nil {
		return fmt.Errorf("create schema_info: %w", err)
	}

	current, err := s.schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	if current > SchemaVersion {
		return fmt.Errorf("on-disk schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	if current == SchemaVersion {
		return s.checkHashAlgorithm(ctx, db)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for _, stmt := range m.upSQL {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d: %w", m.version, err)
			}
		}
		s.log.Info("applied migration", zap.Int("version", m.version))
	}

	if err := setSchemaInfo(ctx, tx, "schema_version", fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return err
	}
	if err := setSchemaInfo(ctx, tx, "hash_algorithm", HashAlgorithm); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

func (s *Store) schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	val, ok, err := getSchemaInfo(ctx, db, "schema_version")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	var version int
	if _, err := fmt.Sscanf(val, "%d", &version); err != nil {
		return 0, fmt.Errorf("parse schema_version %q: %w", val, err)
	}
	return version, nil
}

// checkHashAlgorithm rejects opening a store whose recorded hash algorithm
// disagrees with the code's default, per SPEC_FULL.md §3.
func (s *Store) checkHashAlgorithm(ctx context.Context, db *sql.DB) error {
	val, ok, err := getSchemaInfo(ctx, db, "hash_algorithm")
	if err != nil {
		return err
	}
	if !ok || val == HashAlgorithm {
		return nil
	}
	return fmt.Errorf("store was created with hash_algorithm %q, code expects %q", val, HashAlgorithm)
}

func getSchemaInfo(ctx context.Context, db *sql.DB, key string) (string, bool, error) {
	var val string
	err := db.QueryRowContext(ctx, `SELECT value FROM schema_info WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func setSchemaInfo(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO schema_info (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	return err
}

// Path returns the filesystem path of the underlying database file.
func (s *Store) Path() string { return s.path }

// Checkpoint forces the WAL back into the main database file so a plain
// file copy of Path() taken immediately afterward is self-contained
// (spec.md C8's backup mechanism relies on this).
func (s *Store) Checkpoint(ctx context.Context) error {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return coreerr.Store("checkpoint", err)
	}
	return nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	if err := s.pool.closeAll(); err != nil {
		return coreerr.Store("close", err)
	}
	return nil
}

// Stats reports row counts across the core tables.
type Stats struct {
	Paths        int64
	Metadata     int64
	Hashes       int64
	RenameEntries int64
}

// Stats returns row counts for paths, metadata, hashes and rename_history.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db, err := s.conn(DefaultOwner)
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	queries := []struct {
		table string
		dest  *int64
	}{
		{"paths", &st.Paths},
		{"metadata", &st.Metadata},
		{"hashes", &st.Hashes},
		{"rename_history", &st.RenameEntries},
	}
	for _, q := range queries {
		row := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, q.table))
		if err := row.Scan(q.dest); err != nil {
			return Stats{}, coreerr.Store("stats", err)
		}
	}
	return st, nil
}
