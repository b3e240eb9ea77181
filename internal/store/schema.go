package store

// SchemaVersion is the code's current schema version. On open, an on-disk
// version below this value triggers migrations; a higher on-disk version is
// a fatal open-time error (forward compatibility is not supported).
const SchemaVersion = 1

// HashAlgorithm is the default content-hash algorithm recorded in
// schema_info and used by HashCache callers that don't specify one.
const HashAlgorithm = "crc32"

const schemaInfoDDL = `
CREATE TABLE IF NOT EXISTS schema_info (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

type migration struct {
	version int
	upSQL   []string
}

// migrations holds every schema change in order. Migration 1 creates the
// base schema described in spec.md §3/§4.1.
var migrations = []migration{
	{
		version: 1,
		upSQL: []string{
			`CREATE TABLE IF NOT EXISTS paths (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				file_path     TEXT NOT NULL UNIQUE,
				filename      TEXT NOT NULL,
				file_size     INTEGER,
				modified_time DATETIME,
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_paths_file_path ON paths(file_path)`,
			`CREATE INDEX IF NOT EXISTS idx_paths_filename ON paths(filename)`,

			`CREATE TABLE IF NOT EXISTS metadata (
				path_id     INTEGER PRIMARY KEY,
				kind        TEXT NOT NULL CHECK (kind IN ('fast','extended')),
				payload     TEXT NOT NULL,
				is_modified INTEGER NOT NULL DEFAULT 0,
				updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (path_id) REFERENCES paths(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_metadata_path_id ON metadata(path_id)`,
			`CREATE INDEX IF NOT EXISTS idx_metadata_kind ON metadata(kind)`,

			`CREATE TABLE IF NOT EXISTS hashes (
				path_id           INTEGER NOT NULL,
				algorithm         TEXT NOT NULL,
				hash_value        TEXT NOT NULL,
				file_size_at_hash INTEGER,
				created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (path_id, algorithm),
				FOREIGN KEY (path_id) REFERENCES paths(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_hashes_path_id ON hashes(path_id)`,
			`CREATE INDEX IF NOT EXISTS idx_hashes_algorithm ON hashes(algorithm)`,

			`CREATE TABLE IF NOT EXISTS rename_history (
				id                 INTEGER PRIMARY KEY AUTOINCREMENT,
				operation_id       TEXT NOT NULL,
				path_id            INTEGER,
				old_path           TEXT NOT NULL,
				new_path           TEXT NOT NULL,
				old_filename       TEXT NOT NULL,
				new_filename       TEXT NOT NULL,
				operation_kind     TEXT NOT NULL CHECK (operation_kind IN ('rename','undo','redo')),
				modules_json       TEXT,
				post_transform_json TEXT,
				created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (path_id) REFERENCES paths(id) ON DELETE SET NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_rename_history_operation_id ON rename_history(operation_id)`,
			`CREATE INDEX IF NOT EXISTS idx_rename_history_path_id ON rename_history(path_id)`,
			`CREATE INDEX IF NOT EXISTS idx_rename_history_created_at ON rename_history(created_at)`,
		},
	},
}
