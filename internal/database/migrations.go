package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    origin_id TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    title TEXT,
    agency TEXT,
    decision_date TEXT,
    admin_name TEXT,
    admin_party TEXT,
    is_transition INTEGER DEFAULT 0,
    extract_method TEXT,
    cluster_id INTEGER,
    is_canonical INTEGER DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE(source, origin_id)
);

CREATE TABLE IF NOT EXISTS classifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    content_hash TEXT NOT NULL,
    schema_version INTEGER NOT NULL,
    status TEXT NOT NULL,
    political_relevance REAL,
    wrongdoing_d REAL,
    wrongdoing_r REAL,
    favorability_d REAL,
    favorability_r REAL,
    retry_count INTEGER DEFAULT 0,
    error TEXT,
    raw_json TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE(content_hash, schema_version)
);

CREATE TABLE IF NOT EXISTS checkpoints (
    source TEXT PRIMARY KEY,
    cursor TEXT NOT NULL,
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT DEFAULT (datetime('now')),
    finished_at TEXT,
    documents INTEGER DEFAULT 0,
    classified INTEGER DEFAULT 0,
    filtered INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_classifications_hash ON classifications(content_hash);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "record why a document was filtered",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE documents ADD COLUMN filter_reason TEXT`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
