// Package database persists the corpus: documents, classification verdicts,
// source checkpoints and run history, all in a single SQLite file.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the corpus store connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the corpus store at the given path. WAL mode plus a
// busy timeout let the pipeline's concurrent workers write without tripping
// over SQLITE_BUSY.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the store.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the store's file path.
func (db *DB) Path() string {
	return db.path
}
