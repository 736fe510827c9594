package database

import "database/sql"

// SaveCheckpoint stores the pagination cursor for a source so a partial run
// can resume from it instead of restarting at the origin's first page.
func (db *DB) SaveCheckpoint(source, cursor string) error {
	_, err := db.conn.Exec(
		`INSERT INTO checkpoints (source, cursor, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(source) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at`,
		source, cursor,
	)
	return err
}

// GetCheckpoint returns the saved cursor for a source, or "" when none exists.
func (db *DB) GetCheckpoint(source string) (string, error) {
	var cursor string
	err := db.conn.QueryRow("SELECT cursor FROM checkpoints WHERE source = ?", source).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cursor, nil
}

// ClearCheckpoint removes a source's cursor after its listing completes.
func (db *DB) ClearCheckpoint(source string) error {
	_, err := db.conn.Exec("DELETE FROM checkpoints WHERE source = ?", source)
	return err
}
