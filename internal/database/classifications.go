package database

import "database/sql"

// GetClassification returns the stored verdict for a (content hash, schema
// version) pair, or nil when the pair has never been judged. This lookup is
// the idempotence gate: a hit means the judgment service is not called again.
func (db *DB) GetClassification(contentHash string, schemaVersion int) (*Classification, error) {
	row := db.conn.QueryRow(selectClassifications+` WHERE content_hash = ? AND schema_version = ?`,
		contentHash, schemaVersion)
	c, err := scanClassification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// InsertClassification records a verdict. The UNIQUE(content_hash,
// schema_version) constraint makes concurrent writers idempotent: the first
// writer wins and later attempts are no-ops.
func (db *DB) InsertClassification(c *Classification) error {
	_, err := db.conn.Exec(
		`INSERT OR IGNORE INTO classifications
		(content_hash, schema_version, status, political_relevance, wrongdoing_d, wrongdoing_r,
		 favorability_d, favorability_r, retry_count, error, raw_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ContentHash, c.SchemaVersion, c.Status, c.PoliticalRelevance,
		c.WrongdoingD, c.WrongdoingR, c.FavorabilityD, c.FavorabilityR,
		c.RetryCount, c.Error, c.RawJSON,
	)
	return err
}

// GetLabeledRows joins documents with their classifications for one source.
// Rows without a classification (extract failures, duplicates) still appear,
// with a nil Classification, so corpus completeness can be audited.
func (db *DB) GetLabeledRows(source string) ([]LabeledRow, error) {
	docs, err := db.GetDocumentsBySource(source)
	if err != nil {
		return nil, err
	}

	rows := make([]LabeledRow, 0, len(docs))
	for _, d := range docs {
		row := LabeledRow{Document: d}
		c, err := db.latestClassification(d.ContentHash)
		if err != nil {
			return nil, err
		}
		row.Classification = c
		rows = append(rows, row)
	}
	return rows, nil
}

func (db *DB) latestClassification(contentHash string) (*Classification, error) {
	row := db.conn.QueryRow(selectClassifications+
		` WHERE content_hash = ? ORDER BY schema_version DESC LIMIT 1`, contentHash)
	c, err := scanClassification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

const selectClassifications = `SELECT id, content_hash, schema_version, status, political_relevance,
	wrongdoing_d, wrongdoing_r, favorability_d, favorability_r, retry_count, error, raw_json, created_at
	FROM classifications`

func scanClassification(row *sql.Row) (*Classification, error) {
	var c Classification
	if err := row.Scan(&c.ID, &c.ContentHash, &c.SchemaVersion, &c.Status, &c.PoliticalRelevance,
		&c.WrongdoingD, &c.WrongdoingR, &c.FavorabilityD, &c.FavorabilityR,
		&c.RetryCount, &c.Error, &c.RawJSON, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
