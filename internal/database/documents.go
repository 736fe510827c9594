package database

import (
	"database/sql"
)

// InsertDocument inserts a document. Returns the ID on success, 0 if a row
// for the same (source, origin_id) already exists.
func (db *DB) InsertDocument(source, originID, contentHash string, title, agency, decisionDate *string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO documents (source, origin_id, content_hash, title, agency, decision_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		source, originID, contentHash, title, agency, decisionDate,
	)
	if err != nil {
		// Duplicate (source, origin_id) constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetDocumentByOrigin returns the document for a (source, origin_id) pair.
func (db *DB) GetDocumentByOrigin(source, originID string) (*Document, error) {
	row := db.conn.QueryRow(selectDocuments+` WHERE source = ? AND origin_id = ?`, source, originID)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDocumentsBySource returns all documents for a source in insertion order.
func (db *DB) GetDocumentsBySource(source string) ([]Document, error) {
	rows, err := db.conn.Query(selectDocuments+` WHERE source = ? ORDER BY id`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// UpdateDocumentAdmin stores the resolved administration tags.
func (db *DB) UpdateDocumentAdmin(docID int64, adminName, adminParty *string, isTransition bool) error {
	transition := 0
	if isTransition {
		transition = 1
	}
	_, err := db.conn.Exec(
		"UPDATE documents SET admin_name = ?, admin_party = ?, is_transition = ? WHERE id = ?",
		adminName, adminParty, transition, docID,
	)
	return err
}

// UpdateDocumentExtraction records which extraction path produced the text.
func (db *DB) UpdateDocumentExtraction(docID int64, method string) error {
	_, err := db.conn.Exec("UPDATE documents SET extract_method = ? WHERE id = ?", method, docID)
	return err
}

// UpdateDocumentCluster assigns a document to a dedupe cluster.
func (db *DB) UpdateDocumentCluster(docID int64, clusterID int64, canonical bool) error {
	c := 0
	if canonical {
		c = 1
	}
	_, err := db.conn.Exec(
		"UPDATE documents SET cluster_id = ?, is_canonical = ? WHERE id = ?",
		clusterID, c, docID,
	)
	return err
}

// UpdateDocumentStatus moves a document to a new status.
func (db *DB) UpdateDocumentStatus(docID int64, status string) error {
	_, err := db.conn.Exec("UPDATE documents SET status = ? WHERE id = ?", status, docID)
	return err
}

// MarkDocumentFiltered records a prefilter rejection with its reason. The
// row stays queryable; filtered documents are never dropped.
func (db *DB) MarkDocumentFiltered(docID int64, reason string) error {
	_, err := db.conn.Exec(
		"UPDATE documents SET status = ?, filter_reason = ? WHERE id = ?",
		StatusFiltered, reason, docID,
	)
	return err
}

const selectDocuments = `SELECT id, source, origin_id, content_hash, title, agency, decision_date,
	admin_name, admin_party, is_transition, extract_method, cluster_id, is_canonical, status,
	filter_reason, created_at
	FROM documents`

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var d Document
		var transition, canonical int
		if err := rows.Scan(&d.ID, &d.Source, &d.OriginID, &d.ContentHash, &d.Title, &d.Agency,
			&d.DecisionDate, &d.AdminName, &d.AdminParty, &transition, &d.ExtractMethod,
			&d.ClusterID, &canonical, &d.Status, &d.FilterReason, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.IsTransition = transition != 0
		d.IsCanonical = canonical != 0
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanDocument(row *sql.Row) (*Document, error) {
	var d Document
	var transition, canonical int
	if err := row.Scan(&d.ID, &d.Source, &d.OriginID, &d.ContentHash, &d.Title, &d.Agency,
		&d.DecisionDate, &d.AdminName, &d.AdminParty, &transition, &d.ExtractMethod,
		&d.ClusterID, &canonical, &d.Status, &d.FilterReason, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.IsTransition = transition != 0
	d.IsCanonical = canonical != 0
	return &d, nil
}
