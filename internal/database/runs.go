package database

// StartRun records the beginning of a pipeline invocation.
func (db *DB) StartRun(runID string) error {
	_, err := db.conn.Exec("INSERT INTO runs (id) VALUES (?)", runID)
	return err
}

// FinishRun records final counters for a run.
func (db *DB) FinishRun(runID string, documents, classified, filtered, failed int) error {
	_, err := db.conn.Exec(
		`UPDATE runs SET finished_at = datetime('now'), documents = ?, classified = ?, filtered = ?, failed = ?
		WHERE id = ?`,
		documents, classified, filtered, failed, runID,
	)
	return err
}

// GetStats returns aggregate counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &s.TotalDocuments},
		{"SELECT COUNT(*) FROM documents WHERE status = 'pending'", &s.Pending},
		{"SELECT COUNT(*) FROM documents WHERE status = 'classified'", &s.Classified},
		{"SELECT COUNT(*) FROM documents WHERE status = 'filtered'", &s.Filtered},
		{"SELECT COUNT(*) FROM documents WHERE status = 'duplicate'", &s.Duplicates},
		{"SELECT COUNT(*) FROM documents WHERE status = 'extract_failed'", &s.ExtractFailed},
		{"SELECT COUNT(DISTINCT cluster_id) FROM documents WHERE cluster_id IS NOT NULL", &s.Clusters},
		{"SELECT COUNT(*) FROM classifications WHERE status = 'ok'", &s.ClassifiedOK},
		{"SELECT COUNT(*) FROM classifications WHERE status IN ('schema_failed', 'transient_failed')", &s.ClassifiedFailed},
		{"SELECT COUNT(*) FROM runs", &s.Runs},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}
