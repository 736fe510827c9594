// Package export writes labeled corpora to disk for downstream analysis.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"foialens/internal/database"
)

var header = []string{
	"source", "origin_id", "content_hash", "title", "agency", "decision_date",
	"admin_name", "admin_party", "is_transition", "cluster_id", "is_canonical",
	"status", "filter_reason", "extract_method",
	"verdict_status", "political_relevance",
	"wrongdoing_probability_democrat", "wrongdoing_probability_republican",
	"favorability_democrat", "favorability_republican", "retry_count",
}

// WriteSource writes labeled_<source>.csv under outDir and returns the file
// path and row count. Every surviving document appears, including filtered
// rows, duplicates and extraction failures, so the export is a complete
// audit of the corpus rather than just the classified subset.
func WriteSource(db *database.DB, source, outDir string) (string, int, error) {
	rows, err := db.GetLabeledRows(source)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(outDir, fmt.Sprintf("labeled_%s.csv", source))

	f, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", 0, err
	}
	for _, row := range rows {
		if err := w.Write(record(row)); err != nil {
			return "", 0, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", 0, err
	}
	return path, len(rows), nil
}

func record(row database.LabeledRow) []string {
	d := row.Document
	rec := []string{
		d.Source, d.OriginID, d.ContentHash,
		str(d.Title), str(d.Agency), str(d.DecisionDate),
		str(d.AdminName), str(d.AdminParty), boolStr(d.IsTransition),
		intStr(d.ClusterID), boolStr(d.IsCanonical),
		d.Status, str(d.FilterReason), str(d.ExtractMethod),
	}

	c := row.Classification
	if c == nil {
		return append(rec, "", "", "", "", "", "", "")
	}
	return append(rec,
		c.Status,
		floatStr(c.PoliticalRelevance),
		floatStr(c.WrongdoingD), floatStr(c.WrongdoingR),
		floatStr(c.FavorabilityD), floatStr(c.FavorabilityR),
		strconv.Itoa(c.RetryCount),
	)
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func intStr(i *int64) string {
	if i == nil {
		return ""
	}
	return strconv.FormatInt(*i, 10)
}

func floatStr(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
