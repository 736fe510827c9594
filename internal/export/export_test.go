package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"foialens/internal/database"
)

func ptr(s string) *string { return &s }

func TestWriteSource(t *testing.T) {
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	id1, err := db.InsertDocument("muckrock", "1/1", "hash-a", ptr("Travel records"), ptr("State"), ptr("2019-05-01"))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateDocumentAdmin(id1, ptr("Trump"), ptr("R"), false); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateDocumentCluster(id1, 1, true); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateDocumentStatus(id1, database.StatusClassified); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertClassification(&database.Classification{
		ContentHash:   "hash-a",
		SchemaVersion: 1,
		Status:        database.ClassOK,
		WrongdoingR:   0.75,
		FavorabilityD: 0.5,
		FavorabilityR: 0.25,
	}); err != nil {
		t.Fatal(err)
	}

	id2, err := db.InsertDocument("muckrock", "2/1", "hash-b", ptr("Scanned memo"), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateDocumentStatus(id2, database.StatusExtractFailed); err != nil {
		t.Fatal(err)
	}

	path, n, err := WriteSource(db, "muckrock", dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("rows written = %d, want 2", n)
	}
	if filepath.Base(path) != "labeled_muckrock.csv" {
		t.Errorf("file name = %s", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("csv rows = %d, want header + 2", len(records))
	}
	for i, rec := range records {
		if len(rec) != len(header) {
			t.Fatalf("row %d has %d fields, want %d", i, len(rec), len(header))
		}
	}

	cols := make(map[string]int, len(header))
	for i, h := range records[0] {
		cols[h] = i
	}
	classified := records[1]
	if classified[cols["admin_party"]] != "R" || classified[cols["verdict_status"]] != database.ClassOK {
		t.Errorf("classified row: %v", classified)
	}
	if classified[cols["wrongdoing_probability_republican"]] != "0.75" {
		t.Errorf("score column: %q", classified[cols["wrongdoing_probability_republican"]])
	}

	failed := records[2]
	if failed[cols["status"]] != database.StatusExtractFailed {
		t.Errorf("failed row status: %q", failed[cols["status"]])
	}
	if failed[cols["verdict_status"]] != "" {
		t.Error("unclassified rows must have empty verdict columns")
	}
}
