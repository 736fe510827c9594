package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func TestInsertDocument(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertDocument("muckrock", "123", "abc123", ptr("Test Request"), ptr("FBI"), ptr("2021-03-15"))
	if err != nil {
		t.Fatalf("InsertDocument: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	doc, err := db.GetDocumentByOrigin("muckrock", "123")
	if err != nil {
		t.Fatalf("GetDocumentByOrigin: %v", err)
	}
	if doc == nil {
		t.Fatal("expected document")
	}
	if doc.ContentHash != "abc123" {
		t.Errorf("expected hash abc123, got %q", doc.ContentHash)
	}
	if doc.Status != StatusPending {
		t.Errorf("expected pending status, got %q", doc.Status)
	}
}

func TestInsertDocumentDuplicate(t *testing.T) {
	db := openTestDB(t)

	id1, _ := db.InsertDocument("muckrock", "123", "abc", nil, nil, nil)
	id2, _ := db.InsertDocument("muckrock", "123", "def", nil, nil, nil)
	if id1 == 0 {
		t.Error("expected first insert to succeed")
	}
	if id2 != 0 {
		t.Errorf("expected duplicate insert to return 0, got %d", id2)
	}

	// Same origin id under a different source is a distinct document.
	id3, _ := db.InsertDocument("reading_rooms", "123", "abc", nil, nil, nil)
	if id3 == 0 {
		t.Error("expected insert under different source to succeed")
	}
}

func TestUpdateDocumentLifecycle(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.InsertDocument("muckrock", "7", "hash7", nil, nil, ptr("2021-06-01"))

	if err := db.UpdateDocumentAdmin(id, ptr("Biden"), ptr("D"), false); err != nil {
		t.Fatalf("UpdateDocumentAdmin: %v", err)
	}
	if err := db.UpdateDocumentExtraction(id, "direct"); err != nil {
		t.Fatalf("UpdateDocumentExtraction: %v", err)
	}
	if err := db.UpdateDocumentCluster(id, 4, true); err != nil {
		t.Fatalf("UpdateDocumentCluster: %v", err)
	}
	if err := db.UpdateDocumentStatus(id, StatusClassified); err != nil {
		t.Fatalf("UpdateDocumentStatus: %v", err)
	}

	doc, _ := db.GetDocumentByOrigin("muckrock", "7")
	if doc.AdminName == nil || *doc.AdminName != "Biden" {
		t.Error("expected admin name Biden")
	}
	if doc.ClusterID == nil || *doc.ClusterID != 4 {
		t.Error("expected cluster 4")
	}
	if !doc.IsCanonical {
		t.Error("expected canonical flag")
	}
	if doc.Status != StatusClassified {
		t.Errorf("expected classified status, got %q", doc.Status)
	}
}

func TestMarkDocumentFiltered(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.InsertDocument("agency_logs", "dept/0", "h0", nil, nil, nil)

	if err := db.MarkDocumentFiltered(id, "no political signals"); err != nil {
		t.Fatalf("MarkDocumentFiltered: %v", err)
	}

	doc, _ := db.GetDocumentByOrigin("agency_logs", "dept/0")
	if doc.Status != StatusFiltered {
		t.Errorf("expected filtered status, got %q", doc.Status)
	}
	if doc.FilterReason == nil || *doc.FilterReason != "no political signals" {
		t.Errorf("expected filter reason, got %v", doc.FilterReason)
	}
}

func TestClassificationIdempotence(t *testing.T) {
	db := openTestDB(t)

	c := &Classification{
		ContentHash:        "hash1",
		SchemaVersion:      1,
		Status:             ClassOK,
		PoliticalRelevance: 0.9,
		WrongdoingD:        0.2,
		WrongdoingR:        0.7,
		RetryCount:         1,
	}
	if err := db.InsertClassification(c); err != nil {
		t.Fatalf("InsertClassification: %v", err)
	}

	// A second write for the same (hash, schema version) is a no-op.
	c2 := &Classification{ContentHash: "hash1", SchemaVersion: 1, Status: ClassSchemaFailed}
	if err := db.InsertClassification(c2); err != nil {
		t.Fatalf("second InsertClassification: %v", err)
	}

	got, err := db.GetClassification("hash1", 1)
	if err != nil {
		t.Fatalf("GetClassification: %v", err)
	}
	if got == nil {
		t.Fatal("expected classification")
	}
	if got.Status != ClassOK {
		t.Errorf("first writer must win, got status %q", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", got.RetryCount)
	}

	// A bumped schema version is a fresh namespace.
	if got, _ := db.GetClassification("hash1", 2); got != nil {
		t.Error("expected no classification for schema version 2")
	}
}

func TestCheckpoints(t *testing.T) {
	db := openTestDB(t)

	cursor, err := db.GetCheckpoint("muckrock")
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if cursor != "" {
		t.Errorf("expected empty cursor, got %q", cursor)
	}

	if err := db.SaveCheckpoint("muckrock", "https://api/page/3"); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	if err := db.SaveCheckpoint("muckrock", "https://api/page/4"); err != nil {
		t.Fatalf("SaveCheckpoint overwrite: %v", err)
	}

	cursor, _ = db.GetCheckpoint("muckrock")
	if cursor != "https://api/page/4" {
		t.Errorf("expected latest cursor, got %q", cursor)
	}

	db.ClearCheckpoint("muckrock")
	if cursor, _ := db.GetCheckpoint("muckrock"); cursor != "" {
		t.Errorf("expected cleared cursor, got %q", cursor)
	}
}

func TestGetLabeledRows(t *testing.T) {
	db := openTestDB(t)

	id1, _ := db.InsertDocument("muckrock", "1", "h1", ptr("Doc 1"), nil, nil)
	db.UpdateDocumentStatus(id1, StatusClassified)
	db.InsertClassification(&Classification{ContentHash: "h1", SchemaVersion: 1, Status: ClassOK, PoliticalRelevance: 0.8})

	id2, _ := db.InsertDocument("muckrock", "2", "h2", ptr("Doc 2"), nil, nil)
	db.UpdateDocumentStatus(id2, StatusExtractFailed)

	rows, err := db.GetLabeledRows("muckrock")
	if err != nil {
		t.Fatalf("GetLabeledRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Classification == nil || rows[0].Classification.PoliticalRelevance != 0.8 {
		t.Error("expected classification on first row")
	}
	if rows[1].Classification != nil {
		t.Error("expected nil classification for extract-failed row")
	}
}

func TestRunsAndStats(t *testing.T) {
	db := openTestDB(t)

	if err := db.StartRun("run-1"); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := db.FinishRun("run-1", 10, 6, 3, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	id, _ := db.InsertDocument("muckrock", "1", "h1", nil, nil, nil)
	db.UpdateDocumentStatus(id, StatusClassified)
	db.UpdateDocumentCluster(id, 1, true)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalDocuments != 1 || stats.Classified != 1 || stats.Clusters != 1 || stats.Runs != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
