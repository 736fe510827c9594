package database

// Document statuses.
const (
	StatusPending       = "pending"
	StatusClassified    = "classified"
	StatusFiltered      = "filtered"
	StatusDuplicate     = "duplicate"
	StatusExtractFailed = "extract_failed"
	StatusMetadata      = "metadata"
)

// Classification statuses.
const (
	ClassOK              = "ok"
	ClassSchemaFailed    = "schema_failed"
	ClassTransientFailed = "transient_failed"
	ClassNeutral         = "neutral"
	ClassFiltered        = "filtered"
)

// Document is one ingested disclosure that survived extraction.
type Document struct {
	ID            int64
	Source        string
	OriginID      string
	ContentHash   string
	Title         *string
	Agency        *string
	DecisionDate  *string
	AdminName     *string
	AdminParty    *string
	IsTransition  bool
	ExtractMethod *string
	ClusterID     *int64
	IsCanonical   bool
	Status        string
	FilterReason  *string
	CreatedAt     *string
}

// Classification is one judgment-service verdict, keyed by content hash and
// schema version so a document is never judged twice for the same pair.
type Classification struct {
	ID                 int64
	ContentHash        string
	SchemaVersion      int
	Status             string
	PoliticalRelevance float64
	WrongdoingD        float64
	WrongdoingR        float64
	FavorabilityD      float64
	FavorabilityR      float64
	RetryCount         int
	Error              *string
	RawJSON            *string
	CreatedAt          *string
}

// Run records one pipeline invocation.
type Run struct {
	ID         string
	StartedAt  *string
	FinishedAt *string
	Documents  int
	Classified int
	Filtered   int
	Failed     int
}

// LabeledRow joins a document with its classification for export.
type LabeledRow struct {
	Document       Document
	Classification *Classification
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalDocuments   int
	Pending          int
	Classified       int
	Filtered         int
	Duplicates       int
	ExtractFailed    int
	Clusters         int
	ClassifiedOK     int
	ClassifiedFailed int
	Runs             int
}
