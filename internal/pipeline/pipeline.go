// Package pipeline orchestrates ingestion from listing through labeling.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"foialens/internal/admin"
	"foialens/internal/cache"
	"foialens/internal/classify"
	"foialens/internal/config"
	"foialens/internal/database"
	"foialens/internal/dedupe"
	"foialens/internal/extract"
	"foialens/internal/llm"
	"foialens/internal/prefilter"
	"foialens/internal/ratelimit"
	"foialens/internal/source"
)

// StepResult holds the result of one per-source ingestion step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID string
	Steps []StepResult
}

// SourceStats counts per-document outcomes for one source.
type SourceStats struct {
	mu            sync.Mutex
	Listed        int
	Ingested      int
	AlreadySeen   int
	Duplicates    int
	Filtered      int
	Classified    int
	Neutral       int
	ExtractFailed int
	Failed        int
}

func (s *SourceStats) add(outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome {
	case outcomeClassified:
		s.Ingested++
		s.Classified++
	case outcomeNeutral:
		s.Ingested++
		s.Neutral++
	case outcomeDuplicate:
		s.Ingested++
		s.Duplicates++
	case outcomeFiltered:
		s.Ingested++
		s.Filtered++
	case outcomeExtractFailed:
		s.Ingested++
		s.ExtractFailed++
	case outcomeSeen:
		s.AlreadySeen++
	case outcomeFailed:
		s.Failed++
	}
}

const (
	outcomeClassified    = "classified"
	outcomeNeutral       = "neutral"
	outcomeDuplicate     = "duplicate"
	outcomeFiltered      = "filtered"
	outcomeExtractFailed = "extract_failed"
	outcomeSeen          = "seen"
	outcomeFailed        = "failed"
)

// Pipeline wires the ingestion stages together. One instance serves a whole
// process: the dedupe state and admin mapper are shared across sources.
type Pipeline struct {
	cfg       *config.Config
	db        *database.DB
	store     *cache.Store
	client    *http.Client
	limiters  *ratelimit.Registry
	extractor *extract.Extractor
	admins    *admin.Mapper
	deduper   *dedupe.Deduper
	filter    *prefilter.Filter
	judge     *classify.Judge
}

// New builds a pipeline from config. The judgment provider, embedder and
// administration dataset are resolved here so failures surface at startup
// rather than mid-run.
func New(cfg *config.Config, db *database.DB) (*Pipeline, error) {
	store, err := cache.New(filepath.Join(cfg.GetDataDir(), "cache"))
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	admins, err := admin.Load(admin.Options{
		DatasetURL:       cfg.Processing.Admin.DatasetURL,
		DatasetURLEnv:    cfg.Processing.Admin.DatasetURLEnv,
		CachePath:        cfg.Processing.Admin.CachePath,
		CachePathEnv:     cfg.Processing.Admin.CachePathEnv,
		TransitionMonths: cfg.Processing.Admin.TransitionMonths,
	})
	if err != nil {
		return nil, fmt.Errorf("loading administration dataset: %w", err)
	}

	cls := cfg.Classification
	provider := llm.CreateProvider(cls.Provider, cls.Model, cls.OllamaURL, cls.OpenAIModel, cls.APIKeyEnv)
	if provider == nil {
		return nil, fmt.Errorf("no judgment provider available: check Ollama is running or set %s", cls.APIKeyEnv)
	}

	var embedder llm.Embedder
	if cfg.Prefilter.UseEmbeddings {
		embedder = llm.NewOllamaEmbedder(cfg.Prefilter.EmbeddingModel, cfg.Prefilter.OllamaURL)
	}

	limiters := ratelimit.NewRegistry(func(name string) (float64, int) {
		budget := cfg.SourceRate(name)
		return budget.RequestsPerSecond, budget.Burst
	})

	p := &Pipeline{
		cfg:       cfg,
		db:        db,
		store:     store,
		client:    &http.Client{Timeout: 2 * time.Minute},
		limiters:  limiters,
		extractor: extract.New(cfg.Processing.Extraction),
		admins:    admins,
		deduper:   dedupe.New(cfg.Processing.Dedupe.SimilarityThreshold, cfg.Processing.Dedupe.ShingleSize),
		filter: prefilter.New(prefilter.Options{
			KeywordThreshold:   cfg.Prefilter.KeywordThreshold,
			Actors:             admins.Actors(),
			Embedder:           embedder,
			EmbeddingThreshold: cfg.Prefilter.EmbeddingThreshold,
		}),
	}
	p.judge = classify.New(db, provider, limiters.For("judge"), cls)
	return p, nil
}

// Run ingests every enabled source in the configured priority order. A
// failing source is recorded and the run moves on; only ctx cancellation
// stops the whole run.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{RunID: uuid.NewString()}
	if err := p.db.StartRun(r.RunID); err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "run", Err: err})
		return r
	}

	var documents, classified, filtered, failed int
	for i, name := range p.cfg.Sources.ProcessingPriority {
		if ctx.Err() != nil {
			break
		}
		if !p.sourceEnabled(name) {
			continue
		}

		log.Printf("Source %d/%d: ingesting %s...", i+1, len(p.cfg.Sources.ProcessingPriority), name)
		stats, err := p.IngestSource(ctx, name)
		step := StepResult{Name: name, Err: err}
		if stats != nil {
			step.Summary = fmt.Sprintf(
				"Listed %d items: %d new (%d classified, %d neutral, %d duplicates, %d filtered, %d unextractable), %d seen, %d failed",
				stats.Listed, stats.Ingested, stats.Classified, stats.Neutral, stats.Duplicates,
				stats.Filtered, stats.ExtractFailed, stats.AlreadySeen, stats.Failed,
			)
			documents += stats.Ingested
			classified += stats.Classified
			filtered += stats.Filtered
			failed += stats.Failed
		}
		r.Steps = append(r.Steps, step)
	}

	if err := p.db.FinishRun(r.RunID, documents, classified, filtered, failed); err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "run", Err: err})
	}
	return r
}

// IngestSource walks one source from its checkpointed cursor to exhaustion.
// Per-document failures are counted, not raised; an AuthError or listing
// failure aborts only this source.
func (p *Pipeline) IngestSource(ctx context.Context, name string) (*SourceStats, error) {
	lister, err := source.New(name, p.cfg, p.client, p.limiters)
	if err != nil {
		return nil, err
	}

	cursor, err := p.db.GetCheckpoint(name)
	if err != nil {
		return nil, err
	}

	stats := &SourceStats{}
	lim := p.limiters.For(name)
	maxItems := p.itemCap(name)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		items, next, err := lister.ListPage(ctx, cursor)
		if err != nil {
			return stats, fmt.Errorf("listing %s: %w", name, err)
		}
		stats.Listed += len(items)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers())
		for _, item := range items {
			item := item
			g.Go(func() error {
				outcome, err := p.processItem(gctx, lim, item)
				if err != nil {
					log.Printf("%s %s: %v", name, item.OriginID, err)
					stats.add(outcomeFailed)
					return nil
				}
				stats.add(outcome)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}

		if next == "" {
			if err := p.db.ClearCheckpoint(name); err != nil {
				return stats, err
			}
			return stats, nil
		}
		if err := p.db.SaveCheckpoint(name, next); err != nil {
			return stats, err
		}
		cursor = next

		if maxItems > 0 && stats.Listed >= maxItems {
			log.Printf("%s: item cap %d reached, stopping at cursor %q", name, maxItems, next)
			return stats, nil
		}
	}
}

// processItem carries one artifact through download, extraction, tagging,
// deduplication, prefiltering and classification.
func (p *Pipeline) processItem(ctx context.Context, lim *ratelimit.Limiter, item source.Item) (string, error) {
	raw, _, err := p.store.GetOrFetch(ctx, "raw", cache.Key(item.Source, item.OriginID), func(ctx context.Context) ([]byte, error) {
		if item.Body != nil {
			return item.Body, nil
		}
		return p.download(ctx, lim, item.URL)
	})
	if err != nil {
		return "", fmt.Errorf("fetching artifact: %w", err)
	}

	contentHash := cache.HashBytes(raw)
	docID, err := p.db.InsertDocument(
		item.Source, item.OriginID, contentHash,
		optional(item.Title), optional(item.Agency), dateString(item.DecisionDate),
	)
	if err != nil {
		return "", err
	}
	if docID == 0 {
		return outcomeSeen, nil
	}

	if item.DecisionDate != nil {
		res, err := p.admins.Resolve(*item.DecisionDate)
		switch {
		case errors.Is(err, admin.ErrDateOutOfRange):
			// Row survives without party tags.
		case err != nil:
			return "", err
		default:
			if err := p.db.UpdateDocumentAdmin(docID, &res.Name, &res.Party, res.IsTransition); err != nil {
				return "", err
			}
		}
	}

	if item.MetadataOnly {
		if _, err := p.judge.Neutral(contentHash); err != nil {
			return "", err
		}
		return outcomeNeutral, p.db.UpdateDocumentStatus(docID, database.StatusMetadata)
	}

	text, method, err := p.extractText(ctx, contentHash, item.ContentType, raw)
	if errors.Is(err, extract.ErrNoText) {
		return outcomeExtractFailed, p.db.UpdateDocumentStatus(docID, database.StatusExtractFailed)
	}
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	if err := p.db.UpdateDocumentExtraction(docID, method); err != nil {
		return "", err
	}

	clusterID, canonical := p.deduper.Assign(text)
	if err := p.db.UpdateDocumentCluster(docID, clusterID, canonical); err != nil {
		return "", err
	}
	if !canonical {
		// Joiners inherit the cluster's verdict through the canonical
		// member; they are never judged themselves.
		return outcomeDuplicate, p.db.UpdateDocumentStatus(docID, database.StatusDuplicate)
	}

	pass, reason, err := p.filter.Check(ctx, text)
	if err != nil {
		return "", err
	}
	if !pass {
		if _, err := p.judge.Filtered(contentHash, reason); err != nil {
			return "", err
		}
		return outcomeFiltered, p.db.MarkDocumentFiltered(docID, reason)
	}

	if _, err := p.judge.Classify(ctx, contentHash, text); err != nil {
		return "", fmt.Errorf("classifying: %w", err)
	}
	return outcomeClassified, p.db.UpdateDocumentStatus(docID, database.StatusClassified)
}

// extractText runs extraction through the cache, keyed by content hash and
// extractor version so changed artifacts or a bumped extractor re-run while
// everything else hits the cache.
func (p *Pipeline) extractText(ctx context.Context, contentHash, contentType string, raw []byte) (string, string, error) {
	type extraction struct {
		Method string `json:"method"`
		Text   string `json:"text"`
	}

	if data := p.store.Get(extract.CacheStage(), contentHash); data != nil {
		var e extraction
		if err := json.Unmarshal(data, &e); err != nil {
			return "", "", fmt.Errorf("corrupt extraction cache entry: %w", err)
		}
		return e.Text, e.Method, nil
	}

	text, method, err := p.extractor.Extract(ctx, contentType, raw)
	if err != nil {
		return "", "", err
	}

	data, err := json.Marshal(extraction{Method: method, Text: text})
	if err != nil {
		return "", "", err
	}
	if err := p.store.Put(extract.CacheStage(), contentHash, data); err != nil {
		return "", "", err
	}
	return text, method, nil
}

func (p *Pipeline) download(ctx context.Context, lim *ratelimit.Limiter, url string) ([]byte, error) {
	if err := lim.Acquire(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("downloading %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (p *Pipeline) sourceEnabled(name string) bool {
	switch name {
	case "muckrock":
		return p.cfg.Sources.MuckRock.Enabled
	case "agency_logs":
		return p.cfg.Sources.AgencyLogs.Enabled
	case "reading_rooms":
		return p.cfg.Sources.ReadingRooms.Enabled
	case "foia_gov_annual":
		return p.cfg.Sources.FOIAGov.Enabled
	}
	return false
}

func (p *Pipeline) itemCap(name string) int {
	if name == "muckrock" {
		return p.cfg.Sources.MuckRock.MaxRequests
	}
	return 0
}

func (p *Pipeline) workers() int {
	if w := p.cfg.Classification.Workers; w > 0 {
		return w
	}
	return 1
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
