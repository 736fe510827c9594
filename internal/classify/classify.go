// Package classify runs documents through the partisan-content judgment
// service and records verdicts.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"foialens/internal/config"
	"foialens/internal/database"
	"foialens/internal/llm"
	"foialens/internal/ratelimit"
)

const systemPrompt = `You classify US government documents released under public records law for partisan political content.
Treat Democrats and Republicans symmetrically. Base judgments only on the provided text.
Return STRICT JSON with exactly these keys and no others, every value a number between 0 and 1:
- political_relevance
- wrongdoing_probability_democrat
- wrongdoing_probability_republican
- favorability_democrat
- favorability_republican

Definitions (apply these equally to both parties):
1. Partisan actors include the parties, their candidates, elected officials, party committees, and campaign staff.
2. Wrongdoing means allegations or evidence of illegal acts, corruption, serious ethics violations, or abuse of office. Policy disagreement alone is not wrongdoing.
3. Favorability reflects whether the document portrays a party positively (near 1) or negatively (near 0); use 0.5 when neutral or absent.`

const correctiveInstruction = `Your previous response did not match the required schema.
Respond again with ONLY a JSON object containing exactly the five required numeric keys, each between 0 and 1, and nothing else.`

var schemaKeys = []string{
	"political_relevance",
	"wrongdoing_probability_democrat",
	"wrongdoing_probability_republican",
	"favorability_democrat",
	"favorability_republican",
}

const maxResponseTokens = 500

// Judge classifies canonical documents at most once per (content hash,
// schema version). Verdicts, including terminal failures, are recorded
// with their retry counts so the retry state machine is auditable.
type Judge struct {
	db       *database.DB
	provider llm.Provider
	limiter  *ratelimit.Limiter
	cfg      config.Classification
}

func New(db *database.DB, provider llm.Provider, lim *ratelimit.Limiter, cfg config.Classification) *Judge {
	return &Judge{db: db, provider: provider, limiter: lim, cfg: cfg}
}

// Classify returns the verdict for a document, calling the judgment service
// only if no verdict exists for this content hash at the current schema
// version. Identical content across sources is judged once.
func (j *Judge) Classify(ctx context.Context, contentHash, text string) (*database.Classification, error) {
	existing, err := j.db.GetClassification(contentHash, j.cfg.SchemaVersion)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	c := j.judge(ctx, contentHash, text)
	if err := j.db.InsertClassification(c); err != nil {
		return nil, err
	}
	// Re-read rather than trust our own write: a concurrent worker may
	// have won the insert race.
	return j.db.GetClassification(contentHash, j.cfg.SchemaVersion)
}

// Neutral records a neutral verdict without calling the judgment service.
// Used for metadata-only sources that carry no document text.
func (j *Judge) Neutral(contentHash string) (*database.Classification, error) {
	existing, err := j.db.GetClassification(contentHash, j.cfg.SchemaVersion)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	err = j.db.InsertClassification(&database.Classification{
		ContentHash:   contentHash,
		SchemaVersion: j.cfg.SchemaVersion,
		Status:        database.ClassNeutral,
		FavorabilityD: 0.5,
		FavorabilityR: 0.5,
	})
	if err != nil {
		return nil, err
	}
	return j.db.GetClassification(contentHash, j.cfg.SchemaVersion)
}

// Filtered records a verdict row for a document the prefilter rejected, so
// the result set stays append-only and complete without any judgment call.
func (j *Judge) Filtered(contentHash, reason string) (*database.Classification, error) {
	existing, err := j.db.GetClassification(contentHash, j.cfg.SchemaVersion)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	err = j.db.InsertClassification(&database.Classification{
		ContentHash:   contentHash,
		SchemaVersion: j.cfg.SchemaVersion,
		Status:        database.ClassFiltered,
		Error:         ptr(reason),
	})
	if err != nil {
		return nil, err
	}
	return j.db.GetClassification(contentHash, j.cfg.SchemaVersion)
}

// judge runs the schema-retry loop. Schema violations get a corrective
// instruction and another attempt up to the configured bound; transient
// provider errors retry with exponential backoff inside each attempt.
func (j *Judge) judge(ctx context.Context, contentHash, text string) *database.Classification {
	c := &database.Classification{
		ContentHash:   contentHash,
		SchemaVersion: j.cfg.SchemaVersion,
	}

	prompt := j.buildPrompt(text, "")
	maxAttempts := j.cfg.MaxSchemaRetries + 1
	var lastSchemaErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.RetryCount++
			prompt = j.buildPrompt(text, correctiveInstruction)
		}

		raw, err := j.callWithBackoff(ctx, prompt)
		if err != nil {
			c.Status = database.ClassTransientFailed
			c.Error = ptr(err.Error())
			return c
		}

		verdict, err := parseVerdict(raw)
		if err != nil {
			lastSchemaErr = err
			c.RawJSON = ptr(raw)
			continue
		}

		c.Status = database.ClassOK
		c.PoliticalRelevance = verdict["political_relevance"]
		c.WrongdoingD = verdict["wrongdoing_probability_democrat"]
		c.WrongdoingR = verdict["wrongdoing_probability_republican"]
		c.FavorabilityD = verdict["favorability_democrat"]
		c.FavorabilityR = verdict["favorability_republican"]
		c.RawJSON = ptr(raw)
		return c
	}

	c.Status = database.ClassSchemaFailed
	c.Error = ptr(fmt.Sprintf("schema validation failed after %d attempts: %v", maxAttempts, lastSchemaErr))
	return c
}

// callWithBackoff performs one rate-limited provider call, retrying
// transient failures until MaxElapsed runs out. Terminal errors (auth,
// other 4xx) stop immediately.
func (j *Judge) callWithBackoff(ctx context.Context, prompt string) (string, error) {
	var raw string
	op := func() error {
		if err := j.limiter.Acquire(ctx); err != nil {
			return backoff.Permanent(err)
		}
		resp, err := j.provider.Generate(ctx, prompt, maxResponseTokens)
		if err != nil {
			if llm.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		raw = resp
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = j.cfg.MaxElapsed.Std()
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return raw, nil
}

func (j *Judge) buildPrompt(text, corrective string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	if corrective != "" {
		b.WriteString("\n\n")
		b.WriteString(corrective)
	}
	b.WriteString("\n\nDOCUMENT TEXT:\n\"\"\"\n")
	b.WriteString(truncate(text, j.cfg.MaxCharsPerDoc))
	b.WriteString("\n\"\"\"")
	return b.String()
}

// parseVerdict validates the judgment response against the exact schema:
// the five required keys, no extras, every value numeric in [0, 1].
func parseVerdict(raw string) (map[string]float64, error) {
	fields := llm.ParseJSONResponse(raw)
	if fields == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	if len(fields) != len(schemaKeys) {
		return nil, fmt.Errorf("expected exactly %d keys, got %d", len(schemaKeys), len(fields))
	}

	verdict := make(map[string]float64, len(schemaKeys))
	for _, key := range schemaKeys {
		value, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("missing key %q", key)
		}
		v, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("key %q is not numeric", key)
		}
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("key %q out of range: %v", key, v)
		}
		verdict[key] = v
	}
	return verdict, nil
}

func truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "\n...[truncated]"
}

func ptr(s string) *string { return &s }
