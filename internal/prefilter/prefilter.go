// Package prefilter gates documents before the expensive judgment stage.
package prefilter

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"foialens/internal/llm"
)

// partyKeywords short-circuit the cheap stage: any hit at or above the
// threshold marks the document politically relevant without touching the
// embedding path.
var partyKeywords = []string{
	"democrat",
	"democrats",
	"democratic party",
	"republican",
	"republicans",
	"republican party",
	"gop",
	"dnc",
	"rnc",
	"campaign",
	"election",
	"senator",
	"congressional",
	"president",
}

// politicalExemplars anchor the optional embedding stage. A document whose
// embedding sits close enough to any exemplar passes even without keyword
// hits.
var politicalExemplars = []string{
	"Records concerning communications between the agency and a presidential campaign during the election season.",
	"Emails discussing congressional oversight requests about alleged misconduct by administration officials.",
	"Documents about coordination with a national party committee regarding voter outreach programs.",
}

// Filter decides whether a document plausibly concerns US party politics.
// Stage one is keyword plus actor-dictionary matching; stage two, when an
// embedder is configured, is cosine similarity against exemplar texts.
// Either stage passing is enough. The filter only ever marks documents, so
// a filtered document stays queryable with its reason.
type Filter struct {
	keywordThreshold int
	actors           map[string]string
	embedder         llm.Embedder
	embedThreshold   float64

	// exemplarVecs is filled on first use; mu lets concurrent Check calls
	// share one exemplar-embedding request.
	mu           sync.Mutex
	exemplarVecs [][]float64
}

type Options struct {
	KeywordThreshold int
	// Actors maps lowercase actor names to a party letter. Usually the
	// admin package's merged dictionary.
	Actors             map[string]string
	Embedder           llm.Embedder
	EmbeddingThreshold float64
}

func New(opts Options) *Filter {
	if opts.KeywordThreshold < 1 {
		opts.KeywordThreshold = 1
	}
	if opts.EmbeddingThreshold <= 0 {
		opts.EmbeddingThreshold = 0.78
	}
	return &Filter{
		keywordThreshold: opts.KeywordThreshold,
		actors:           opts.Actors,
		embedder:         opts.Embedder,
		embedThreshold:   opts.EmbeddingThreshold,
	}
}

// Check reports whether the document should proceed to classification. The
// reason explains the decision either way and is stored with filtered
// documents.
func (f *Filter) Check(ctx context.Context, text string) (pass bool, reason string, err error) {
	if score := keywordScore(text); score >= f.keywordThreshold {
		return true, fmt.Sprintf("keyword score %d", score), nil
	}

	if actor, party := f.matchActor(text); actor != "" {
		return true, fmt.Sprintf("known actor %q (%s)", actor, party), nil
	}

	if f.embedder == nil {
		return false, "no partisan keywords or known actors", nil
	}

	sim, err := f.embeddingSimilarity(ctx, text)
	if err != nil {
		return false, "", fmt.Errorf("embedding prefilter: %w", err)
	}
	if sim >= f.embedThreshold {
		return true, fmt.Sprintf("embedding similarity %.2f", sim), nil
	}
	return false, fmt.Sprintf("embedding similarity %.2f below threshold", sim), nil
}

func keywordScore(text string) int {
	lowered := strings.ToLower(text)
	score := 0
	for _, kw := range partyKeywords {
		if strings.Contains(lowered, kw) {
			score++
		}
	}
	return score
}

func (f *Filter) matchActor(text string) (actor, party string) {
	lowered := strings.ToLower(text)
	for name, p := range f.actors {
		if strings.Contains(lowered, name) {
			return name, p
		}
	}
	return "", ""
}

// embedHead bounds embedding input the same way the keyword stage bounds
// nothing: similarity saturates quickly and long documents blow the token
// budget.
const embedHead = 2000

func (f *Filter) embeddingSimilarity(ctx context.Context, text string) (float64, error) {
	exemplars, err := f.ensureExemplars(ctx)
	if err != nil {
		return 0, err
	}

	if len(text) > embedHead {
		text = text[:embedHead]
	}
	vecs, err := f.embedder.Embed(ctx, []string{text})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 1 {
		return 0, fmt.Errorf("embedder returned %d vectors for one input", len(vecs))
	}

	best := 0.0
	for _, ex := range exemplars {
		if sim := cosine(vecs[0], ex); sim > best {
			best = sim
		}
	}
	return best, nil
}

// ensureExemplars embeds the exemplar texts once. A failed attempt is not
// latched; the next caller retries.
func (f *Filter) ensureExemplars(ctx context.Context) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exemplarVecs != nil {
		return f.exemplarVecs, nil
	}
	vecs, err := f.embedder.Embed(ctx, politicalExemplars)
	if err != nil {
		return nil, fmt.Errorf("embedding exemplars: %w", err)
	}
	f.exemplarVecs = vecs
	return f.exemplarVecs, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
