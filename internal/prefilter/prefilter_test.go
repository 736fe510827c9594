package prefilter

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// stubEmbedder returns canned vectors: texts containing "outreach" land on
// the exemplar axis, everything else is orthogonal.
type stubEmbedder struct {
	calls atomic.Int64
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	s.calls.Add(1)
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if strings.Contains(strings.ToLower(t), "outreach") {
			out[i] = []float64{1, 0, 0}
		} else {
			out[i] = []float64{0, 1, 0}
		}
	}
	return out, nil
}

func TestCheckKeywordHit(t *testing.T) {
	f := New(Options{KeywordThreshold: 1})

	pass, reason, err := f.Check(context.Background(), "Records about the Republican senator's correspondence.")
	if err != nil {
		t.Fatal(err)
	}
	if !pass {
		t.Errorf("keyword-bearing text filtered out: %s", reason)
	}
}

func TestCheckKeywordThreshold(t *testing.T) {
	text := "Correspondence regarding the election." // one keyword

	f := New(Options{KeywordThreshold: 2})
	pass, _, err := f.Check(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if pass {
		t.Error("single keyword passed a threshold of 2")
	}

	f = New(Options{KeywordThreshold: 1})
	if pass, _, _ = f.Check(context.Background(), text); !pass {
		t.Error("single keyword failed a threshold of 1")
	}
}

func TestCheckActorDictionary(t *testing.T) {
	f := New(Options{
		KeywordThreshold: 5,
		Actors:           map[string]string{"hillary clinton": "D"},
	})

	pass, reason, err := f.Check(context.Background(), "Emails mentioning Hillary Clinton's schedule.")
	if err != nil {
		t.Fatal(err)
	}
	if !pass {
		t.Errorf("actor mention filtered out: %s", reason)
	}
	if !strings.Contains(reason, "hillary clinton") {
		t.Errorf("reason should name the actor, got %q", reason)
	}
}

func TestCheckNoSignals(t *testing.T) {
	f := New(Options{KeywordThreshold: 1})

	pass, reason, err := f.Check(context.Background(), "Routine facilities maintenance request for building 4.")
	if err != nil {
		t.Fatal(err)
	}
	if pass {
		t.Error("apolitical text passed without any signal")
	}
	if reason == "" {
		t.Error("filtered documents need a recorded reason")
	}
}

func TestCheckEmbeddingFallback(t *testing.T) {
	emb := &stubEmbedder{}
	f := New(Options{
		KeywordThreshold:   1,
		Embedder:           emb,
		EmbeddingThreshold: 0.9,
	})

	// No keywords, but embedding-similar to the exemplars.
	pass, reason, err := f.Check(context.Background(), "Community outreach materials for the fall season.")
	if err != nil {
		t.Fatal(err)
	}
	if !pass {
		t.Errorf("embedding-similar text filtered: %s", reason)
	}

	pass, _, err = f.Check(context.Background(), "Cafeteria menu archives for 2016.")
	if err != nil {
		t.Fatal(err)
	}
	if pass {
		t.Error("orthogonal text passed the embedding stage")
	}

	// Exemplars embed once, then one call per checked document.
	if got := emb.calls.Load(); got != 3 {
		t.Errorf("embedder calls = %d, want 3", got)
	}
}

func TestCheckConcurrent(t *testing.T) {
	emb := &stubEmbedder{}
	f := New(Options{
		KeywordThreshold:   1,
		Embedder:           emb,
		EmbeddingThreshold: 0.9,
	})

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pass, reason, err := f.Check(context.Background(), "Community outreach materials for the fall season.")
			if err != nil {
				t.Errorf("Check: %v", err)
			}
			if !pass {
				t.Errorf("embedding-similar text filtered: %s", reason)
			}
		}()
	}
	wg.Wait()

	// One exemplar embedding shared across all workers, one call per document.
	if got := emb.calls.Load(); got != workers+1 {
		t.Errorf("embedder calls = %d, want %d", got, workers+1)
	}
}
