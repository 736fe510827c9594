package dedupe

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

const releaseText = `Pursuant to your Freedom of Information request dated March 3,
the Department has located 14 responsive records. Portions have been withheld
under Exemption 5 covering deliberative process. The remaining pages are
enclosed in full. An appeal may be filed within 90 days of this letter.`

func TestAssignWhitespaceNoiseSameCluster(t *testing.T) {
	d := New(0.9, 4)

	c1, canonical := d.Assign(releaseText)
	if !canonical {
		t.Fatal("first document should be canonical")
	}

	noisy := strings.ReplaceAll(releaseText, "\n", "   ")
	noisy = strings.ReplaceAll(noisy, ".", " .")
	c2, canonical := d.Assign(noisy)
	if c2 != c1 {
		t.Errorf("whitespace-noisy copy got cluster %d, want %d", c2, c1)
	}
	if canonical {
		t.Error("joining document should not be canonical")
	}
}

func TestAssignPunctuationAndCaseSameCluster(t *testing.T) {
	d := New(0.9, 4)

	c1, _ := d.Assign(releaseText)
	shouted := strings.ToUpper(strings.ReplaceAll(releaseText, ",", ";"))
	c2, _ := d.Assign(shouted)
	if c2 != c1 {
		t.Errorf("case/punctuation variant got cluster %d, want %d", c2, c1)
	}
}

func TestAssignUnrelatedTextsDifferentClusters(t *testing.T) {
	d := New(0.9, 4)

	c1, _ := d.Assign(releaseText)
	other := `Annual litigation summary for fiscal year 2019. The agency
received 412 new requests and closed 390. Median processing time for simple
track requests was 22 days. Complex track requests averaged 140 days.`
	c2, canonical := d.Assign(other)
	if c2 == c1 {
		t.Error("unrelated texts landed in the same cluster")
	}
	if !canonical {
		t.Error("founder of a new cluster should be canonical")
	}
	if got := d.Clusters(); got != 2 {
		t.Errorf("Clusters() = %d, want 2", got)
	}
}

func TestAssignThresholdControlsMerging(t *testing.T) {
	base := releaseText
	// Perturb roughly a third of the sentences so the texts overlap
	// substantially but not near-identically.
	variant := strings.Replace(base, "14 responsive records", "9 responsive documents", 1)
	variant = strings.Replace(variant, "within 90 days", "within 60 days", 1)

	tests := []struct {
		threshold float64
		wantMerge bool
	}{
		{0.99, false},
		{0.5, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("threshold_%v", tt.threshold), func(t *testing.T) {
			d := New(tt.threshold, 4)
			c1, _ := d.Assign(base)
			c2, _ := d.Assign(variant)
			merged := c1 == c2
			if merged != tt.wantMerge {
				t.Errorf("merged = %v, want %v", merged, tt.wantMerge)
			}
		})
	}
}

func TestAssignShortText(t *testing.T) {
	d := New(0.9, 4)

	c1, canonical := d.Assign("no records")
	if !canonical {
		t.Error("short document should still found a cluster")
	}
	c2, _ := d.Assign("no records")
	if c2 != c1 {
		t.Error("identical short texts should share a cluster")
	}
}

func TestAssignConcurrent(t *testing.T) {
	d := New(0.9, 4)

	var wg sync.WaitGroup
	ids := make([]int64, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], _ = d.Assign(releaseText)
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent identical texts split across clusters: %v", ids)
		}
	}
	if got := d.Clusters(); got != 1 {
		t.Errorf("Clusters() = %d, want 1", got)
	}
}
