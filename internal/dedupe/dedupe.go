// Package dedupe clusters near-identical disclosure texts as they stream in.
package dedupe

import (
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"unicode"
)

const sketchSize = 64

// Deduper assigns documents to near-duplicate clusters. New documents are
// compared against cluster representatives only, never all members, which
// bounds the work to O(documents x clusters). The comparison is
// intentionally approximate: a missed near-duplicate costs one redundant
// classification call, while a false merge silently drops a distinct
// document, so thresholds should be tuned conservatively high.
type Deduper struct {
	mu          sync.Mutex
	threshold   float64
	shingleSize int
	reps        []representative
	nextCluster int64
}

type representative struct {
	clusterID int64
	sketch    []uint64
}

// New creates a deduper with the given similarity threshold and word-shingle
// size. Defaults: threshold 0.9, shingle size 4.
func New(threshold float64, shingleSize int) *Deduper {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.9
	}
	if shingleSize < 1 {
		shingleSize = 4
	}
	return &Deduper{threshold: threshold, shingleSize: shingleSize, nextCluster: 1}
}

// Assign places a document text into a cluster. Returns the cluster id and
// whether this document is the cluster's canonical member (true only for
// the document that founded the cluster).
func (d *Deduper) Assign(text string) (clusterID int64, canonical bool) {
	sketch := d.fingerprint(text)

	d.mu.Lock()
	defer d.mu.Unlock()

	bestSim := 0.0
	var best *representative
	for i := range d.reps {
		sim := similarity(sketch, d.reps[i].sketch)
		if sim > bestSim {
			bestSim = sim
			best = &d.reps[i]
		}
	}

	if best != nil && bestSim >= d.threshold {
		return best.clusterID, false
	}

	id := d.nextCluster
	d.nextCluster++
	d.reps = append(d.reps, representative{clusterID: id, sketch: sketch})
	return id, true
}

// Clusters returns the number of clusters seen so far.
func (d *Deduper) Clusters() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reps)
}

// fingerprint builds a bottom-k min-hash sketch over word shingles of the
// normalized text. Normalization strips case and punctuation, so texts
// differing only by whitespace or punctuation noise produce identical
// sketches.
func (d *Deduper) fingerprint(text string) []uint64 {
	words := normalize(text)
	if len(words) == 0 {
		return nil
	}

	k := d.shingleSize
	if k > len(words) {
		k = len(words)
	}

	seen := make(map[uint64]struct{})
	for i := 0; i+k <= len(words); i++ {
		h := fnv.New64a()
		for j := i; j < i+k; j++ {
			h.Write([]byte(words[j]))
			h.Write([]byte{0})
		}
		seen[h.Sum64()] = struct{}{}
	}

	hashes := make([]uint64, 0, len(seen))
	for h := range seen {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	if len(hashes) > sketchSize {
		hashes = hashes[:sketchSize]
	}
	return hashes
}

// similarity estimates Jaccard similarity from two bottom-k sketches: the k
// smallest hashes of the union are checked for membership in both.
func similarity(a, b []uint64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inA := make(map[uint64]struct{}, len(a))
	for _, h := range a {
		inA[h] = struct{}{}
	}
	inB := make(map[uint64]struct{}, len(b))
	for _, h := range b {
		inB[h] = struct{}{}
	}

	union := make([]uint64, 0, len(a)+len(b))
	union = append(union, a...)
	for _, h := range b {
		if _, ok := inA[h]; !ok {
			union = append(union, h)
		}
	}
	sort.Slice(union, func(i, j int) bool { return union[i] < union[j] })

	k := sketchSize
	if k > len(union) {
		k = len(union)
	}

	both := 0
	for _, h := range union[:k] {
		_, okA := inA[h]
		_, okB := inB[h]
		if okA && okB {
			both++
		}
	}
	return float64(both) / float64(k)
}

// normalize lowercases the text and splits it into alphanumeric tokens,
// discarding punctuation entirely.
func normalize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
