// Package analyze computes descriptive summaries over labeled corpora.
package analyze

import (
	"fmt"
	"sort"
	"strings"

	"foialens/internal/database"
)

// Summary holds per-administration-party score means for one hypothesis.
// Only successfully classified rows with a resolved administration count;
// transition-window rows are reported separately so the caller can judge
// how much attribution ambiguity the corpus carries.
type Summary struct {
	Hypothesis string
	Groups     []Group
	Transition int
}

// Group aggregates documents decided under administrations of one party.
type Group struct {
	AdminParty string
	Documents  int
	MeanD      float64
	MeanR      float64
}

// Wrongdoing summarizes mean per-party wrongdoing probabilities grouped by
// the party holding the administration when each document was decided.
func Wrongdoing(db *database.DB, sources []string) (*Summary, error) {
	return summarize(db, sources, "wrongdoing", func(c *database.Classification) (float64, float64) {
		return c.WrongdoingD, c.WrongdoingR
	})
}

// Favorability summarizes mean per-party favorability the same way.
func Favorability(db *database.DB, sources []string) (*Summary, error) {
	return summarize(db, sources, "favorability", func(c *database.Classification) (float64, float64) {
		return c.FavorabilityD, c.FavorabilityR
	})
}

func summarize(db *database.DB, sources []string, hypothesis string, scores func(*database.Classification) (float64, float64)) (*Summary, error) {
	type acc struct {
		n    int
		sumD float64
		sumR float64
	}
	groups := make(map[string]*acc)
	transition := 0

	for _, source := range sources {
		rows, err := db.GetLabeledRows(source)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", source, err)
		}
		for _, row := range rows {
			c := row.Classification
			if c == nil || c.Status != database.ClassOK {
				continue
			}
			if row.Document.AdminParty == nil {
				continue
			}
			if row.Document.IsTransition {
				transition++
			}

			party := *row.Document.AdminParty
			a := groups[party]
			if a == nil {
				a = &acc{}
				groups[party] = a
			}
			d, r := scores(c)
			a.n++
			a.sumD += d
			a.sumR += r
		}
	}

	s := &Summary{Hypothesis: hypothesis, Transition: transition}
	for party, a := range groups {
		s.Groups = append(s.Groups, Group{
			AdminParty: party,
			Documents:  a.n,
			MeanD:      a.sumD / float64(a.n),
			MeanR:      a.sumR / float64(a.n),
		})
	}
	sort.Slice(s.Groups, func(i, j int) bool { return s.Groups[i].AdminParty < s.Groups[j].AdminParty })
	return s, nil
}

// String renders the summary as an aligned text table.
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s by administration party\n", s.Hypothesis)
	fmt.Fprintf(&b, "%-12s %10s %10s %10s\n", "admin_party", "documents", "mean_D", "mean_R")
	for _, g := range s.Groups {
		fmt.Fprintf(&b, "%-12s %10d %10.3f %10.3f\n", g.AdminParty, g.Documents, g.MeanD, g.MeanR)
	}
	if s.Transition > 0 {
		fmt.Fprintf(&b, "(%d documents fall in a transition window)\n", s.Transition)
	}
	return b.String()
}
