// Package admin resolves decision dates to presidential administrations and
// provides the partisan actor dictionary used by the prefilter.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrDateOutOfRange reports a date before the earliest or after the latest
// covered administration.
var ErrDateOutOfRange = errors.New("date outside covered administrations")

// Administration is one contiguous executive tenure.
type Administration struct {
	Name  string `json:"name"`
	Party string `json:"party"` // "D" or "R"
	Start string `json:"start"` // YYYY-MM-DD, inclusive
	End   string `json:"end"`   // YYYY-MM-DD, exclusive

	// Actors are principal partisan figures associated with this tenure,
	// merged into the prefilter dictionary.
	Actors []string `json:"actors,omitempty"`

	start time.Time
	end   time.Time
}

// Resolution is the outcome of a date lookup.
type Resolution struct {
	Name         string
	Party        string
	IsTransition bool
}

// Mapper is an immutable date-to-administration lookup, built once at
// process start and threaded explicitly through components that need it.
type Mapper struct {
	periods          []Administration
	transitionMonths int
	actors           map[string]string // lowercase name -> party
}

// Options configures dataset loading.
type Options struct {
	DatasetURL       string
	DatasetURLEnv    string
	CachePath        string
	CachePathEnv     string
	TransitionMonths int
}

// fallbackPeriods covers the span used when the reference dataset cannot be
// fetched. Ranges are half-open [start, end).
var fallbackPeriods = []Administration{
	{Name: "Clinton", Party: "D", Start: "1993-01-20", End: "2001-01-20"},
	{Name: "Bush", Party: "R", Start: "2001-01-20", End: "2009-01-20"},
	{Name: "Obama", Party: "D", Start: "2009-01-20", End: "2017-01-20"},
	{Name: "Trump", Party: "R", Start: "2017-01-20", End: "2021-01-20"},
	{Name: "Biden", Party: "D", Start: "2021-01-20", End: "2025-01-20"},
}

// staticActors seeds the dictionary regardless of dataset availability.
var staticActors = map[string]string{
	"joe biden":       "D",
	"joseph r. biden": "D",
	"donald trump":    "R",
	"barack obama":    "D",
	"hillary clinton": "D",
	"mitch mcconnell": "R",
	"nancy pelosi":    "D",
	"kevin mccarthy":  "R",
	"chuck schumer":   "D",
	"dnc":             "D",
	"rnc":             "R",
}

// Load builds the mapper from the reference dataset, with a disk cache and
// env-var overrides for both the source URL and the cache location. When
// neither a cached nor a fetchable dataset is available, the built-in
// fallback list is used.
func Load(opts Options) (*Mapper, error) {
	url := opts.DatasetURL
	if opts.DatasetURLEnv != "" {
		if v := os.Getenv(opts.DatasetURLEnv); v != "" {
			url = v
		}
	}
	cachePath := opts.CachePath
	if opts.CachePathEnv != "" {
		if v := os.Getenv(opts.CachePathEnv); v != "" {
			cachePath = v
		}
	}

	periods := loadPeriods(url, cachePath)
	return New(periods, opts.TransitionMonths)
}

// New builds a mapper from an explicit period list. Periods must not
// overlap; they are sorted by start date.
func New(periods []Administration, transitionMonths int) (*Mapper, error) {
	if len(periods) == 0 {
		periods = fallbackPeriods
	}

	parsed := make([]Administration, len(periods))
	copy(parsed, periods)
	for i := range parsed {
		start, err := time.Parse("2006-01-02", parsed[i].Start)
		if err != nil {
			return nil, fmt.Errorf("administration %q: bad start date: %w", parsed[i].Name, err)
		}
		end, err := time.Parse("2006-01-02", parsed[i].End)
		if err != nil {
			return nil, fmt.Errorf("administration %q: bad end date: %w", parsed[i].Name, err)
		}
		parsed[i].start = start
		parsed[i].end = end
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].start.Before(parsed[j].start) })

	for i := 1; i < len(parsed); i++ {
		if parsed[i].start.Before(parsed[i-1].end) {
			return nil, fmt.Errorf("administrations %q and %q overlap", parsed[i-1].Name, parsed[i].Name)
		}
	}

	actors := make(map[string]string, len(staticActors))
	for name, party := range staticActors {
		actors[name] = party
	}
	for _, p := range parsed {
		for _, a := range p.Actors {
			actors[strings.ToLower(a)] = p.Party
		}
	}

	return &Mapper{periods: parsed, transitionMonths: transitionMonths, actors: actors}, nil
}

// Resolve returns the administration holding office on the given date.
// Ranges are half-open: an inauguration date belongs to the incoming
// administration. Dates outside the covered span fail with
// ErrDateOutOfRange.
func (m *Mapper) Resolve(date time.Time) (Resolution, error) {
	pad := time.Duration(m.transitionMonths) * 30 * 24 * time.Hour

	for _, p := range m.periods {
		start, end := p.start, p.end
		if pad > 0 {
			start = start.Add(-pad)
			end = end.Add(pad)
		}
		if !date.Before(start) && date.Before(end) {
			inCore := !date.Before(p.start) && date.Before(p.end)
			return Resolution{Name: p.Name, Party: p.Party, IsTransition: !inCore}, nil
		}
	}
	return Resolution{}, fmt.Errorf("%w: %s", ErrDateOutOfRange, date.Format("2006-01-02"))
}

// ResolveDate parses an ISO date string and resolves it.
func (m *Mapper) ResolveDate(value string) (Resolution, error) {
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return Resolution{}, fmt.Errorf("parsing date %q: %w", value, err)
	}
	return m.Resolve(date)
}

// Actors returns the partisan actor dictionary (lowercase name -> party).
// The returned map is shared; callers must not mutate it.
func (m *Mapper) Actors() map[string]string {
	return m.actors
}

// loadPeriods tries, in order: the disk cache, the remote dataset (writing
// the cache on success), and finally the built-in fallback.
func loadPeriods(url, cachePath string) []Administration {
	if cachePath != "" {
		if periods := readPeriodsFile(cachePath); periods != nil {
			return periods
		}
	}

	if url != "" {
		periods, raw, err := fetchPeriods(url)
		if err != nil {
			log.Printf("administration dataset fetch failed (%v); using fallback list", err)
			return nil
		}
		if cachePath != "" {
			if err := writePeriodsCache(cachePath, raw); err != nil {
				log.Printf("caching administration dataset: %v", err)
			}
		}
		return periods
	}

	return nil
}

func readPeriodsFile(path string) []Administration {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var periods []Administration
	if err := json.Unmarshal(data, &periods); err != nil {
		log.Printf("ignoring corrupt administration cache %s: %v", path, err)
		return nil
	}
	return periods
}

func fetchPeriods(url string) ([]Administration, []byte, error) {
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("dataset endpoint returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	var periods []Administration
	if err := json.Unmarshal(raw, &periods); err != nil {
		return nil, nil, fmt.Errorf("parsing dataset: %w", err)
	}
	return periods, raw, nil
}

func writePeriodsCache(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
