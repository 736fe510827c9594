// Package source lists disclosure artifacts from the supported upstream
// providers. Listers describe artifacts; they do not download bodies, which
// is deferred to the cached fetch stage.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/araddon/dateparse"

	"foialens/internal/config"
	"foialens/internal/ratelimit"
)

// Item describes one raw artifact discovered upstream. Body is set only for
// sources whose text is produced at list time (agency log rows, annual
// statistics); otherwise URL points at the bytes to fetch.
type Item struct {
	Source       string
	OriginID     string
	URL          string
	Title        string
	Agency       string
	DecisionDate *time.Time
	ContentType  string // "pdf", "html", "text", "json"
	Body         []byte
	MetadataOnly bool
}

// Lister walks an upstream provider page by page. Cursors are opaque
// serializable strings; an empty cursor means the first page and an empty
// next cursor means the listing is exhausted. Cursors are checkpointed so
// interrupted runs resume where they stopped.
type Lister interface {
	Name() string
	ListPage(ctx context.Context, cursor string) (items []Item, next string, err error)
}

// AuthError reports a missing or rejected credential. It is fatal for the
// affected source but must not abort other sources in the same run.
type AuthError struct {
	Source string
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Reason)
}

// New builds the lister for a configured source name.
func New(name string, cfg *config.Config, client *http.Client, limiters *ratelimit.Registry) (Lister, error) {
	switch name {
	case "muckrock":
		return NewMuckRock(cfg.Sources.MuckRock, client, limiters.For(name))
	case "agency_logs":
		return NewAgencyLogs(cfg.Sources.AgencyLogs, client, limiters.For(name))
	case "reading_rooms":
		return NewReadingRooms(cfg.Sources.ReadingRooms, client, limiters.For(name))
	case "foia_gov_annual":
		return NewFOIAGov(cfg.Sources.FOIAGov, client, limiters.For(name)), nil
	}
	return nil, fmt.Errorf("unknown source %q", name)
}

// parseCutoff parses an optional configured cutoff date.
func parseCutoff(source, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return nil, fmt.Errorf("parsing %s cutoff_date %q: %w", source, value, err)
	}
	return &t, nil
}

// afterCutoff reports whether a dated item falls past the cutoff. Undated
// items are always kept.
func afterCutoff(cutoff, d *time.Time) bool {
	return cutoff != nil && d != nil && d.After(*cutoff)
}

// get performs a rate-limited GET and returns the response body. Non-2xx
// responses become errors carrying the status code.
func get(ctx context.Context, client *http.Client, lim *ratelimit.Limiter, url string, header http.Header) ([]byte, error) {
	if err := lim.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
