package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/araddon/dateparse"

	"foialens/internal/config"
	"foialens/internal/ratelimit"
)

// MuckRock lists completed public-records requests from the MuckRock REST
// API. The API paginates with absolute `next` URLs, which double as resume
// cursors.
type MuckRock struct {
	cfg     config.MuckRockConfig
	client  *http.Client
	limiter *ratelimit.Limiter
	token   string
	cutoff  *time.Time
}

// NewMuckRock validates credentials and builds the lister. A missing API
// token is an AuthError: the caller skips this source and continues with
// the rest.
func NewMuckRock(cfg config.MuckRockConfig, client *http.Client, lim *ratelimit.Limiter) (*MuckRock, error) {
	token := os.Getenv(cfg.APITokenEnv)
	if token == "" {
		return nil, &AuthError{
			Source: "muckrock",
			Reason: fmt.Sprintf("missing API token: set the %s environment variable", cfg.APITokenEnv),
		}
	}

	cutoff, err := parseCutoff("muckrock", cfg.CutoffDate)
	if err != nil {
		return nil, err
	}
	return &MuckRock{cfg: cfg, client: client, limiter: lim, token: token, cutoff: cutoff}, nil
}

func (m *MuckRock) Name() string { return "muckrock" }

type muckRockPage struct {
	Next    string            `json:"next"`
	Results []muckRockRequest `json:"results"`
}

type muckRockRequest struct {
	ID         int64          `json:"id"`
	Title      string         `json:"title"`
	AgencyName string         `json:"agency_name"`
	DateDone   string         `json:"date_done"`
	Files      []muckRockFile `json:"files"`
}

type muckRockFile struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// ListPage fetches one API page. Each released file of a completed request
// becomes its own Item; requests with no files are skipped. Requests
// completed after the cutoff date are dropped.
func (m *MuckRock) ListPage(ctx context.Context, cursor string) ([]Item, string, error) {
	pageURL := cursor
	if pageURL == "" {
		pageURL = m.firstPageURL()
	}

	header := http.Header{"Authorization": {"Token " + m.token}}
	body, err := get(ctx, m.client, m.limiter, pageURL, header)
	if err != nil {
		return nil, "", err
	}

	var page muckRockPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("decoding muckrock page: %w", err)
	}

	var items []Item
	for _, req := range page.Results {
		if len(req.Files) == 0 {
			continue
		}

		var done *time.Time
		if req.DateDone != "" {
			if t, err := dateparse.ParseAny(req.DateDone); err == nil {
				done = &t
			}
		}
		if afterCutoff(m.cutoff, done) {
			continue
		}

		for _, f := range req.Files {
			if f.URL == "" {
				continue
			}
			items = append(items, Item{
				Source:       "muckrock",
				OriginID:     fmt.Sprintf("%d/%d", req.ID, f.ID),
				URL:          f.URL,
				Title:        req.Title,
				Agency:       req.AgencyName,
				DecisionDate: done,
				ContentType:  "pdf",
			})
		}
	}
	return items, page.Next, nil
}

func (m *MuckRock) firstPageURL() string {
	q := url.Values{
		"status":    {"done"},
		"has_files": {"true"},
		"page_size": {"100"},
	}
	return m.cfg.BaseURL + "/requests/?" + q.Encode()
}
