package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"foialens/internal/config"
	"foialens/internal/ratelimit"
)

// FOIAGov lists annual report statistics from foia.gov, one JSON payload
// per configured year. The payloads carry no document text, so items are
// flagged metadata-only and the judge stage short-circuits them to a
// neutral label. The cursor is the index of the next year.
type FOIAGov struct {
	cfg     config.FOIAGovConfig
	client  *http.Client
	limiter *ratelimit.Limiter
}

func NewFOIAGov(cfg config.FOIAGovConfig, client *http.Client, lim *ratelimit.Limiter) *FOIAGov {
	return &FOIAGov{cfg: cfg, client: client, limiter: lim}
}

func (f *FOIAGov) Name() string { return "foia_gov_annual" }

func (f *FOIAGov) ListPage(ctx context.Context, cursor string) ([]Item, string, error) {
	idx := 0
	if cursor != "" {
		var err error
		idx, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("bad foia_gov_annual cursor %q: %w", cursor, err)
		}
	}
	if idx >= len(f.cfg.Years) {
		return nil, "", nil
	}
	year := f.cfg.Years[idx]

	url := fmt.Sprintf("%s?year=%d", f.cfg.BaseURL, year)
	body, err := get(ctx, f.client, f.limiter, url, nil)
	if err != nil {
		return nil, "", err
	}
	if !json.Valid(body) {
		return nil, "", fmt.Errorf("foia.gov year %d: response is not JSON", year)
	}

	item := Item{
		Source:       "foia_gov_annual",
		OriginID:     strconv.Itoa(year),
		URL:          url,
		Title:        fmt.Sprintf("FOIA.gov annual data %d", year),
		Agency:       "FOIA.gov",
		ContentType:  "json",
		Body:         body,
		MetadataOnly: true,
	}

	next := ""
	if idx+1 < len(f.cfg.Years) {
		next = strconv.Itoa(idx + 1)
	}
	return []Item{item}, next, nil
}
