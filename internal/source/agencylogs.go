package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"foialens/internal/config"
	"foialens/internal/ratelimit"
)

// AgencyLogs lists rows of agency-published request logs. Each configured
// agency URL serves one CSV log; every row becomes its own Item whose body
// is the row rendered as "column: value" lines. The cursor is the index of
// the next enabled agency.
type AgencyLogs struct {
	cfg      config.AgencyLogsConfig
	client   *http.Client
	limiter  *ratelimit.Limiter
	agencies []config.AgencyEndpoint
	cutoff   *time.Time
}

func NewAgencyLogs(cfg config.AgencyLogsConfig, client *http.Client, lim *ratelimit.Limiter) (*AgencyLogs, error) {
	var enabled []config.AgencyEndpoint
	for _, a := range cfg.Agencies {
		if a.Enabled {
			enabled = append(enabled, a)
		}
	}
	cutoff, err := parseCutoff("agency_logs", cfg.CutoffDate)
	if err != nil {
		return nil, err
	}
	return &AgencyLogs{cfg: cfg, client: client, limiter: lim, agencies: enabled, cutoff: cutoff}, nil
}

func (a *AgencyLogs) Name() string { return "agency_logs" }

// ListPage downloads and expands one agency's log per call.
func (a *AgencyLogs) ListPage(ctx context.Context, cursor string) ([]Item, string, error) {
	idx := 0
	if cursor != "" {
		var err error
		idx, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("bad agency_logs cursor %q: %w", cursor, err)
		}
	}
	if idx >= len(a.agencies) {
		return nil, "", nil
	}
	agency := a.agencies[idx]

	body, err := get(ctx, a.client, a.limiter, agency.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("downloading log for %s: %w", agency.ID, err)
	}

	items, err := expandLog(agency, body, a.cutoff)
	if err != nil {
		return nil, "", fmt.Errorf("parsing log for %s: %w", agency.ID, err)
	}

	next := ""
	if idx+1 < len(a.agencies) {
		next = strconv.Itoa(idx + 1)
	}
	return items, next, nil
}

// expandLog turns a CSV log into per-row Items. The first record is taken
// as the header. Rows decided after the cutoff are dropped; row indices stay
// stable because origin ids are assigned before filtering.
func expandLog(agency config.AgencyEndpoint, data []byte, cutoff *time.Time) ([]Item, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}
	header := records[0]

	var items []Item
	for i, row := range records[1:] {
		text := renderRow(header, row)
		if text == "" {
			continue
		}
		date := inferRowDate(header, row)
		if afterCutoff(cutoff, date) {
			continue
		}
		items = append(items, Item{
			Source:       "agency_logs",
			OriginID:     fmt.Sprintf("%s/%d", agency.ID, i),
			Title:        inferRowTitle(header, row, agency.Name, i),
			Agency:       agency.Name,
			DecisionDate: date,
			ContentType:  "text",
			Body:         []byte(text),
		})
	}
	return items, nil
}

// renderRow flattens a heterogeneous log row into classifier-friendly
// "column: value" lines, dropping empty cells.
func renderRow(header, row []string) string {
	var parts []string
	for i, v := range row {
		v = strings.TrimSpace(v)
		if v == "" || i >= len(header) {
			continue
		}
		parts = append(parts, header[i]+": "+v)
	}
	return strings.Join(parts, "\n")
}

var dateColumnTokens = []string{"date", "closed", "completed", "response", "decision", "released"}

// inferRowDate finds the first date-ish column with a parseable value.
func inferRowDate(header, row []string) *time.Time {
	for i, col := range header {
		if i >= len(row) {
			break
		}
		lowered := strings.ToLower(col)
		if !containsAny(lowered, dateColumnTokens) {
			continue
		}
		t, err := dateparse.ParseAny(strings.TrimSpace(row[i]))
		if err != nil {
			continue
		}
		return &t
	}
	return nil
}

var titleColumnHints = []string{"subject", "summary", "title", "description", "records", "topic"}

func inferRowTitle(header, row []string, agencyName string, idx int) string {
	for i, col := range header {
		if i >= len(row) {
			break
		}
		if !containsAny(strings.ToLower(col), titleColumnHints) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			return v
		}
	}
	if agencyName != "" {
		return fmt.Sprintf("FOIA log %s (row %d)", agencyName, idx)
	}
	return fmt.Sprintf("Agency log row %d", idx)
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
