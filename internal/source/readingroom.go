package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"foialens/internal/config"
	"foialens/internal/ratelimit"
)

// offsetStep is the listing stride for endpoints that paginate by record
// offset rather than page number.
const offsetStep = 20

// ReadingRooms walks agency reading-room listings and emits the PDF links
// found there. Endpoints paginate by page number, record offset, or expose
// a release feed. The cursor is "<endpoint index>:<page>".
type ReadingRooms struct {
	cfg       config.ReadingRoomConfig
	client    *http.Client
	limiter   *ratelimit.Limiter
	endpoints []config.ReadingRoomEndpoint
	cutoff    *time.Time
}

func NewReadingRooms(cfg config.ReadingRoomConfig, client *http.Client, lim *ratelimit.Limiter) (*ReadingRooms, error) {
	var enabled []config.ReadingRoomEndpoint
	for _, ep := range cfg.Endpoints {
		if ep.Enabled {
			enabled = append(enabled, ep)
		}
	}
	cutoff, err := parseCutoff("reading_rooms", cfg.CutoffDate)
	if err != nil {
		return nil, err
	}
	return &ReadingRooms{cfg: cfg, client: client, limiter: lim, endpoints: enabled, cutoff: cutoff}, nil
}

func (r *ReadingRooms) Name() string { return "reading_rooms" }

func (r *ReadingRooms) ListPage(ctx context.Context, cursor string) ([]Item, string, error) {
	epIdx, page, err := parseRoomCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if epIdx >= len(r.endpoints) {
		return nil, "", nil
	}
	ep := r.endpoints[epIdx]

	var items []Item
	lastPage := false
	switch ep.Pagination {
	case "rss":
		items, err = r.listFeed(ctx, ep)
		lastPage = true
	default:
		items, err = r.listHTMLPage(ctx, ep, page)
		maxPages := ep.MaxPages
		if maxPages < 1 {
			maxPages = 1
		}
		lastPage = page >= maxPages || len(items) == 0
	}
	if err != nil {
		return nil, "", err
	}

	next := fmt.Sprintf("%d:%d", epIdx, page+1)
	if lastPage {
		if epIdx+1 >= len(r.endpoints) {
			next = ""
		} else {
			next = fmt.Sprintf("%d:1", epIdx+1)
		}
	}
	return items, next, nil
}

// listHTMLPage scrapes one listing page for PDF anchors. Markup varies
// wildly across agencies, so the selection is deliberately loose.
func (r *ReadingRooms) listHTMLPage(ctx context.Context, ep config.ReadingRoomEndpoint, page int) ([]Item, error) {
	body, err := get(ctx, r.client, r.limiter, pageURL(ep, page), nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s listing: %w", ep.ID, err)
	}

	base, err := url.Parse(ep.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("bad base_url for %s: %w", ep.ID, err)
	}

	var items []Item
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()

		title := strings.TrimSpace(a.Text())
		if title == "" {
			title = "reading-room-doc"
		}
		items = append(items, Item{
			Source:      "reading_rooms",
			OriginID:    fmt.Sprintf("%s/%d/%s", ep.ID, page, stem(ref.Path)),
			URL:         abs,
			Title:       title,
			Agency:      ep.Name,
			ContentType: "pdf",
		})
	})
	return items, nil
}

// listFeed reads an agency release feed and keeps entries that link to a
// PDF, either directly or through an enclosure. Entries published after the
// cutoff are dropped; HTML listings carry no dates, so the cutoff only
// applies to the feed variant.
func (r *ReadingRooms) listFeed(ctx context.Context, ep config.ReadingRoomEndpoint) ([]Item, error) {
	body, err := get(ctx, r.client, r.limiter, ep.BaseURL, nil)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s feed: %w", ep.ID, err)
	}

	var items []Item
	for _, entry := range feed.Items {
		link := feedPDFLink(entry)
		if link == "" {
			continue
		}
		if afterCutoff(r.cutoff, entry.PublishedParsed) {
			continue
		}
		item := Item{
			Source:      "reading_rooms",
			OriginID:    fmt.Sprintf("%s/feed/%s", ep.ID, stem(link)),
			URL:         link,
			Title:       entry.Title,
			Agency:      ep.Name,
			ContentType: "pdf",
		}
		if entry.PublishedParsed != nil {
			item.DecisionDate = entry.PublishedParsed
		}
		items = append(items, item)
	}
	return items, nil
}

func feedPDFLink(entry *gofeed.Item) string {
	for _, enc := range entry.Enclosures {
		if strings.HasSuffix(strings.ToLower(enc.URL), ".pdf") {
			return enc.URL
		}
	}
	if strings.HasSuffix(strings.ToLower(entry.Link), ".pdf") {
		return entry.Link
	}
	return ""
}

func pageURL(ep config.ReadingRoomEndpoint, page int) string {
	param := ep.PageParam
	if param == "" {
		param = "page"
	}
	value := page
	if ep.Pagination == "offset" {
		value = (page - 1) * offsetStep
	}

	sep := "?"
	if strings.Contains(ep.BaseURL, "?") {
		sep = "&"
	}
	return ep.BaseURL + sep + param + "=" + strconv.Itoa(value)
}

func parseRoomCursor(cursor string) (epIdx, page int, err error) {
	if cursor == "" {
		return 0, 1, nil
	}
	parts := strings.SplitN(cursor, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad reading_rooms cursor %q", cursor)
	}
	epIdx, err = strconv.Atoi(parts[0])
	if err == nil {
		page, err = strconv.Atoi(parts[1])
	}
	if err != nil || page < 1 {
		return 0, 0, fmt.Errorf("bad reading_rooms cursor %q", cursor)
	}
	return epIdx, page, nil
}

func stem(p string) string {
	return strings.TrimSuffix(path.Base(p), path.Ext(p))
}
