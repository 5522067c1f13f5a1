// Package feed retrieves a remote RSS or Atom feed and turns it into a
// snapshot of entries, newest first.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/Twomem/avacta-alert/internal/alert"
	alerterrs "github.com/Twomem/avacta-alert/internal/errors"
)

const (
	userAgent      = "avacta-alert/1.0 (+feed checker)"
	defaultTimeout = 30 * time.Second
	maxTitleLen    = 512
)

// Ensure Fetcher can be handed to the checker.
var _ alert.Source = (*Fetcher)(nil)

// Fetcher downloads and parses a single feed.
type Fetcher struct {
	url    string
	client *http.Client
	parser *gofeed.Parser

	// Sort by publication time when the feed is out of order.
	sortByPublished bool
}

type Option func(*Fetcher)

// WithClient replaces the default http client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the per-request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithSortByPublished turns the reordering of misordered feeds on or off.
func WithSortByPublished(on bool) Option {
	return func(f *Fetcher) { f.sortByPublished = on }
}

// NewFetcher creates a Fetcher for the given feed url.
func NewFetcher(url string, opts ...Option) *Fetcher {
	f := &Fetcher{
		url:             url,
		client:          &http.Client{Timeout: defaultTimeout},
		parser:          gofeed.NewParser(),
		sortByPublished: true,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch goes to the url and grabs the feed entries.
//
// Transport failures and non-2xx responses are KindFetch errors. Content
// that cannot be parsed is a KindParse error, returned together with the
// entries that could be recovered (none, with the current parser).
func (f *Fetcher) Fetch(ctx context.Context) (alert.Snapshot, error) {
	slog.InfoContext(ctx, "fetching feed", "url", f.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, alerterrs.E(alerterrs.KindFetch, fmt.Errorf("error building request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, alerterrs.E(alerterrs.KindFetch, fmt.Errorf("error getting feed url: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, alerterrs.E(alerterrs.KindFetch, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return alert.Snapshot{}, alerterrs.E(alerterrs.KindParse, fmt.Errorf("error decoding feed: %w", err))
	}

	snap := convert(parsed)
	if !newestFirst(snap) {
		slog.WarnContext(ctx, "feed is not ordered newest first", "sorting", f.sortByPublished)
		if f.sortByPublished {
			slices.SortStableFunc(snap, func(a, b alert.Entry) int {
				return b.Published.Compare(*a.Published)
			})
		}
	}

	return snap, nil
}

func convert(parsed *gofeed.Feed) alert.Snapshot {
	snap := make(alert.Snapshot, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			// Without a link the entry can never serve as a marker.
			continue
		}

		var published *time.Time
		switch {
		case item.PublishedParsed != nil:
			published = item.PublishedParsed
		case item.UpdatedParsed != nil:
			published = item.UpdatedParsed
		}

		snap = append(snap, alert.Entry{
			Title:     sanitize(item.Title),
			Link:      link,
			Published: published,
		})
	}

	return snap
}

// newestFirst reports whether snap is in descending publication order.
// Snapshots where any entry lacks a timestamp are taken as they come.
func newestFirst(snap alert.Snapshot) bool {
	for i := range snap {
		if snap[i].Published == nil {
			return true
		}
	}
	for i := 1; i < len(snap); i++ {
		if snap[i].Published.After(*snap[i-1].Published) {
			return false
		}
	}

	return true
}

var stripPolicy = bluemonday.StrictPolicy()

// Removes all html tags from the title and escapes what is left, so it can
// be dropped straight into an HTML formatted message.
//
// Also limits the length of the string so there's not a massive chunk of text being output.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = stripPolicy.Sanitize(s)
	if r := []rune(s); len(r) > maxTitleLen {
		s = string(r[:maxTitleLen])
	}

	return s
}
