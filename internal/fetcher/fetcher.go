// Package fetcher handles RSS feed downloading and parsing.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"rss_queue/internal/model"
)

// ErrNoEntries is returned when a feed parses but lists nothing.
var ErrNoEntries = errors.New("feed has no entries")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses RSS feeds.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: 30 * time.Second,
	}
}

// SetTimeout overrides the default 30-second bound on a single fetch.
func (f *Fetcher) SetTimeout(d time.Duration) {
	f.timeout = d
}

// Fetch downloads and parses the feed at uri and returns its entries in
// feed order.
func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]model.FeedEntry, error) {
	feed, err := f.FetchFeed(ctx, uri)
	if err != nil {
		return nil, err
	}
	if len(feed.Items) == 0 {
		return nil, ErrNoEntries
	}
	return Entries(feed.Items), nil
}

// FetchFeed downloads and parses the feed at uri.
func (f *Fetcher) FetchFeed(ctx context.Context, uri string) (*gofeed.Feed, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "RSSQueue/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// Entries converts parsed items into feed entries.
func Entries(items []*gofeed.Item) []model.FeedEntry {
	out := make([]model.FeedEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, model.FeedEntry{
			Title: item.Title,
			Link:  item.Link,
			Links: item.Links,
		})
	}
	return out
}
