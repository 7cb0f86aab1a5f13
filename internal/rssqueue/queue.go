// Package rssqueue polls configured feeds, filters their entries and hands
// accepted ones to the download queue, remembering what each feed listed.
package rssqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"rss_queue/internal/downloader"
	"rss_queue/internal/filter"
	"rss_queue/internal/model"
	"rss_queue/internal/storage"
)

// StateKey is the blob key the job table is stored under.
const StateKey = "rss_data"

// Errors returned by RunFeed and Run.
var (
	ErrFeedConfig = errors.New("incorrect feed configuration")
	ErrFetch      = errors.New("failed to retrieve feed")
	ErrCancelled  = errors.New("scan cancelled")
	ErrRunning    = errors.New("run already in progress")
)

// FeedSource fetches the entries of a feed.
type FeedSource interface {
	Fetch(ctx context.Context, uri string) ([]model.FeedEntry, error)
}

// Downloader accepts jobs for download.
type Downloader interface {
	SubmitByID(ctx context.Context, id string, opts downloader.Options) error
	SubmitByURL(ctx context.Context, link string, opts downloader.Options) error
}

// BlobStore persists the job table.
type BlobStore interface {
	LoadBlob(ctx context.Context, key string) ([]byte, error)
	SaveBlob(ctx context.Context, key string, data []byte) error
}

// ConfigSource provides feed configuration and filter rules.
type ConfigSource interface {
	GetFeed(ctx context.Context, name string) (*model.Feed, error)
	ListFeeds(ctx context.Context) ([]model.Feed, error)
	ListFilters(ctx context.Context, feedName string) ([]model.FilterRule, error)
}

// ScanResult summarises one feed scan.
type ScanResult struct {
	FirstScan bool
	Accepted  int
	Rejected  int
	Submitted int
	Skipped   int
	Pruned    int
}

// Queue owns the job table of all feeds. Every access to the table holds mu,
// including a feed scan for its whole duration.
type Queue struct {
	mu   sync.Mutex
	jobs model.JobTable

	cfg    ConfigSource
	source FeedSource
	dl     Downloader
	blobs  BlobStore
	log    *slog.Logger

	feedDelay time.Duration
	sleepStep time.Duration

	shutdown atomic.Bool
	running  atomic.Bool
}

// New creates a Queue and loads the saved job table. A missing or
// unreadable table starts empty.
func New(ctx context.Context, cfg ConfigSource, source FeedSource, dl Downloader, blobs BlobStore, log *slog.Logger) *Queue {
	q := &Queue{
		cfg:       cfg,
		source:    source,
		dl:        dl,
		blobs:     blobs,
		log:       log,
		feedDelay: 120 * time.Second,
		sleepStep: time.Second,
	}
	q.jobs = q.load(ctx)
	return q
}

// SetFeedDelay overrides the default two-minute pause between feeds.
func (q *Queue) SetFeedDelay(d time.Duration) {
	q.feedDelay = d
}

func (q *Queue) load(ctx context.Context) model.JobTable {
	data, err := q.blobs.LoadBlob(ctx, StateKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			q.log.Warn("load job table, starting empty", "error", err)
		}
		return model.JobTable{}
	}

	var jobs model.JobTable
	if err := json.Unmarshal(data, &jobs); err != nil || jobs == nil {
		q.log.Warn("saved job table unusable, starting empty", "error", err)
		return model.JobTable{}
	}
	for name, links := range jobs {
		if links == nil {
			jobs[name] = map[string]model.JobEntry{}
		}
	}
	return jobs
}

// Stop asks a running scan or run to return at its next check.
func (q *Queue) Stop() {
	q.shutdown.Store(true)
}

func (q *Queue) cancelled(ctx context.Context) bool {
	return q.shutdown.Load() || ctx.Err() != nil
}

// RunFeed scans one feed. Accepted entries are submitted only when download
// is set and the feed has been scanned before.
func (q *Queue) RunFeed(ctx context.Context, name string, download bool) (ScanResult, error) {
	q.shutdown.Store(false)
	return q.runFeed(ctx, name, download)
}

func (q *Queue) runFeed(ctx context.Context, name string, download bool) (ScanResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var res ScanResult

	feed, err := q.cfg.GetFeed(ctx, name)
	if err != nil {
		return res, fmt.Errorf("%w %q: %w", ErrFeedConfig, name, err)
	}
	if feed.URI == "" {
		return res, fmt.Errorf("%w %q: no uri", ErrFeedConfig, name)
	}
	rules, err := q.cfg.ListFilters(ctx, name)
	if err != nil {
		return res, fmt.Errorf("%w %q: %w", ErrFeedConfig, name, err)
	}
	log := q.log.With("feed", name)
	compiled := filter.CompileRules(rules, log)

	// Nothing is submitted on the very first scan of a feed.
	jobs, known := q.jobs[name]
	if !known {
		jobs = map[string]model.JobEntry{}
		q.jobs[name] = jobs
	}
	res.FirstScan = !known
	submit := download && known

	log.Debug("fetching feed", "uri", feed.URI)
	entries, err := q.source.Fetch(ctx, feed.URI)
	if err == nil && len(entries) == 0 {
		err = errors.New("no entries")
	}
	if err != nil {
		return res, fmt.Errorf("%w %s: %w", ErrFetch, feed.URI, err)
	}

	present := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if q.cancelled(ctx) {
			return res, ErrCancelled
		}

		link, err := ResolveLink(feed.URI, entry)
		if err != nil {
			log.Warn("empty RSS entry found", "title", entry.Title, "error", err)
			res.Skipped++
			continue
		}
		present[link] = struct{}{}

		if hasDownloadedTitle(jobs, entry.Title) {
			res.Skipped++
			continue
		}
		if job, ok := jobs[link]; ok && job.Status == model.StatusDownloaded {
			continue
		}

		log.Debug("trying link", "link", link)
		d := filter.Evaluate(compiled, entry.Title, *feed)
		if d.Accepted {
			log.Debug("filter matched", "rule", d.Rule, "title", entry.Title)
			res.Accepted++
			if q.handleLink(ctx, jobs, link, entry.Title, model.StatusGoodMatch,
				d.Category, d.PostProcessing, d.Script, submit) {
				res.Submitted++
			}
			continue
		}
		if d.Rule >= 0 {
			log.Debug("filter rejected", "rule", d.Rule, "title", entry.Title)
		}
		res.Rejected++
		q.handleLink(ctx, jobs, link, entry.Title, model.StatusBadMatch,
			feed.DefaultCategory, feed.DefaultPostProcessing, feed.DefaultScript, false)
	}

	for link := range jobs {
		if _, ok := present[link]; !ok {
			log.Debug("purging link", "link", link)
			delete(jobs, link)
			res.Pruned++
		}
	}
	return res, nil
}

func hasDownloadedTitle(jobs map[string]model.JobEntry, title string) bool {
	for _, job := range jobs {
		if job.Status == model.StatusDownloaded && job.Title == title {
			return true
		}
	}
	return false
}

// Run scans every enabled feed in configuration order with submission
// enabled, pausing between feeds, and saves the job table after a complete
// pass. A call while another Run is in progress returns ErrRunning.
func (q *Queue) Run(ctx context.Context) error {
	if !q.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer q.running.Store(false)
	q.shutdown.Store(false)

	feeds, err := q.cfg.ListFeeds(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}

	for _, feed := range feeds {
		if !feed.Enabled {
			continue
		}

		res, err := q.runFeed(ctx, feed.Name, true)
		switch {
		case errors.Is(err, ErrCancelled):
			return err
		case errors.Is(err, ErrFetch):
			q.log.Warn("scan feed", "feed", feed.Name, "error", err)
		case err != nil:
			q.log.Error("scan feed", "feed", feed.Name, "error", err)
		case res.Submitted > 0:
			q.log.Info("queued downloads", "feed", feed.Name, "count", res.Submitted)
		}

		// Pause between feeds so sites are not hammered.
		if !q.throttle(ctx) {
			return ErrCancelled
		}
	}

	return q.Save(ctx)
}

// IsRunning reports whether Run is in progress.
func (q *Queue) IsRunning() bool {
	return q.running.Load()
}

func (q *Queue) throttle(ctx context.Context) bool {
	for waited := time.Duration(0); waited < q.feedDelay; waited += q.sleepStep {
		if q.cancelled(ctx) {
			return false
		}
		t := time.NewTimer(q.sleepStep)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
	return !q.cancelled(ctx)
}

// Save persists the job table.
func (q *Queue) Save(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(q.jobs)
	if err != nil {
		return fmt.Errorf("encode job table: %w", err)
	}
	if err := q.blobs.SaveBlob(ctx, StateKey, data); err != nil {
		return fmt.Errorf("save job table: %w", err)
	}
	return nil
}

// ShowResult returns a copy of the job table of a feed, or an empty table
// when the feed has never been scanned.
func (q *Queue) ShowResult(name string) map[string]model.JobEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, ok := q.jobs[name]
	if !ok {
		return map[string]model.JobEntry{}
	}
	return maps.Clone(jobs)
}

// Delete forgets everything recorded for a feed.
func (q *Queue) Delete(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, name)
}

// FlagDownloaded marks the entries of a feed whose stored id equals id as
// downloaded and returns how many were changed.
func (q *Queue) FlagDownloaded(name, id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id == "" {
		return 0
	}
	n := 0
	for link, job := range q.jobs[name] {
		if job.ExternalID == id {
			job.Status = model.StatusDownloaded
			q.jobs[name][link] = job
			n++
		}
	}
	return n
}

// ListFeedURIs returns the URIs of all configured feeds in order.
func (q *Queue) ListFeedURIs(ctx context.Context) ([]string, error) {
	feeds, err := q.cfg.ListFeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	uris := make([]string, 0, len(feeds))
	for _, f := range feeds {
		uris = append(uris, f.URI)
	}
	return uris, nil
}
