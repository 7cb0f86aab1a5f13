package rssqueue

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"rss_queue/internal/downloader"
	"rss_queue/internal/model"
)

// ErrNoLink is returned for feed entries without a usable HTTP link.
var ErrNoLink = errors.New("no usable link")

var reMessageID = regexp.MustCompile(`(?i)(newz)(bin|xxx)\.com/browse/post/(\d+)`)

// MessageID extracts the numeric post id from an aggregator post URL.
func MessageID(link string) (string, bool) {
	m := reMessageID.FindStringSubmatch(link)
	if m == nil || !strings.EqualFold(m[1], "newz") || m[2] == "" || m[3] == "" {
		return "", false
	}
	return m[3], true
}

func isAggregator(uri string) bool {
	uri = strings.ToLower(uri)
	return strings.Contains(uri, "newzbin") || strings.Contains(uri, "newzxxx")
}

// ResolveLink picks the link of entry that identifies the post.
//
// Aggregator feeds list both the external URL and the message-id bearing
// post URL; the primary link is used only when it is a post URL, otherwise
// the first alternate link. Other feeds use the primary link, falling back
// to the first alternate.
func ResolveLink(uri string, entry model.FeedEntry) (string, error) {
	link := entry.Link
	if isAggregator(uri) {
		if !strings.Contains(strings.ToLower(link), "/post/") {
			link = firstAlternate(entry)
		}
	} else if link == "" {
		link = firstAlternate(entry)
	}

	if !strings.Contains(strings.ToLower(link), "http") {
		return "", fmt.Errorf("%w: %q", ErrNoLink, link)
	}
	return link, nil
}

func firstAlternate(entry model.FeedEntry) string {
	if len(entry.Links) == 0 {
		return ""
	}
	return entry.Links[0]
}

// handleLink records link in jobs and, when submit is set, queues it for
// download. Submitted entries keep only their title. It reports whether the
// link was queued; a failed submission is stored with status so a later scan
// retries it.
func (q *Queue) handleLink(ctx context.Context, jobs map[string]model.JobEntry, link, title string,
	status model.JobStatus, cat, pp, script string, submit bool) bool {
	id := link
	msgID, isMsgID := MessageID(link)
	if isMsgID {
		id = msgID
	}

	if submit {
		opts := downloader.Options{Category: cat, PostProcessing: pp, Script: script}
		var err error
		if isMsgID {
			q.log.Info("adding to queue", "id", msgID, "title", title, "category", cat)
			err = q.dl.SubmitByID(ctx, msgID, opts)
		} else {
			q.log.Info("adding to queue", "link", link, "title", title, "category", cat)
			err = q.dl.SubmitByURL(ctx, link, opts)
		}
		if err == nil {
			jobs[link] = model.JobEntry{Status: model.StatusDownloaded, Title: title}
			return true
		}
		q.log.Error("submit to download queue", "link", link, "title", title, "error", err)
	}

	jobs[link] = model.JobEntry{
		Status:         status,
		Title:          title,
		ExternalID:     id,
		Category:       cat,
		PostProcessing: pp,
		Script:         script,
	}
	return false
}
