// Package model defines the domain types used across the application.
package model

import "time"

// Feed is the configuration of one RSS feed.
type Feed struct {
	Name                  string
	URI                   string
	DefaultCategory       string
	DefaultPostProcessing string
	DefaultScript         string
	Enabled               bool
	Position              int
	CreatedAt             time.Time
}

// RuleType decides what happens to an entry whose title matches a rule.
type RuleType string

// Supported rule types.
const (
	RuleAccept RuleType = "accept"
	RuleReject RuleType = "reject"
)

// FilterRule is one ordered accept/reject rule of a feed.
// Empty Category, PostProcessing and Script inherit the feed defaults.
type FilterRule struct {
	ID             int64
	FeedName       string
	Category       string
	PostProcessing string
	Script         string
	Type           RuleType
	Pattern        string
	Position       int
	CreatedAt      time.Time
}

// JobStatus is the classification of a feed entry.
type JobStatus string

// Job statuses, stored in their single-letter form.
const (
	StatusDownloaded JobStatus = "D"
	StatusGoodMatch  JobStatus = "G"
	StatusBadMatch   JobStatus = "B"
)

// JobEntry records what happened to one link of a feed.
type JobEntry struct {
	Status         JobStatus `json:"status"`
	Title          string    `json:"title"`
	ExternalID     string    `json:"id"`
	Category       string    `json:"cat"`
	PostProcessing string    `json:"pp"`
	Script         string    `json:"script"`
}

// JobTable maps feed name to link to job entry.
type JobTable map[string]map[string]JobEntry

// FeedEntry is a single item returned by a feed fetch.
type FeedEntry struct {
	Title string
	// Link is the primary link and may be empty.
	Link string
	// Links holds the alternate links in feed order.
	Links []string
}
