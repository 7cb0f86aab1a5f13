// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"rss_queue/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateFeed(ctx context.Context, feed *model.Feed) error
	GetFeed(ctx context.Context, name string) (*model.Feed, error)
	ListFeeds(ctx context.Context) ([]model.Feed, error)
	UpdateFeed(ctx context.Context, feed *model.Feed) error
	DeleteFeed(ctx context.Context, name string) error

	CreateFilter(ctx context.Context, f *model.FilterRule) error
	ListFilters(ctx context.Context, feedName string) ([]model.FilterRule, error)
	GetFilter(ctx context.Context, id int64) (*model.FilterRule, error)
	DeleteFilter(ctx context.Context, id int64) error

	LoadBlob(ctx context.Context, key string) ([]byte, error)
	SaveBlob(ctx context.Context, key string, data []byte) error

	Close() error
}
