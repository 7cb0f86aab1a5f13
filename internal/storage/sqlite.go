package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"rss_queue/internal/model"
	"rss_queue/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if _, err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateFeed inserts a new feed at the end of the configuration order and
// populates its Position and CreatedAt.
func (s *SQLite) CreateFeed(ctx context.Context, feed *model.Feed) error {
	now := time.Now().UTC().Format(timeLayout)

	var next int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM feeds`,
	).Scan(&next); err != nil {
		return fmt.Errorf("next feed position: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feeds (name, uri, default_category, default_postprocessing, default_script, enabled, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		feed.Name, feed.URI, feed.DefaultCategory, feed.DefaultPostProcessing, feed.DefaultScript,
		boolToInt(feed.Enabled), next, now,
	)
	if err != nil {
		return fmt.Errorf("insert feed: %w", err)
	}
	feed.Position = next
	feed.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetFeed returns a single feed by its name.
func (s *SQLite) GetFeed(ctx context.Context, name string) (*model.Feed, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, uri, default_category, default_postprocessing, default_script, enabled, position, created_at
		 FROM feeds WHERE name = ?`, name,
	)
	return scanFeed(row)
}

// ListFeeds returns all feeds in configuration order.
func (s *SQLite) ListFeeds(ctx context.Context) ([]model.Feed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, uri, default_category, default_postprocessing, default_script, enabled, position, created_at
		 FROM feeds ORDER BY position, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("query feeds: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFeeds(rows)
}

// UpdateFeed persists changes to an existing feed.
func (s *SQLite) UpdateFeed(ctx context.Context, feed *model.Feed) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feeds SET uri = ?, default_category = ?, default_postprocessing = ?, default_script = ?, enabled = ?
		 WHERE name = ?`,
		feed.URI, feed.DefaultCategory, feed.DefaultPostProcessing, feed.DefaultScript,
		boolToInt(feed.Enabled), feed.Name,
	)
	if err != nil {
		return fmt.Errorf("update feed: %w", err)
	}
	return expectAffected(res, "feed "+feed.Name)
}

// DeleteFeed removes a feed and its filter rules. It returns ErrNotFound
// when no such feed exists.
func (s *SQLite) DeleteFeed(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM filters WHERE feed_name = ?`, name); err != nil {
		return fmt.Errorf("delete filters: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	if err := expectAffected(res, "feed "+name); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateFilter appends a rule to its feed's rule list and populates its
// ID, Position and CreatedAt.
func (s *SQLite) CreateFilter(ctx context.Context, f *model.FilterRule) error {
	now := time.Now().UTC().Format(timeLayout)

	var next int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM filters WHERE feed_name = ?`, f.FeedName,
	).Scan(&next); err != nil {
		return fmt.Errorf("next filter position: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO filters (feed_name, category, postprocessing, script, rule_type, pattern, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FeedName, f.Category, f.PostProcessing, f.Script, string(f.Type), f.Pattern, next, now,
	)
	if err != nil {
		return fmt.Errorf("insert filter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	f.Position = next
	f.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListFilters returns the rules of the given feed in evaluation order.
func (s *SQLite) ListFilters(ctx context.Context, feedName string) ([]model.FilterRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, feed_name, category, postprocessing, script, rule_type, pattern, position, created_at
		 FROM filters WHERE feed_name = ? ORDER BY position, id`, feedName,
	)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var filters []model.FilterRule
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// GetFilter returns a single filter rule by its ID.
func (s *SQLite) GetFilter(ctx context.Context, id int64) (*model.FilterRule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, feed_name, category, postprocessing, script, rule_type, pattern, position, created_at
		 FROM filters WHERE id = ?`, id,
	)
	f, err := scanFilter(row)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// DeleteFilter removes a filter rule by its ID.
func (s *SQLite) DeleteFilter(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM filters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete filter: %w", err)
	}
	return nil
}

// LoadBlob returns the data stored under key.
func (s *SQLite) LoadBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load blob: %w", err)
	}
	return data, nil
}

// SaveBlob stores data under key, replacing any previous value.
func (s *SQLite) SaveBlob(ctx context.Context, key string, data []byte) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, now,
	)
	if err != nil {
		return fmt.Errorf("save blob: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFeed(row scannable) (*model.Feed, error) {
	var f model.Feed
	var enabled int
	var created sql.NullString
	err := row.Scan(&f.Name, &f.URI, &f.DefaultCategory, &f.DefaultPostProcessing, &f.DefaultScript,
		&enabled, &f.Position, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feed: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan feed: %w", err)
	}
	f.Enabled = enabled == 1
	if created.Valid {
		f.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &f, nil
}

func scanFeeds(rows *sql.Rows) ([]model.Feed, error) {
	var feeds []model.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}

func scanFilter(row scannable) (model.FilterRule, error) {
	var f model.FilterRule
	var typeStr, createdStr string
	err := row.Scan(&f.ID, &f.FeedName, &f.Category, &f.PostProcessing, &f.Script,
		&typeStr, &f.Pattern, &f.Position, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return f, fmt.Errorf("filter: %w", ErrNotFound)
	}
	if err != nil {
		return f, fmt.Errorf("scan filter: %w", err)
	}
	f.Type = model.RuleType(typeStr)
	f.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return f, nil
}
