// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	DownloaderURL    string
	DownloaderAPIKey string

	RunInterval  time.Duration
	FeedDelay    time.Duration
	FetchTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	downloaderURL := os.Getenv("DOWNLOADER_URL")
	if downloaderURL == "" {
		return nil, fmt.Errorf("DOWNLOADER_URL is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/rssqueue.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	runInterval, err := durationEnv("RUN_INTERVAL_MINUTES", 15, time.Minute, 1)
	if err != nil {
		return nil, err
	}
	feedDelay, err := durationEnv("FEED_DELAY_SECONDS", 120, time.Second, 0)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := durationEnv("FETCH_TIMEOUT_SECONDS", 30, time.Second, 1)
	if err != nil {
		return nil, err
	}

	return &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabasePath:     dbPath,
		LogLevel:         logLevel,
		AllowedUsers:     allowedUsers,
		DownloaderURL:    downloaderURL,
		DownloaderAPIKey: os.Getenv("DOWNLOADER_API_KEY"),
		RunInterval:      runInterval,
		FeedDelay:        feedDelay,
		FetchTimeout:     fetchTimeout,
	}, nil
}

func durationEnv(key string, def int, unit time.Duration, minimum int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(def) * unit, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s %q: must be an integer >= %d", key, raw, minimum)
	}
	return time.Duration(n) * unit, nil
}

// BotEnabled reports whether the Telegram query surface is configured.
func (c *Config) BotEnabled() bool {
	return c.TelegramBotToken != ""
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
