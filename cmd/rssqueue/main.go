package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"rss_queue/internal/bot"
	"rss_queue/internal/config"
	"rss_queue/internal/downloader"
	"rss_queue/internal/fetcher"
	"rss_queue/internal/rssqueue"
	"rss_queue/internal/scheduler"
	"rss_queue/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	f := fetcher.New(http.DefaultClient)
	f.SetTimeout(cfg.FetchTimeout)
	dl := downloader.New(http.DefaultClient, cfg.DownloaderURL, cfg.DownloaderAPIKey)

	queue := rssqueue.New(ctx, store, f, dl, store, log)
	queue.SetFeedDelay(cfg.FeedDelay)

	sched := scheduler.New(queue, log)
	sched.SetTickInterval(cfg.RunInterval)

	uris, err := queue.ListFeedURIs(ctx)
	if err != nil {
		log.Error("list feeds", "error", err)
		os.Exit(1)
	}
	log.Info("starting rss queue", "feeds", len(uris), "interval", cfg.RunInterval, "bot", cfg.BotEnabled())

	if cfg.BotEnabled() {
		b, err := bot.New(cfg.TelegramBotToken, store, queue, f, cfg, log)
		if err != nil {
			log.Error("create bot", "error", err)
			os.Exit(1)
		}
		go b.Run(ctx)
	}

	sched.Run(ctx)

	queue.Stop()
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	if err := queue.Save(saveCtx); err != nil {
		log.Error("save job table", "error", err)
	}

	log.Info("rss queue stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
