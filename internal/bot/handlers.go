package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rss_queue/internal/fetcher"
	"rss_queue/internal/filter"
	"rss_queue/internal/model"
	"rss_queue/internal/rssqueue"
	"rss_queue/internal/storage"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to RSS Queue!

Feeds are scanned periodically and matching entries are sent to the downloader.

Quick start:
1. /addfeed <name> <url> - add an RSS feed
2. /accept <name> <pattern> - download matching titles
3. /test <name> - preview what would be downloaded

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Feed management:
/feeds - show all feeds
/addfeed <name> <url> [-c cat] [-p pp] [-s script] - add a feed
/rmfeed <name> - delete a feed and its history
/enable <name> - include a feed in scheduled runs
/disable <name> - exclude a feed from scheduled runs

Filter rules (first match wins, * matches anything):
/filters <name> - show the rules of a feed
/accept <name> [-c cat] [-p pp] [-s script] <pattern> - add an accept rule
/reject <name> <pattern> - add a reject rule
/rmfilter <filter_id> - remove a rule

Queue:
/result <name> - show recorded jobs
/test <name> - scan without downloading
/run <name> - scan and download now
/runall - scan all enabled feeds
/stop - interrupt the current scan
/flag <name> <id> - mark a job as downloaded
/save - persist the job table`)
}

func (b *Bot) handleFeeds(ctx context.Context, chatID int64) {
	feeds, err := b.store.ListFeeds(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	counts := make(map[string][2]int)
	for _, f := range feeds {
		rules, err := b.store.ListFilters(ctx, f.Name)
		if err != nil {
			continue
		}
		var acc, rej int
		for _, r := range rules {
			switch r.Type {
			case model.RuleAccept:
				acc++
			case model.RuleReject:
				rej++
			}
		}
		counts[f.Name] = [2]int{acc, rej}
	}

	msg := tgbotapi.NewMessage(chatID, FormatFeedList(feeds, counts))
	msg.DisableWebPagePreview = true
	if len(feeds) > 0 {
		msg.ReplyMarkup = feedKeyboard(feeds)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send feed list", "error", err)
	}
}

func (b *Bot) handleAddFeed(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseFeedArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	if _, err := b.store.GetFeed(ctx, parsed.Name); err == nil {
		b.reply(chatID, fmt.Sprintf("Feed \"%s\" already exists.", parsed.Name))
		return
	}

	if _, err := b.fetcher.Fetch(ctx, parsed.URI); err != nil && !errors.Is(err, fetcher.ErrNoEntries) {
		b.reply(chatID, fmt.Sprintf("Failed to fetch feed: %v", err))
		return
	}

	f := &model.Feed{
		Name:                  parsed.Name,
		URI:                   parsed.URI,
		DefaultCategory:       parsed.Category,
		DefaultPostProcessing: parsed.PostProcessing,
		DefaultScript:         parsed.Script,
		Enabled:               true,
	}
	if err := b.store.CreateFeed(ctx, f); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save feed: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Feed \"%s\" added.\nURL: %s\nDefaults: %s\nNo rules yet, nothing will be downloaded. Use /accept to add one.",
		f.Name, f.URI, paramsLabel(f.DefaultCategory, f.DefaultPostProcessing, f.DefaultScript)))
}

func (b *Bot) handleRmFeed(ctx context.Context, chatID int64, args string) {
	name, err := ParseNameArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmfeed <name>")
		return
	}

	if err := b.store.DeleteFeed(ctx, name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.reply(chatID, fmt.Sprintf("Feed \"%s\" not found.", name))
			return
		}
		b.reply(chatID, fmt.Sprintf("Error deleting feed: %v", err))
		return
	}
	b.queue.Delete(name)
	b.reply(chatID, fmt.Sprintf("Feed \"%s\" deleted.", name))
}

func (b *Bot) handleSetEnabled(ctx context.Context, chatID int64, args string, enabled bool) {
	name, err := ParseNameArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /enable <name> or /disable <name>")
		return
	}

	feed, err := b.store.GetFeed(ctx, name)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Feed \"%s\" not found.", name))
		return
	}

	feed.Enabled = enabled
	if err := b.store.UpdateFeed(ctx, feed); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Feed \"%s\" %s.", name, enabledLabel(enabled)))
}

func (b *Bot) handleFilters(ctx context.Context, chatID int64, args string) {
	name, err := ParseNameArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /filters <name>")
		return
	}

	feed, err := b.store.GetFeed(ctx, name)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Feed \"%s\" not found.", name))
		return
	}

	rules, err := b.store.ListFilters(ctx, feed.Name)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatFilterList(feed, rules))
}

func (b *Bot) handleAddRule(ctx context.Context, chatID int64, args string, t model.RuleType) {
	parsed, err := ParseRuleArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	feed, err := b.store.GetFeed(ctx, parsed.FeedName)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Feed \"%s\" not found.", parsed.FeedName))
		return
	}

	if err := filter.ValidatePattern(parsed.Pattern); err != nil {
		b.reply(chatID, fmt.Sprintf("Invalid pattern: %v", err))
		return
	}

	rule := parsed.NewRule(t)
	if err := b.store.CreateFilter(ctx, &rule); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Filter F%d added to \"%s\": %s %s", rule.ID, feed.Name, t, rule.Pattern))
}

func (b *Bot) handleRmFilter(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmfilter <filter_id>")
		return
	}

	rule, err := b.store.GetFilter(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Filter F%d not found.", id))
		return
	}

	if err := b.store.DeleteFilter(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Filter F%d removed from \"%s\".", id, rule.FeedName))
}

func (b *Bot) handleResult(chatID int64, args string) {
	name, err := ParseNameArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /result <name>")
		return
	}
	b.reply(chatID, FormatResult(name, b.queue.ShowResult(name)))
}

func (b *Bot) handleScan(ctx context.Context, chatID int64, args string, download bool) {
	name, err := ParseNameArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /test <name> or /run <name>")
		return
	}

	res, err := b.queue.RunFeed(ctx, name, download)
	if err != nil {
		switch {
		case errors.Is(err, rssqueue.ErrFeedConfig):
			b.reply(chatID, fmt.Sprintf("Feed \"%s\" not found or misconfigured.", name))
		case errors.Is(err, rssqueue.ErrFetch):
			b.reply(chatID, fmt.Sprintf("Failed to fetch \"%s\": %v", name, err))
		case errors.Is(err, rssqueue.ErrCancelled):
			b.reply(chatID, fmt.Sprintf("Scan of \"%s\" was cancelled.", name))
		default:
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
		}
		return
	}

	if download {
		if err := b.queue.Save(ctx); err != nil {
			b.log.Error("save job table", "error", err)
		}
	}
	b.reply(chatID, FormatScanResult(name, res, download))
}

func (b *Bot) handleRunAll(ctx context.Context, chatID int64) {
	if b.queue.IsRunning() {
		b.reply(chatID, "A run is already in progress.")
		return
	}

	b.reply(chatID, "Run started.")
	go func() {
		err := b.queue.Run(ctx)
		switch {
		case err == nil:
			b.reply(chatID, "Run finished.")
		case errors.Is(err, rssqueue.ErrRunning):
			b.reply(chatID, "A run is already in progress.")
		case errors.Is(err, rssqueue.ErrCancelled):
			b.reply(chatID, "Run cancelled.")
		default:
			b.reply(chatID, fmt.Sprintf("Run failed: %v", err))
		}
	}()
}

func (b *Bot) handleFlag(chatID int64, args string) {
	name, id, err := ParseFlagArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	n := b.queue.FlagDownloaded(name, id)
	if n == 0 {
		b.reply(chatID, fmt.Sprintf("No job with id %s in \"%s\".", id, name))
		return
	}
	b.reply(chatID, fmt.Sprintf("Flagged %d job(s) in \"%s\" as downloaded.", n, name))
}

func (b *Bot) handleSave(ctx context.Context, chatID int64) {
	if err := b.queue.Save(ctx); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Job table saved.")
}
