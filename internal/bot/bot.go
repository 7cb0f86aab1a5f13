// Package bot is the Telegram front end for managing feeds and filter rules
// and for inspecting and driving the RSS queue.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rss_queue/internal/config"
	"rss_queue/internal/fetcher"
	"rss_queue/internal/model"
	"rss_queue/internal/rssqueue"
	"rss_queue/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram bot that handles user commands.
type Bot struct {
	api     telegramAPI
	store   storage.Storage
	queue   *rssqueue.Queue
	cfg     *config.Config
	fetcher *fetcher.Fetcher
	log     *slog.Logger
}

// New creates a Bot with the given Telegram token. The fetcher is used to
// check that a feed is reachable before it is added.
func New(token string, store storage.Storage, queue *rssqueue.Queue, f *fetcher.Fetcher, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:     api,
		store:   store,
		queue:   queue,
		cfg:     cfg,
		fetcher: f,
		log:     log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "feeds":
		b.handleFeeds(ctx, chatID)
	case "addfeed":
		b.handleAddFeed(ctx, chatID, args)
	case cmdRmFeed:
		b.handleRmFeed(ctx, chatID, args)
	case "enable":
		b.handleSetEnabled(ctx, chatID, args, true)
	case "disable":
		b.handleSetEnabled(ctx, chatID, args, false)
	case "filters":
		b.handleFilters(ctx, chatID, args)
	case "accept":
		b.handleAddRule(ctx, chatID, args, model.RuleAccept)
	case "reject":
		b.handleAddRule(ctx, chatID, args, model.RuleReject)
	case cmdRmFilter:
		b.handleRmFilter(ctx, chatID, args)
	case cmdResult:
		b.handleResult(chatID, args)
	case cmdTest:
		b.handleScan(ctx, chatID, args, false)
	case "run":
		b.handleScan(ctx, chatID, args, true)
	case "runall":
		b.handleRunAll(ctx, chatID)
	case "flag":
		b.handleFlag(chatID, args)
	case "save":
		b.handleSave(ctx, chatID)
	case "stop":
		b.queue.Stop()
		b.reply(chatID, "Stop requested, the current scan ends at the next entry.")
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
