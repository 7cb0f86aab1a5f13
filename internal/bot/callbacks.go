package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rss_queue/internal/model"
)

const (
	cmdFilters  = "filters"
	cmdResult   = "result"
	cmdTest     = "test"
	cmdRmFeed   = "rmfeed"
	cmdRmFilter = "rmfilter"
)

func feedKeyboard(feeds []model.Feed) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(feeds))
	for _, f := range feeds {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(f.Name+": rules", cmdFilters+":"+f.Name),
			tgbotapi.NewInlineKeyboardButtonData("jobs", cmdResult+":"+f.Name),
			tgbotapi.NewInlineKeyboardButtonData("test", cmdTest+":"+f.Name),
			tgbotapi.NewInlineKeyboardButtonData("delete", "delete_confirm:"+f.Name),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, arg, ok := strings.Cut(data, ":")
	if !ok || arg == "" {
		return
	}

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdFilters:
		b.handleFilters(ctx, chatID, arg)
	case cmdResult:
		b.handleResult(chatID, arg)
	case cmdTest:
		b.handleScan(ctx, chatID, arg, false)
	case "delete_confirm":
		feed, err := b.store.GetFeed(ctx, arg)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Feed \"%s\" not found.", arg))
			return
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Delete \"%s\" and its job history? This cannot be undone.", feed.Name))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Yes, delete", "delete:"+feed.Name),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", "noop:0"),
			),
		)
		if _, err := b.api.Send(msg); err != nil {
			b.log.Error("send delete confirmation", "error", err)
		}
	case "delete":
		b.handleRmFeed(ctx, chatID, arg)
	case cmdRmFilter:
		b.handleRmFilter(ctx, chatID, arg)
	}
}
