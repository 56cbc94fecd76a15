package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"content_scout/internal/scan"
	"content_scout/internal/storage"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Content Scout!

The scout searches code hosts, video and short-form platforms for technical
content, scores every candidate and keeps the best.

Quick start:
1. /status: quota and pipeline state
2. /top: best items found so far
3. /scan: run a scan now

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/status: pipeline state, remaining quota, last scan
/scan: start a scan now
/top [count] [tier]: best stored items (default 5, basic and up)
/why <platform> <id>: how an item was scored

Tiers: spam, low_quality, basic, intermediate, advanced, innovative
Platforms: codehost, video, shortform`)
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	quotas := make([]PlatformQuota, 0, len(b.platforms))
	for _, p := range b.platforms {
		quotas = append(quotas, PlatformQuota{Platform: p, Status: b.quota.Status(p)})
	}

	last, err := b.store.LastScan(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		b.log.Error("load last scan", "error", err)
	}

	msg := tgbotapi.NewMessage(chatID, FormatStatus(b.scanner.State(), quotas, last, b.now()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Refresh", cmdStatus+":"),
			tgbotapi.NewInlineKeyboardButtonData("Scan now", cmdScan+":"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send status", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleScan(ctx context.Context, chatID int64) {
	if state := b.scanner.State(); state != scan.StateIdle {
		b.reply(chatID, fmt.Sprintf("A scan is already running (%s).", state))
		return
	}
	b.reply(chatID, "Scan started.")

	report, err := b.scanner.RunScan(ctx)
	switch {
	case errors.Is(err, scan.ErrScanInProgress):
		b.reply(chatID, "A scan is already running.")
	case err != nil:
		b.log.Error("on-demand scan", "error", err)
		b.reply(chatID, fmt.Sprintf("Scan failed: %v", err))
	default:
		b.reply(chatID, FormatReport(report))
	}
}

func (b *Bot) handleTop(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseTopArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	items, err := b.store.ListTop(ctx, parsed.Limit, parsed.MinTier)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatTop(items, parsed.MinTier, b.now()))
	msg.DisableWebPagePreview = true
	if len(items) > 0 {
		var rows [][]tgbotapi.InlineKeyboardButton
		for i, it := range items {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Why #%d?", i+1), WhyData(it.Item.Platform, it.Item.PlatformID)),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send top", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleWhy(ctx context.Context, chatID int64, args string) {
	platform, id, err := ParseItemRef(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	item, err := b.store.GetItem(ctx, platform, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("Item %s:%s not found.", platform, id))
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatReasons(item))
}
