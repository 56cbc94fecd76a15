package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdStatus = "status"
	cmdScan   = "scan"
	cmdWhy    = "why"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, payload, ok := strings.Cut(data, ":")
	if !ok {
		return
	}

	b.log.Info("callback",
		"action", action,
		"payload", payload,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdWhy:
		if _, _, err := ParseItemRef(payload); err != nil {
			return
		}
		b.handleWhy(ctx, chatID, payload)
	case cmdStatus:
		b.handleStatus(ctx, chatID)
	case cmdScan:
		go b.handleScan(ctx, chatID)
	}
}
