package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"content_scout/internal/model"
)

// Notifier is a scan sink that announces high-tier items in a Telegram chat.
type Notifier struct {
	api     telegramAPI
	chatID  int64
	minTier model.QualityTier
	now     func() time.Time
	log     *slog.Logger
}

// Name identifies the sink in logs and metrics.
func (n *Notifier) Name() string { return "telegram" }

// Accept sends a notification when the item reaches the notify tier.
// Items below it are accepted silently.
func (n *Notifier) Accept(_ context.Context, item model.ContentItem, analysis model.ContentAnalysis) error {
	if n.chatID == 0 || analysis.Quality.Rank() < n.minTier.Rank() {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatNotification(item, analysis, n.now()))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Why?", WhyData(item.Platform, item.PlatformID)),
		),
	)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("notify %s: %w", item.Key(), err)
	}
	n.log.Debug("notified", "item", item.Key(), "tier", analysis.Quality)
	return nil
}
