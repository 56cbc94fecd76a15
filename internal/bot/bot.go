package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"content_scout/internal/config"
	"content_scout/internal/model"
	"content_scout/internal/quota"
	"content_scout/internal/scan"
	"content_scout/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Scanner runs scans on demand and reports the current pipeline phase.
type Scanner interface {
	RunScan(ctx context.Context) (model.ScanReport, error)
	State() scan.State
}

// QuotaReporter reports remaining platform reads.
type QuotaReporter interface {
	Status(p model.Platform) quota.Status
}

// Bot is the Telegram bot that answers operator commands.
type Bot struct {
	api       telegramAPI
	store     storage.Storage
	cfg       *config.Config
	scanner   Scanner
	quota     QuotaReporter
	platforms []model.Platform
	now       func() time.Time
	log       *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, and config.
// Commands that run scans need SetScanner.
func New(token string, store storage.Storage, cfg *config.Config, q QuotaReporter, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:       api,
		store:     store,
		cfg:       cfg,
		quota:     q,
		platforms: configuredPlatforms(cfg),
		now:       time.Now,
		log:       log,
	}, nil
}

// SetScanner attaches the scan pipeline driven by /scan and /status.
func (b *Bot) SetScanner(s Scanner) {
	b.scanner = s
}

func configuredPlatforms(cfg *config.Config) []model.Platform {
	enabled := cfg.Platforms()
	var out []model.Platform
	for _, p := range model.Platforms {
		if _, ok := enabled[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Notifier returns a sink that pushes qualifying items to the configured chat.
func (b *Bot) Notifier() *Notifier {
	return &Notifier{
		api:     b.api,
		chatID:  b.cfg.TelegramChatID,
		minTier: b.cfg.NotifyMinTier,
		now:     b.now,
		log:     b.log,
	}
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
	case cmdStatus:
		b.handleStatus(ctx, chatID)
	case cmdScan:
		// Scans take minutes; keep polling meanwhile.
		go b.handleScan(ctx, chatID)
	case "top":
		b.handleTop(ctx, chatID, args)
	case cmdWhy:
		b.handleWhy(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
