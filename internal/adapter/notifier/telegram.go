package notifier

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/stashd/internal/config"
)

type TelegramNotifier struct {
	bot           *tgbotapi.BotAPI
	chatID        int64
	appName       string
	onFailureOnly bool
}

func NewTelegram(cfg *config.NotifyConfig, appName string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegram(bot, cfg, appName)
}

// NewTelegramWithClient talks to endpoint through client instead of the
// public Bot API.
func NewTelegramWithClient(cfg *config.NotifyConfig, appName, endpoint string, client tgbotapi.HTTPClient) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegram(bot, cfg, appName)
}

func newTelegram(bot *tgbotapi.BotAPI, cfg *config.NotifyConfig, appName string) (*TelegramNotifier, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	return &TelegramNotifier{
		bot:           bot,
		chatID:        chatID,
		appName:       appName,
		onFailureOnly: cfg.OnFailureOnly,
	}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, success bool, message string) error {
	if success && t.onFailureOnly {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, t.format(success, message))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}

	return nil
}

func (t *TelegramNotifier) format(success bool, message string) string {
	if success {
		return fmt.Sprintf("✅ %s backup completed\n\n%s", t.appName, message)
	}
	return fmt.Sprintf("❌ %s backup failed\n\n%s", t.appName, message)
}
