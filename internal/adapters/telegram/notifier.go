// Package telegram delivers operator alerts to a Telegram chat.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mt5Assistant/internal/ports"
)

// Config holds the bot credentials and target chat.
type Config struct {
	Token  string
	ChatID int64
	// APIEndpoint overrides tgbotapi.APIEndpoint, e.g. for a local bot API server.
	APIEndpoint string
	Logger      ports.Logger
}

// Notifier sends plain-text messages through a bot.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger ports.Logger
}

// New authenticates the bot (getMe) and returns a notifier bound to the chat.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram notifier")
	}
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("%w: telegram token and chat id are required", ports.ErrConfiguration)
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w: %w", ports.ErrAuthenticationFailed, err)
	}
	bot.Debug = false
	cfg.Logger.Info(context.Background(), "Telegram notifier ready", map[string]interface{}{"bot": bot.Self.UserName, "chatID": cfg.ChatID})
	return &Notifier{bot: bot, chatID: cfg.ChatID, logger: cfg.Logger}, nil
}

// Notify sends text to the configured chat.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error(ctx, err, "Telegram notification failed", map[string]interface{}{"chatID": n.chatID})
		return fmt.Errorf("telegram send: %w: %w", ports.ErrExternalAPIFailure, err)
	}
	return nil
}

// Nop discards notifications. It stands in when no bot token is configured.
type Nop struct{}

func (Nop) Notify(ctx context.Context, text string) error { return nil }

var (
	_ ports.Notifier = (*Notifier)(nil)
	_ ports.Notifier = Nop{}
)
