// Package telegram sends plain-text pushes through the customer and delivery
// Telegram bots.
package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender delivers a text message to a Telegram chat.
type Sender interface {
	Send(chatID int64, text string) error
}

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot wraps one Telegram bot.
type Bot struct {
	api botAPI
}

// NewBot authorizes token with Telegram.
func NewBot(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	api.Debug = false
	zap.L().Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Bot{api: api}, nil
}

// Send posts text to chatID.
func (b *Bot) Send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// Nop drops every message. Used when a bot token is not configured.
type Nop struct{}

func (Nop) Send(int64, string) error { return nil }

// Format renders a notification as a Telegram message body.
func Format(title, body string) string {
	if body == "" {
		return title
	}
	return title + "\n\n" + body
}
