// Package notify delivers out-of-band admin notifications.
// Delivery is best-effort: the accounting outcome never depends on it.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// AdminNotifier delivers a formatted message to the admin out-of-band.
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, text string) error
}

// TelegramNotifier sends admin notifications through the bot API.
type TelegramNotifier struct {
	bot         *tele.Bot
	adminChatID int64
}

// NewTelegramNotifier creates a notifier targeting the admin chat.
func NewTelegramNotifier(bot *tele.Bot, adminChatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, adminChatID: adminChatID}
}

// NotifyAdmin sends the text to the admin chat.
func (n *TelegramNotifier) NotifyAdmin(ctx context.Context, text string) error {
	_, err := n.bot.Send(&tele.Chat{ID: n.adminChatID}, text)
	return err
}

// UserNotifier delivers best-effort messages to end users (e.g. telling a
// referrer someone joined through their link).
type UserNotifier interface {
	NotifyUser(ctx context.Context, chatID int64, text string) error
}

// NotifyUser sends the text to the given chat.
func (n *TelegramNotifier) NotifyUser(ctx context.Context, chatID int64, text string) error {
	_, err := n.bot.Send(&tele.Chat{ID: chatID}, text)
	return err
}

// LogOnly is a no-delivery notifier used when no bot is configured.
type LogOnly struct{}

// NotifyAdmin logs the message instead of delivering it.
func (LogOnly) NotifyAdmin(ctx context.Context, text string) error {
	log.Info().Str("text", text).Msg("Admin notification (delivery disabled)")
	return nil
}

// NotifyUser logs the message instead of delivering it.
func (LogOnly) NotifyUser(ctx context.Context, chatID int64, text string) error {
	log.Info().Int64("chat_id", chatID).Str("text", text).Msg("User notification (delivery disabled)")
	return nil
}
