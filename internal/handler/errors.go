package handler

import (
	"errors"

	tele "gopkg.in/telebot.v3"

	"telegram-rewards-bot/internal/engine"
	"telegram-rewards-bot/internal/service"
)

// rejectionText maps an engine rejection to the message shown to the user.
func rejectionText(rej *engine.RejectionError) string {
	switch rej {
	case engine.ErrPremiumLimitReached:
		return "🚫 You already watched the premium ad today. Come back after the daily reset!"
	case engine.ErrAlreadyCompletedToday:
		return "🚫 You completed this task less than 24 hours ago. Try again later!"
	case engine.ErrAlreadyCompleted:
		return "🚫 You already claimed the reward for this platform."
	case engine.ErrInvalidTaskType:
		return "🚫 Unknown task."
	case engine.ErrInvalidCode:
		return "🚫 Invalid bonus code."
	case engine.ErrCodeAlreadyUsed:
		return "🚫 You already used this bonus code."
	case engine.ErrMinimumNotMet:
		return "🚫 Withdrawal minimum not met. Keep earning to reach the minimum!"
	case engine.ErrWalletNotSet:
		return "🚫 No wallet address on file. Set one with /wallet <address> first."
	default:
		return "🚫 " + rej.Reason
	}
}

// replyError translates service-layer failures into replies. It returns the
// reply error so handlers can end with "return replyError(c, err)".
func replyError(c tele.Context, err error) error {
	var rej *engine.RejectionError
	if errors.As(err, &rej) {
		return c.Reply(rejectionText(rej))
	}
	if errors.Is(err, service.ErrAccountNotFound) {
		return c.Reply("Please start the bot with /start first")
	}
	if errors.Is(err, service.ErrConflict) {
		return c.Reply("⏳ Things are busy right now, please try again.")
	}
	return c.Reply("❌ Something went wrong, please try again later.")
}
