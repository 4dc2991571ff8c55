package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-rewards-bot/internal/service"
)

// BonusHandler handles bonus code redemption.
type BonusHandler struct {
	rewards *service.RewardsService
}

// NewBonusHandler creates a new BonusHandler.
func NewBonusHandler(rewards *service.RewardsService) *BonusHandler {
	return &BonusHandler{rewards: rewards}
}

// HandleRedeem redeems the bonus code given as the argument.
func (h *BonusHandler) HandleRedeem(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	code := strings.TrimSpace(c.Message().Payload)
	if code == "" {
		return c.Reply("Usage: /redeem <code>")
	}

	out, err := h.rewards.RedeemBonus(context.Background(), sender.ID, code)
	if err != nil {
		return replyError(c, err)
	}

	var sb strings.Builder
	sb.WriteString("🎉 Bonus code redeemed!\n")
	if out.Points > 0 {
		sb.WriteString(fmt.Sprintf("\n+%d points", out.Points))
	}
	if !out.Dollars.IsZero() {
		sb.WriteString(fmt.Sprintf("\n+$%s", out.Dollars.StringFixed(2)))
	}
	sb.WriteString(fmt.Sprintf("\n\n💰 Balance: %d points", out.Account.Points))
	return c.Reply(sb.String())
}
