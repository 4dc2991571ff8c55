package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-rewards-bot/internal/engine"
	"telegram-rewards-bot/internal/service"
)

// WithdrawHandler handles payout requests and admin contact.
type WithdrawHandler struct {
	rewards *service.RewardsService
}

// NewWithdrawHandler creates a new WithdrawHandler.
func NewWithdrawHandler(rewards *service.RewardsService) *WithdrawHandler {
	return &WithdrawHandler{rewards: rewards}
}

// HandleWithdraw submits a payout request for the full balance.
func (h *WithdrawHandler) HandleWithdraw(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := context.Background()

	out, err := h.rewards.RequestWithdrawal(ctx, sender.ID)
	if err != nil {
		var rej *engine.RejectionError
		if errors.As(err, &rej) && rej == engine.ErrMinimumNotMet {
			acc, gerr := h.rewards.GetAccount(ctx, sender.ID)
			if gerr != nil {
				return replyError(c, gerr)
			}
			return c.Reply(fmt.Sprintf(
				"🚫 Withdrawal Minimum Not Met\n\n"+
					"Your balance: $%s\n"+
					"Minimum withdrawal: $%s\n\n"+
					"Keep earning to reach the minimum!",
				h.rewards.WithdrawableBalance(acc).StringFixed(2),
				h.rewards.Engine().MinWithdrawal().StringFixed(2),
			))
		}
		return replyError(c, err)
	}

	return c.Reply(fmt.Sprintf(
		"✅ Withdrawal request submitted!\n\n"+
			"Amount: $%s\n"+
			"Wallet: %s\n\n"+
			"Admin will contact you soon to complete the process.",
		out.Amount.StringFixed(2), out.WalletAddress,
	))
}

// HandleContact relays a free-form message to the admin chat.
func (h *WithdrawHandler) HandleContact(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	message := strings.TrimSpace(c.Message().Payload)
	if message == "" {
		return c.Reply("Usage: /contact <your message>")
	}

	if err := h.rewards.ContactAdmin(context.Background(), sender.ID, message); err != nil {
		return replyError(c, err)
	}
	return c.Reply("📬 Message sent. The admin will get back to you.")
}
