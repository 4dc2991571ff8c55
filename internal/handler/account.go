// Package handler provides the Telegram command handlers. Handlers parse the
// incoming message, delegate to the rewards service and format the reply.
package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-rewards-bot/internal/engine"
	"telegram-rewards-bot/internal/model"
	"telegram-rewards-bot/internal/service"
)

// referralPayloadPrefix marks a /start deep-link payload carrying a code.
const referralPayloadPrefix = "ref-"

// AccountHandler handles account lifecycle and profile commands.
type AccountHandler struct {
	rewards     *service.RewardsService
	botUsername string
}

// NewAccountHandler creates a new AccountHandler. botUsername is used to
// build referral deep links.
func NewAccountHandler(rewards *service.RewardsService, botUsername string) *AccountHandler {
	return &AccountHandler{rewards: rewards, botUsername: botUsername}
}

func identityFrom(sender *tele.User) service.Identity {
	return service.Identity{
		Username:  sender.Username,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
	}
}

// HandleStart creates the account on first contact and attributes the
// referral when the deep-link payload carries a code.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	acc, created, err := h.rewards.EnsureAccount(ctx, sender.ID, identityFrom(sender))
	if err != nil {
		return replyError(c, err)
	}

	if created {
		payload := strings.TrimSpace(c.Message().Payload)
		if strings.HasPrefix(payload, referralPayloadPrefix) {
			code := strings.TrimPrefix(payload, referralPayloadPrefix)
			// An unknown or self-referencing code is ignored so the new
			// user still gets their welcome message.
			_ = h.rewards.ProcessReferral(ctx, sender.ID, code)
		}
	}

	balance := h.rewards.WithdrawableBalance(acc)
	return c.Reply(fmt.Sprintf(
		"👋 Welcome, %s!\n\n"+
			"💰 Your balance: %d points ($%s)\n"+
			"📊 Your tier: %s\n"+
			"👥 Referrals: %d\n\n"+
			"Use /earn to see how to earn points!",
		acc.DisplayName(), acc.Points, balance.StringFixed(2), acc.Tier, acc.ReferralCount,
	))
}

// HandleEarn lists the earning commands.
func (h *AccountHandler) HandleEarn(c tele.Context) error {
	return c.Reply(
		"💰 Earn Points\n\n" +
			"/ad - watch an ad\n" +
			"/premiumad - watch the premium ad (once a day)\n" +
			"/visit - visit the partner site (every 24h)\n" +
			"/video - watch the full video (every 24h)\n" +
			"/social <platform> - follow us on social media\n" +
			"/redeem <code> - redeem a bonus code\n" +
			"/ref - invite friends and earn per referral",
	)
}

// HandleBalance shows points, dollar balance and tier progress.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	acc, err := h.rewards.GetAccount(context.Background(), sender.ID)
	if err != nil {
		return replyError(c, err)
	}

	balance := h.rewards.WithdrawableBalance(acc)
	return c.Reply(fmt.Sprintf(
		"💰 Your Balance\n\n"+
			"Points: %d\n"+
			"Social rewards: $%s\n"+
			"Total value: $%s\n\n"+
			"📊 Tier: %s (x%s multiplier)\n"+
			"👥 Referrals: %d (next tier at %d)",
		acc.Points, acc.SocialDollars.StringFixed(2), balance.StringFixed(2),
		acc.Tier, acc.Multiplier.String(), acc.ReferralCount, acc.NextTierRefs,
	))
}

// HandleRef shows the user's referral link and current per-referral reward.
func (h *AccountHandler) HandleRef(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	acc, err := h.rewards.GetAccount(context.Background(), sender.ID)
	if err != nil {
		return replyError(c, err)
	}

	reward := int64(0)
	if t, ok := h.rewards.Engine().Tiers().ByName(acc.Tier); ok {
		reward = engine.ScaleReward(t.ReferralReward, acc.Multiplier)
	}

	return c.Reply(fmt.Sprintf(
		"👥 Refer Friends\n\n"+
			"Your current tier: %s\n"+
			"Referrals: %d\n"+
			"Points per referral: %d\n\n"+
			"Share your referral link:\n"+
			"https://t.me/%s?start=%s%s\n\n"+
			"When someone joins using your link, you'll earn points!",
		acc.Tier, acc.ReferralCount, reward,
		h.botUsername, referralPayloadPrefix, acc.ReferralCode,
	))
}

// HandleWallet stores the payout wallet address given as the argument.
func (h *AccountHandler) HandleWallet(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	address := strings.TrimSpace(c.Message().Payload)
	if address == "" {
		return c.Reply("Usage: /wallet <USDT TRC-20 address>")
	}
	if len(address) < 20 {
		return c.Reply("Please enter a valid USDT (TRC-20) wallet address")
	}

	if _, err := h.rewards.UpdateWallet(context.Background(), sender.ID, address); err != nil {
		return replyError(c, err)
	}
	return c.Reply("✅ Wallet address saved. Use /withdraw to request a payout.")
}

// HandleHistory shows the most recent ledger entries. An optional argument
// filters by entry type, e.g. "/history withdrawal".
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	entryType := strings.ToLower(strings.TrimSpace(c.Message().Payload))
	entries, err := h.rewards.History(context.Background(), sender.ID, entryType, 10)
	if err != nil {
		return replyError(c, err)
	}
	if len(entries) == 0 {
		if entryType != "" {
			return c.Reply(fmt.Sprintf("No %s activity yet.", entryType))
		}
		return c.Reply("No activity yet. Use /earn to get started!")
	}

	return c.Reply(formatHistory(entries))
}

// formatHistory renders ledger entries newest first, one per line.
func formatHistory(entries []*model.LedgerEntry) string {
	var sb strings.Builder
	sb.WriteString("📜 Recent Activity\n")
	for _, e := range entries {
		sb.WriteString("\n")
		sb.WriteString(e.CreatedAt.UTC().Format("Jan 02 15:04"))
		sb.WriteString(" | ")
		sb.WriteString(e.Type)
		if e.Points != 0 {
			sb.WriteString(fmt.Sprintf(" | %+d points", e.Points))
		}
		if !e.Dollars.IsZero() {
			sb.WriteString(fmt.Sprintf(" | $%s", e.Dollars.StringFixed(2)))
		}
	}
	return sb.String()
}
