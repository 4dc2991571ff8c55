package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-rewards-bot/internal/service"
)

const rankingLimit = 10

// RankingHandler handles the leaderboard commands.
type RankingHandler struct {
	rewards *service.RewardsService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rewards *service.RewardsService) *RankingHandler {
	return &RankingHandler{rewards: rewards}
}

// HandleTop shows the top referrers.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	ranks, err := h.rewards.TopReferrers(context.Background(), rankingLimit)
	if err != nil {
		return replyError(c, err)
	}
	if len(ranks) == 0 {
		return c.Reply("No referrals yet. Be the first with /ref!")
	}

	var sb strings.Builder
	sb.WriteString("🏆 Top Referrers\n")
	for i, r := range ranks {
		sb.WriteString(fmt.Sprintf("\n%s %s - %d referrals (%s)",
			medal(i), r.Username, r.ReferralCount, r.Tier))
	}
	return c.Reply(sb.String())
}

// HandleRank shows the accounts with the highest point balances.
func (h *RankingHandler) HandleRank(c tele.Context) error {
	accounts, err := h.rewards.TopByPoints(context.Background(), rankingLimit)
	if err != nil {
		return replyError(c, err)
	}
	if len(accounts) == 0 {
		return c.Reply("No points earned yet. Use /earn to get started!")
	}

	var sb strings.Builder
	sb.WriteString("🏆 Points Leaderboard\n")
	for i, acc := range accounts {
		sb.WriteString(fmt.Sprintf("\n%s %s - %d points",
			medal(i), acc.DisplayName(), acc.Points))
	}
	return c.Reply(sb.String())
}

func medal(i int) string {
	switch i {
	case 0:
		return "🥇"
	case 1:
		return "🥈"
	case 2:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", i+1)
	}
}
