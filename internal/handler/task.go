package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-rewards-bot/internal/model"
	"telegram-rewards-bot/internal/service"
)

// TaskHandler handles the earning task commands.
type TaskHandler struct {
	rewards *service.RewardsService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(rewards *service.RewardsService) *TaskHandler {
	return &TaskHandler{rewards: rewards}
}

// HandleAd credits a regular ad view.
func (h *TaskHandler) HandleAd(c tele.Context) error {
	return h.applyTask(c, model.TaskAdView, "")
}

// HandlePremiumAd credits the once-a-day premium ad view.
func (h *TaskHandler) HandlePremiumAd(c tele.Context) error {
	return h.applyTask(c, model.TaskPremiumAd, "")
}

// HandleVisit credits a partner site visit.
func (h *TaskHandler) HandleVisit(c tele.Context) error {
	return h.applyTask(c, model.TaskSiteVisit, "")
}

// HandleVideo credits a full video watch.
func (h *TaskHandler) HandleVideo(c tele.Context) error {
	return h.applyTask(c, model.TaskVideoWatch, "")
}

// HandleSocial credits a one-time social follow for the given platform.
func (h *TaskHandler) HandleSocial(c tele.Context) error {
	platform := strings.ToLower(strings.TrimSpace(c.Message().Payload))
	if platform == "" {
		return c.Reply(fmt.Sprintf(
			"Usage: /social <platform>\n\nAvailable platforms: %s",
			strings.Join(platformNames(), ", "),
		))
	}
	return h.applyTask(c, model.TaskSocialClaim, model.SocialPlatform(platform))
}

func (h *TaskHandler) applyTask(c tele.Context, kind model.TaskKind, platform model.SocialPlatform) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	out, err := h.rewards.ApplyTask(context.Background(), sender.ID, kind, platform)
	if err != nil {
		return replyError(c, err)
	}

	if !out.Dollars.IsZero() {
		return c.Reply(fmt.Sprintf(
			"✅ Reward claimed: $%s\n\n💰 Social rewards balance: $%s",
			out.Dollars.StringFixed(2), out.Account.SocialDollars.StringFixed(2),
		))
	}
	return c.Reply(fmt.Sprintf(
		"✅ You earned %d points!\n\n💰 Balance: %d points",
		out.Points, out.Account.Points,
	))
}

func platformNames() []string {
	platforms := model.KnownPlatforms()
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, string(p))
	}
	return names
}
