// Package bot wires the Telegram transport: it builds the telebot instance,
// registers middleware and routes commands to their handlers.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-rewards-bot/internal/config"
	"telegram-rewards-bot/internal/handler"
	"telegram-rewards-bot/internal/service"
)

// Bot wraps the telebot instance with the application handlers.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	accountHandler  *handler.AccountHandler
	taskHandler     *handler.TaskHandler
	bonusHandler    *handler.BonusHandler
	withdrawHandler *handler.WithdrawHandler
	rankingHandler  *handler.RankingHandler
}

// Dependencies holds everything the bot needs to serve commands. Telebot is
// created up front (see NewTelebot) so the rewards service can reuse it for
// admin and referrer notifications.
type Dependencies struct {
	Config  *config.Config
	Telebot *tele.Bot
	Rewards *service.RewardsService
}

// NewTelebot creates the long-polling telebot instance.
func NewTelebot(cfg *config.Config) (*tele.Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Telebot == nil {
		return nil, fmt.Errorf("telebot instance is required")
	}
	if deps.Rewards == nil {
		return nil, fmt.Errorf("rewards service is required")
	}

	b := &Bot{
		bot:             deps.Telebot,
		cfg:             deps.Config,
		accountHandler:  handler.NewAccountHandler(deps.Rewards, deps.Telebot.Me.Username),
		taskHandler:     handler.NewTaskHandler(deps.Rewards),
		bonusHandler:    handler.NewBonusHandler(deps.Rewards),
		withdrawHandler: handler.NewWithdrawHandler(deps.Rewards),
		rankingHandler:  handler.NewRankingHandler(deps.Rewards),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/earn", b.accountHandler.HandleEarn)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/ref", b.accountHandler.HandleRef)
	b.bot.Handle("/wallet", b.accountHandler.HandleWallet)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)

	b.bot.Handle("/ad", b.taskHandler.HandleAd)
	b.bot.Handle("/premiumad", b.taskHandler.HandlePremiumAd)
	b.bot.Handle("/visit", b.taskHandler.HandleVisit)
	b.bot.Handle("/video", b.taskHandler.HandleVideo)
	b.bot.Handle("/social", b.taskHandler.HandleSocial)

	b.bot.Handle("/redeem", b.bonusHandler.HandleRedeem)
	b.bot.Handle("/withdraw", b.withdrawHandler.HandleWithdraw)
	b.bot.Handle("/contact", b.withdrawHandler.HandleContact)

	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/rank", b.rankingHandler.HandleRank)
}

// SetCommands publishes the command menu shown by Telegram clients.
func (b *Bot) SetCommands() error {
	return b.bot.SetCommands([]tele.Command{
		{Text: "start", Description: "Create your account"},
		{Text: "earn", Description: "See how to earn points"},
		{Text: "balance", Description: "Show your balance and tier"},
		{Text: "ref", Description: "Get your referral link"},
		{Text: "ad", Description: "Watch an ad"},
		{Text: "premiumad", Description: "Watch the premium ad (daily)"},
		{Text: "visit", Description: "Visit the partner site"},
		{Text: "video", Description: "Watch the full video"},
		{Text: "social", Description: "Claim a social follow reward"},
		{Text: "redeem", Description: "Redeem a bonus code"},
		{Text: "wallet", Description: "Set your payout wallet"},
		{Text: "withdraw", Description: "Request a payout"},
		{Text: "history", Description: "Show recent activity"},
		{Text: "top", Description: "Top referrers"},
		{Text: "rank", Description: "Points leaderboard"},
		{Text: "contact", Description: "Message the admin"},
	})
}

// Start starts the bot polling. Blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
