// Package main is the entry point for the Telegram rewards bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-rewards-bot/internal/bot"
	"telegram-rewards-bot/internal/config"
	"telegram-rewards-bot/internal/engine"
	"telegram-rewards-bot/internal/notify"
	"telegram-rewards-bot/internal/pkg/db"
	"telegram-rewards-bot/internal/pkg/lock"
	"telegram-rewards-bot/internal/repository"
	"telegram-rewards-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)

	// Initialize the accounting engine from configuration
	eng := engine.New(cfg.TierTable(), cfg.BonusTable(), cfg.EngineConfig())

	// Initialize the Telegram transport first so the notifier can reuse it
	teleBot, err := bot.NewTelebot(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram bot")
	}

	notifier := notify.NewTelegramNotifier(teleBot, cfg.Bot.AdminChatID)

	// Initialize the rewards service
	accountLock := lock.NewAccountLock()
	rewards := service.NewRewardsService(accountRepo, ledgerRepo, eng, accountLock, notifier, notifier)

	// Wire handlers and middleware
	telegramBot, err := bot.New(&bot.Dependencies{
		Config:  cfg,
		Telebot: teleBot,
		Rewards: rewards,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	if err := telegramBot.SetCommands(); err != nil {
		log.Warn().Err(err).Msg("Failed to publish command menu")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create accounts table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			telegram_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			last_name VARCHAR(255) NOT NULL DEFAULT '',
			referral_code VARCHAR(32) NOT NULL,
			referrer_id BIGINT,
			points BIGINT NOT NULL DEFAULT 0,
			social_dollars NUMERIC(20, 8) NOT NULL DEFAULT 0,
			referral_count INT NOT NULL DEFAULT 0,
			tier VARCHAR(50) NOT NULL,
			multiplier NUMERIC(10, 4) NOT NULL DEFAULT 1,
			next_tier_refs INT NOT NULL DEFAULT 0,
			wallet_address TEXT NOT NULL DEFAULT '',
			ad_view_count INT NOT NULL DEFAULT 0,
			premium_ad_view_count INT NOT NULL DEFAULT 0,
			daily_reset_at TIMESTAMPTZ NOT NULL,
			last_ad_view_at TIMESTAMPTZ,
			last_task_at JSONB NOT NULL DEFAULT '{}',
			completed_social TEXT[] NOT NULL DEFAULT '{}',
			used_bonus_codes JSONB NOT NULL DEFAULT '{}',
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT accounts_referral_code_key UNIQUE (referral_code)
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_points ON accounts(points DESC);
		CREATE INDEX IF NOT EXISTS idx_accounts_referrals ON accounts(referral_count DESC, points DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: accounts table created")

	// Migration 2: Create ledger_entries table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			account_id BIGINT NOT NULL REFERENCES accounts(telegram_id) ON DELETE CASCADE,
			points BIGINT NOT NULL DEFAULT 0,
			dollars NUMERIC(20, 8) NOT NULL DEFAULT 0,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_account_time ON ledger_entries(account_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_ledger_type_time ON ledger_entries(type, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: ledger_entries table created")

	return nil
}
