// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"telegram-rewards-bot/internal/bonus"
	"telegram-rewards-bot/internal/engine"
	"telegram-rewards-bot/internal/tier"
)

// Config holds all application configuration.
type Config struct {
	Bot      BotConfig         `mapstructure:"bot"`
	Database DatabaseConfig    `mapstructure:"database"`
	Rewards  RewardsConfig     `mapstructure:"rewards"`
	Tiers    []TierConfig      `mapstructure:"tiers"`
	Codes    []BonusCodeConfig `mapstructure:"bonus_codes"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token       string `mapstructure:"token"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RewardsConfig holds the accounting engine amounts.
type RewardsConfig struct {
	PointsPerDollar      int64 `mapstructure:"points_per_dollar"`
	MinWithdrawal        int64 `mapstructure:"min_withdrawal"`
	PremiumAdBaseReward  int64 `mapstructure:"premium_ad_base_reward"`
	PremiumAdDailyCap    int   `mapstructure:"premium_ad_daily_cap"`
	SiteVisitBaseReward  int64 `mapstructure:"site_visit_base_reward"`
	VideoWatchBaseReward int64 `mapstructure:"video_watch_base_reward"`
	SocialGrantDollars   int64 `mapstructure:"social_grant_dollars"`
	ResetIntervalHours   int   `mapstructure:"reset_interval_hours"`
}

// TierConfig holds one reward bracket from the config file.
type TierConfig struct {
	Name           string  `mapstructure:"name"`
	RefsRequired   int     `mapstructure:"refs_required"`
	Multiplier     float64 `mapstructure:"multiplier"`
	AdReward       int64   `mapstructure:"ad_reward"`
	ReferralReward int64   `mapstructure:"referral_reward"`
}

// BonusCodeConfig holds one redemption code from the config file.
type BonusCodeConfig struct {
	Code    string  `mapstructure:"code"`
	Points  int64   `mapstructure:"points"`
	Dollars float64 `mapstructure:"dollars"`
	Daily   bool    `mapstructure:"daily"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// TierTable builds the tier table from configuration, falling back to the
// built-in defaults when no tiers are configured.
func (c *Config) TierTable() *tier.Table {
	if len(c.Tiers) == 0 {
		return tier.Default()
	}
	tiers := make([]tier.Tier, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		tiers = append(tiers, tier.Tier{
			Name:           t.Name,
			RefsRequired:   t.RefsRequired,
			Multiplier:     decimal.NewFromFloat(t.Multiplier),
			AdReward:       t.AdReward,
			ReferralReward: t.ReferralReward,
		})
	}
	return tier.NewTable(tiers)
}

// BonusTable builds the bonus code table from configuration, falling back
// to the built-in defaults when no codes are configured.
func (c *Config) BonusTable() *bonus.Table {
	if len(c.Codes) == 0 {
		return bonus.Default()
	}
	codes := make([]bonus.Code, 0, len(c.Codes))
	for _, b := range c.Codes {
		codes = append(codes, bonus.Code{
			Code:    b.Code,
			Points:  b.Points,
			Dollars: decimal.NewFromFloat(b.Dollars),
			Daily:   b.Daily,
		})
	}
	return bonus.NewTable(codes)
}

// EngineConfig builds the accounting engine configuration.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		PremiumAdBaseReward:  c.Rewards.PremiumAdBaseReward,
		SiteVisitBaseReward:  c.Rewards.SiteVisitBaseReward,
		VideoWatchBaseReward: c.Rewards.VideoWatchBaseReward,
		SocialGrantDollars:   decimal.NewFromInt(c.Rewards.SocialGrantDollars),
		PremiumAdDailyCap:    c.Rewards.PremiumAdDailyCap,
		PointsPerDollar:      c.Rewards.PointsPerDollar,
		MinWithdrawal:        decimal.NewFromInt(c.Rewards.MinWithdrawal),
		ResetInterval:        time.Duration(c.Rewards.ResetIntervalHours) * time.Hour,
	}
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, DATABASE_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.TierTable().Validate(); err != nil {
		return nil, fmt.Errorf("invalid tier configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "rewardsbot")
	v.SetDefault("database.name", "rewardsbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Rewards engine defaults
	v.SetDefault("rewards.points_per_dollar", 100000)
	v.SetDefault("rewards.min_withdrawal", 1000)
	v.SetDefault("rewards.premium_ad_base_reward", 1000)
	v.SetDefault("rewards.premium_ad_daily_cap", 1)
	v.SetDefault("rewards.site_visit_base_reward", 500)
	v.SetDefault("rewards.video_watch_base_reward", 2000)
	v.SetDefault("rewards.social_grant_dollars", 50)
	v.SetDefault("rewards.reset_interval_hours", 24)
}
