// Package model defines the data models for the rewards ledger.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskKind identifies a rewardable activity.
type TaskKind string

// Supported task kinds.
const (
	TaskAdView      TaskKind = "ad_view"
	TaskPremiumAd   TaskKind = "premium_ad"
	TaskSiteVisit   TaskKind = "site_visit"
	TaskVideoWatch  TaskKind = "video_watch"
	TaskSocialClaim TaskKind = "social"
)

// SocialPlatform identifies a one-time social task target.
// Completion flags are keyed by this fixed enumeration rather than
// arbitrary caller-supplied strings.
type SocialPlatform string

// Supported social platforms.
const (
	PlatformYouTube1  SocialPlatform = "youtube1"
	PlatformYouTube2  SocialPlatform = "youtube2"
	PlatformYouTube3  SocialPlatform = "youtube3"
	PlatformFacebook  SocialPlatform = "facebook"
	PlatformInstagram SocialPlatform = "instagram"
	PlatformTwitter   SocialPlatform = "twitter"
	PlatformTelegram  SocialPlatform = "telegram"
)

// KnownPlatforms returns the fixed set of claimable social platforms.
func KnownPlatforms() []SocialPlatform {
	return []SocialPlatform{
		PlatformYouTube1,
		PlatformYouTube2,
		PlatformYouTube3,
		PlatformFacebook,
		PlatformInstagram,
		PlatformTwitter,
		PlatformTelegram,
	}
}

// IsKnownPlatform reports whether p is one of the supported platforms.
func IsKnownPlatform(p SocialPlatform) bool {
	for _, known := range KnownPlatforms() {
		if p == known {
			return true
		}
	}
	return false
}

// Account represents one end user's reward state.
// Invariants: Points >= 0, SocialDollars >= 0, ReferralCount >= 0;
// Tier/Multiplier/NextTierRefs are always consistent with ReferralCount;
// ReferrerID is set at most once and never overwritten.
type Account struct {
	TelegramID   int64  `db:"telegram_id"`
	Username     string `db:"username"`
	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	ReferralCode string `db:"referral_code"`
	ReferrerID   *int64 `db:"referrer_id"`

	Points        int64           `db:"points"`
	SocialDollars decimal.Decimal `db:"social_dollars"`
	ReferralCount int             `db:"referral_count"`
	Tier          string          `db:"tier"`
	Multiplier    decimal.Decimal `db:"multiplier"`
	NextTierRefs  int             `db:"next_tier_refs"`
	WalletAddress string          `db:"wallet_address"`

	AdViewCount        int        `db:"ad_view_count"`
	PremiumAdViewCount int        `db:"premium_ad_view_count"`
	DailyResetAt       time.Time  `db:"daily_reset_at"`
	LastAdViewAt       *time.Time `db:"last_ad_view_at"`

	// LastTaskAt holds the last completion time per elapsed-time-gated
	// task kind (site visit, video watch). Stored as JSONB.
	LastTaskAt map[TaskKind]time.Time `db:"last_task_at"`

	// CompletedSocial holds the platforms already claimed, one-time ever.
	CompletedSocial []string `db:"completed_social"`

	// UsedBonusCodes maps a code to its redemption period key:
	// a date string for daily codes, a fixed sentinel for one-time codes.
	UsedBonusCodes map[string]string `db:"used_bonus_codes"`

	// Version increments on every persisted update and backs the
	// optimistic compare-and-swap in the repository.
	Version int64 `db:"version"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// HasCompletedSocial reports whether the platform was already claimed.
func (a *Account) HasCompletedSocial(p SocialPlatform) bool {
	for _, done := range a.CompletedSocial {
		if done == string(p) {
			return true
		}
	}
	return false
}

// DisplayName returns the best human-readable identity for messages.
func (a *Account) DisplayName() string {
	if a.Username != "" {
		return "@" + a.Username
	}
	name := a.FirstName
	if a.LastName != "" {
		name += " " + a.LastName
	}
	if name == "" {
		return "user"
	}
	return name
}

// LedgerEntry represents a single balance change record.
type LedgerEntry struct {
	ID          int64           `db:"id"`
	AccountID   int64           `db:"account_id"`
	Points      int64           `db:"points"`
	Dollars     decimal.Decimal `db:"dollars"`
	Type        string          `db:"type"`
	Description *string         `db:"description"`
	CreatedAt   time.Time       `db:"created_at"`
}

// Ledger entry types for categorizing balance changes.
const (
	EntryTypeAdView     = "ad_view"     // Ad view reward
	EntryTypePremiumAd  = "premium_ad"  // Premium ad reward
	EntryTypeSiteVisit  = "site_visit"  // Website visit reward
	EntryTypeVideoWatch = "video_watch" // Video watch reward
	EntryTypeSocial     = "social"      // One-time social task grant
	EntryTypeBonusCode  = "bonus_code"  // Bonus code redemption
	EntryTypeReferral   = "referral"    // Referral credit to the referrer
	EntryTypeWithdrawal = "withdrawal"  // Balance zeroed for payout
)

// EntryTypeForTask maps a task kind to its ledger entry type.
func EntryTypeForTask(kind TaskKind) string {
	switch kind {
	case TaskAdView:
		return EntryTypeAdView
	case TaskPremiumAd:
		return EntryTypePremiumAd
	case TaskSiteVisit:
		return EntryTypeSiteVisit
	case TaskVideoWatch:
		return EntryTypeVideoWatch
	case TaskSocialClaim:
		return EntryTypeSocial
	}
	return string(kind)
}

// ReferralRank represents an account's position on the referral leaderboard.
type ReferralRank struct {
	AccountID     int64  `db:"account_id"`
	Username      string `db:"username"`
	ReferralCount int    `db:"referral_count"`
	Tier          string `db:"tier"`
}
