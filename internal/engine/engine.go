// Package engine implements the reward accounting rules: task eligibility,
// bonus code redemption, referral credits, tier maintenance and withdrawal
// math. Operations validate first and mutate the account only on success, so
// every path is all-or-nothing. Callers own locking and persistence.
package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"telegram-rewards-bot/internal/bonus"
	"telegram-rewards-bot/internal/model"
	"telegram-rewards-bot/internal/tier"
)

// Default accounting constants.
const (
	// PointsPerDollar converts the point balance into dollar units.
	PointsPerDollar = 100000
	// MinWithdrawalDollars is the minimum total balance for a payout request.
	MinWithdrawalDollars = 1000
)

// Config holds the tunable reward amounts.
type Config struct {
	PremiumAdBaseReward  int64
	SiteVisitBaseReward  int64
	VideoWatchBaseReward int64
	SocialGrantDollars   decimal.Decimal
	PremiumAdDailyCap    int
	PointsPerDollar      int64
	MinWithdrawal        decimal.Decimal
	ResetInterval        time.Duration
}

// DefaultConfig returns the production reward configuration.
func DefaultConfig() Config {
	return Config{
		PremiumAdBaseReward:  1000,
		SiteVisitBaseReward:  500,
		VideoWatchBaseReward: 2000,
		SocialGrantDollars:   decimal.NewFromInt(50),
		PremiumAdDailyCap:    1,
		PointsPerDollar:      PointsPerDollar,
		MinWithdrawal:        decimal.NewFromInt(MinWithdrawalDollars),
		ResetInterval:        24 * time.Hour,
	}
}

// Engine evaluates accounting operations against the static tables.
type Engine struct {
	tiers *tier.Table
	codes *bonus.Table
	cfg   Config
}

// New creates an Engine over the given tier and bonus tables.
func New(tiers *tier.Table, codes *bonus.Table, cfg Config) *Engine {
	return &Engine{tiers: tiers, codes: codes, cfg: cfg}
}

// TaskResult reports what a successful task completion credited.
type TaskResult struct {
	Points  int64
	Dollars decimal.Decimal
}

// BonusResult reports what a successful code redemption credited.
type BonusResult struct {
	Points  int64
	Dollars decimal.Decimal
}

// Tiers returns the engine's tier table.
func (e *Engine) Tiers() *tier.Table {
	return e.tiers
}

// MinWithdrawal returns the payout threshold in dollars.
func (e *Engine) MinWithdrawal() decimal.Decimal {
	return e.cfg.MinWithdrawal
}

// InitAccount sets the derived fields of a freshly created account: lowest
// tier, its multiplier, next-tier progress and the daily reset anchor.
func (e *Engine) InitAccount(acc *model.Account, now time.Time) {
	e.RefreshTier(acc)
	acc.DailyResetAt = now
	if acc.SocialDollars.IsZero() {
		acc.SocialDollars = decimal.Zero
	}
}

// RefreshTier re-resolves the cached tier fields from the referral count.
// Must be called whenever ReferralCount changes so the cache never goes
// stale relative to the count.
func (e *Engine) RefreshTier(acc *model.Account) {
	current, nextRefs := e.tiers.Resolve(acc.ReferralCount)
	acc.Tier = current.Name
	acc.Multiplier = current.Multiplier
	acc.NextTierRefs = nextRefs
}

// ResetDailyCounters clears the rolling 24h ad counters when the reset
// anchor has passed. Idempotent within the same cycle. Runs before every
// task and bonus evaluation; the site-visit/video-watch gates use their own
// elapsed-time timestamps and are not affected.
func (e *Engine) ResetDailyCounters(acc *model.Account, now time.Time) bool {
	if !now.After(acc.DailyResetAt) {
		return false
	}
	acc.AdViewCount = 0
	acc.PremiumAdViewCount = 0
	acc.DailyResetAt = now.Add(e.cfg.ResetInterval)
	return true
}

// ApplyTask evaluates a task completion request and, if eligible, credits
// the reward and updates the gating state in one step.
func (e *Engine) ApplyTask(acc *model.Account, kind model.TaskKind, platform model.SocialPlatform, now time.Time) (TaskResult, error) {
	e.ResetDailyCounters(acc, now)

	switch kind {
	case model.TaskAdView:
		current, _ := e.tiers.Resolve(acc.ReferralCount)
		awarded := ScaleReward(current.AdReward, acc.Multiplier)
		acc.Points += awarded
		acc.AdViewCount++
		ts := now
		acc.LastAdViewAt = &ts
		return TaskResult{Points: awarded, Dollars: decimal.Zero}, nil

	case model.TaskPremiumAd:
		if acc.PremiumAdViewCount >= e.cfg.PremiumAdDailyCap {
			return TaskResult{}, ErrPremiumLimitReached
		}
		awarded := ScaleReward(e.cfg.PremiumAdBaseReward, acc.Multiplier)
		acc.Points += awarded
		acc.PremiumAdViewCount++
		return TaskResult{Points: awarded, Dollars: decimal.Zero}, nil

	case model.TaskSiteVisit:
		return e.applyTimestampGated(acc, kind, e.cfg.SiteVisitBaseReward, now)

	case model.TaskVideoWatch:
		return e.applyTimestampGated(acc, kind, e.cfg.VideoWatchBaseReward, now)

	case model.TaskSocialClaim:
		if !model.IsKnownPlatform(platform) {
			return TaskResult{}, ErrInvalidTaskType
		}
		if acc.HasCompletedSocial(platform) {
			return TaskResult{}, ErrAlreadyCompleted
		}
		acc.CompletedSocial = append(acc.CompletedSocial, string(platform))
		acc.SocialDollars = acc.SocialDollars.Add(e.cfg.SocialGrantDollars)
		return TaskResult{Dollars: e.cfg.SocialGrantDollars}, nil
	}

	return TaskResult{}, ErrInvalidTaskType
}

// applyTimestampGated handles the once-per-24h tasks gated on their own
// last-completion timestamp.
func (e *Engine) applyTimestampGated(acc *model.Account, kind model.TaskKind, baseReward int64, now time.Time) (TaskResult, error) {
	if last, ok := acc.LastTaskAt[kind]; ok && now.Sub(last) < 24*time.Hour {
		return TaskResult{}, ErrAlreadyCompletedToday
	}
	awarded := ScaleReward(baseReward, acc.Multiplier)
	acc.Points += awarded
	if acc.LastTaskAt == nil {
		acc.LastTaskAt = make(map[model.TaskKind]time.Time)
	}
	acc.LastTaskAt[kind] = now
	return TaskResult{Points: awarded, Dollars: decimal.Zero}, nil
}

// RedeemBonus evaluates a bonus code redemption and, if eligible, credits
// the award and records the period key.
func (e *Engine) RedeemBonus(acc *model.Account, rawCode string, now time.Time) (BonusResult, error) {
	e.ResetDailyCounters(acc, now)

	code, ok := e.codes.Lookup(rawCode)
	if !ok {
		return BonusResult{}, ErrInvalidCode
	}

	periodKey := code.PeriodKey(now)
	if used, ok := acc.UsedBonusCodes[code.Code]; ok {
		if !code.Daily || used == periodKey {
			return BonusResult{}, ErrCodeAlreadyUsed
		}
	}

	acc.Points += code.Points
	acc.SocialDollars = acc.SocialDollars.Add(code.Dollars)
	if acc.UsedBonusCodes == nil {
		acc.UsedBonusCodes = make(map[string]string)
	}
	acc.UsedBonusCodes[code.Code] = periodKey

	return BonusResult{Points: code.Points, Dollars: code.Dollars}, nil
}

// AttributeReferral links a new account to its referrer and credits the
// referrer. First-touch attribution: an already-attributed account or a
// self-referral is a no-op, reported by applied=false. On success the
// referrer's count, cached tier fields and points are updated together.
func (e *Engine) AttributeReferral(referee, referrer *model.Account) (credited int64, applied bool) {
	if referee.ReferrerID != nil {
		return 0, false
	}
	if referee.TelegramID == referrer.TelegramID {
		return 0, false
	}

	referrerID := referrer.TelegramID
	referee.ReferrerID = &referrerID

	return e.CreditReferral(referrer), true
}

// CreditReferral applies one referral to the referrer: the count increment,
// the tier cache refresh and the point credit happen together so the cached
// fields are never stale relative to the count.
func (e *Engine) CreditReferral(referrer *model.Account) int64 {
	referrer.ReferralCount++
	e.RefreshTier(referrer)
	current, _ := e.tiers.Resolve(referrer.ReferralCount)
	credited := ScaleReward(current.ReferralReward, referrer.Multiplier)
	referrer.Points += credited
	return credited
}

// WithdrawableBalance computes points/rate + socialDollars in dollar units.
func (e *Engine) WithdrawableBalance(acc *model.Account) decimal.Decimal {
	pointsAsDollars := decimal.NewFromInt(acc.Points).Div(decimal.NewFromInt(e.cfg.PointsPerDollar))
	return pointsAsDollars.Add(acc.SocialDollars)
}

// Withdraw validates a payout request and zeroes both balances on success,
// returning the amount to be paid out. Validation order: threshold first,
// then wallet. The caller notifies the admin; delivery failure never rolls
// back the zeroing.
func (e *Engine) Withdraw(acc *model.Account) (decimal.Decimal, error) {
	total := e.WithdrawableBalance(acc)
	if total.LessThan(e.cfg.MinWithdrawal) {
		return decimal.Zero, ErrMinimumNotMet
	}
	if acc.WalletAddress == "" {
		return decimal.Zero, ErrWalletNotSet
	}

	acc.Points = 0
	acc.SocialDollars = decimal.Zero
	return total, nil
}

// ScaleReward multiplies a base reward by the tier multiplier and truncates
// the result toward zero. Awards are always whole points.
func ScaleReward(base int64, mult decimal.Decimal) int64 {
	return decimal.NewFromInt(base).Mul(mult).IntPart()
}
