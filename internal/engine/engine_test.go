package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-rewards-bot/internal/bonus"
	"telegram-rewards-bot/internal/model"
	"telegram-rewards-bot/internal/tier"
)

func newTestEngine() *Engine {
	return New(tier.Default(), bonus.Default(), DefaultConfig())
}

func newTestAccount(e *Engine, id int64, now time.Time) *model.Account {
	acc := &model.Account{
		TelegramID:    id,
		Username:      "tester",
		ReferralCode:  "TESTCODE",
		SocialDollars: decimal.Zero,
	}
	e.InitAccount(acc, now)
	return acc
}

// TestInitAccount checks fresh-account defaults.
func TestInitAccount(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 1, now)

	assert.Equal(t, "Fresher", acc.Tier)
	assert.Equal(t, "1", acc.Multiplier.String())
	assert.Equal(t, 50, acc.NextTierRefs)
	assert.Equal(t, now, acc.DailyResetAt)
	assert.Equal(t, int64(0), acc.Points)
}

// TestApplyTaskAdView tests the always-eligible ad view reward.
func TestApplyTaskAdView(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 1, now)

	res, err := e.ApplyTask(acc, model.TaskAdView, "", now)
	require.NoError(t, err)
	// Fresher: 51 * 1.0
	assert.Equal(t, int64(51), res.Points)
	assert.Equal(t, int64(51), acc.Points)
	assert.Equal(t, 1, acc.AdViewCount)
	require.NotNil(t, acc.LastAdViewAt)

	// No cap: repeated views keep succeeding.
	for i := 0; i < 10; i++ {
		_, err := e.ApplyTask(acc, model.TaskAdView, "", now)
		require.NoError(t, err)
	}
	assert.Equal(t, 11, acc.AdViewCount)
}

// TestApplyTaskAdViewBruteScenario checks the documented tier scenario:
// 50 referrals puts the account at Brute (1.2x, base 74), so an ad view
// yields trunc(74 * 1.2) = 88 points.
func TestApplyTaskAdViewBruteScenario(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 1, now)

	acc.ReferralCount = 50
	e.RefreshTier(acc)
	require.Equal(t, "Brute", acc.Tier)

	res, err := e.ApplyTask(acc, model.TaskAdView, "", now)
	require.NoError(t, err)
	assert.Equal(t, int64(88), res.Points)
}

// TestApplyTaskPremiumAd tests the one-per-cycle premium ad cap.
func TestApplyTaskPremiumAd(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 1, now)

	res, err := e.ApplyTask(acc, model.TaskPremiumAd, "", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Points)
	assert.Equal(t, 1, acc.PremiumAdViewCount)

	// Second attempt in the same cycle is rejected and changes nothing.
	before := acc.Points
	_, err = e.ApplyTask(acc, model.TaskPremiumAd, "", now)
	assert.ErrorIs(t, err, ErrPremiumLimitReached)
	assert.Equal(t, before, acc.Points)
	assert.Equal(t, 1, acc.PremiumAdViewCount)

	// After the daily reset passes it succeeds again.
	later := acc.DailyResetAt.Add(time.Minute)
	_, err = e.ApplyTask(acc, model.TaskPremiumAd, "", later)
	require.NoError(t, err)
	assert.Equal(t, 1, acc.PremiumAdViewCount)
}

// TestApplyTaskTimestampGated tests the site-visit and video-watch 24h gates.
func TestApplyTaskTimestampGated(t *testing.T) {
	tests := []struct {
		name   string
		kind   model.TaskKind
		reward int64
	}{
		{"site visit", model.TaskSiteVisit, 500},
		{"video watch", model.TaskVideoWatch, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()
			now := time.Now()
			acc := newTestAccount(e, 1, now)

			res, err := e.ApplyTask(acc, tt.kind, "", now)
			require.NoError(t, err)
			assert.Equal(t, tt.reward, res.Points)
			assert.Equal(t, now, acc.LastTaskAt[tt.kind])

			// Within 24 hours: rejected.
			_, err = e.ApplyTask(acc, tt.kind, "", now.Add(23*time.Hour))
			assert.ErrorIs(t, err, ErrAlreadyCompletedToday)

			// After 24 hours: eligible again.
			_, err = e.ApplyTask(acc, tt.kind, "", now.Add(25*time.Hour))
			require.NoError(t, err)
		})
	}
}

// TestTimestampGatesDistinctFromDailyReset checks that crossing the ad
// counter reset boundary does not unlock a timestamp-gated task early.
func TestTimestampGatesDistinctFromDailyReset(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 1, now)
	acc.DailyResetAt = now.Add(24 * time.Hour) // established cycle

	// Complete a site visit and an ad view 12h into the cycle.
	visitAt := now.Add(12 * time.Hour)
	_, err := e.ApplyTask(acc, model.TaskSiteVisit, "", visitAt)
	require.NoError(t, err)
	_, err = e.ApplyTask(acc, model.TaskAdView, "", visitAt)
	require.NoError(t, err)
	require.Equal(t, 1, acc.AdViewCount)

	// At now+25h the ad counters reset...
	afterReset := now.Add(25 * time.Hour)
	require.True(t, e.ResetDailyCounters(acc, afterReset))
	assert.Equal(t, 0, acc.AdViewCount)

	// ...but only 13h elapsed since the visit, so it stays gated.
	_, err = e.ApplyTask(acc, model.TaskSiteVisit, "", afterReset)
	assert.ErrorIs(t, err, ErrAlreadyCompletedToday)
}

// TestApplyTaskSocial tests one-time social platform claims.
func TestApplyTaskSocial(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 1, now)

	res, err := e.ApplyTask(acc, model.TaskSocialClaim, model.PlatformTwitter, now)
	require.NoError(t, err)
	// Social grant goes to dollars, not points.
	assert.Equal(t, int64(0), res.Points)
	assert.True(t, res.Dollars.Equal(decimal.NewFromInt(50)))
	assert.True(t, acc.SocialDollars.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, int64(0), acc.Points)

	// Never claimable again, even much later.
	_, err = e.ApplyTask(acc, model.TaskSocialClaim, model.PlatformTwitter, now.Add(100*24*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	// Other platforms remain claimable.
	_, err = e.ApplyTask(acc, model.TaskSocialClaim, model.PlatformFacebook, now)
	require.NoError(t, err)
	assert.True(t, acc.SocialDollars.Equal(decimal.NewFromInt(100)))

	// Unknown platform keys are rejected, not stored.
	_, err = e.ApplyTask(acc, model.TaskSocialClaim, "myspace", now)
	assert.ErrorIs(t, err, ErrInvalidTaskType)
	assert.Len(t, acc.CompletedSocial, 2)
}

// TestApplyTaskUnknownKind tests rejection of unknown task kinds.
func TestApplyTaskUnknownKind(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 1, now)

	_, err := e.ApplyTask(acc, "mine_bitcoin", "", now)
	assert.ErrorIs(t, err, ErrInvalidTaskType)
	assert.Equal(t, int64(0), acc.Points)
}

// TestResetDailyCounters tests the rolling 24h reset.
func TestResetDailyCounters(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 1, now)
	acc.AdViewCount = 7
	acc.PremiumAdViewCount = 1

	// Not yet due.
	assert.False(t, e.ResetDailyCounters(acc, now))
	assert.Equal(t, 7, acc.AdViewCount)

	// Past the anchor: counters clear and the anchor advances to now+24h.
	later := now.Add(time.Hour)
	assert.True(t, e.ResetDailyCounters(acc, later))
	assert.Equal(t, 0, acc.AdViewCount)
	assert.Equal(t, 0, acc.PremiumAdViewCount)
	assert.Equal(t, later.Add(24*time.Hour), acc.DailyResetAt)

	// Idempotent within the new cycle.
	assert.False(t, e.ResetDailyCounters(acc, later.Add(time.Minute)))
}

// TestRedeemBonusDaily tests daily code redemption across calendar days.
func TestRedeemBonusDaily(t *testing.T) {
	e := newTestEngine()
	day1 := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	acc := newTestAccount(e, 1, day1)

	res, err := e.RedeemBonus(acc, "baser", day1)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.Points)
	assert.Equal(t, int64(2000), acc.Points)
	assert.Equal(t, "2026-08-27", acc.UsedBonusCodes["BASER"])

	// Same calendar day: rejected.
	_, err = e.RedeemBonus(acc, "BASER", day1.Add(5*time.Hour))
	assert.ErrorIs(t, err, ErrCodeAlreadyUsed)
	assert.Equal(t, int64(2000), acc.Points)

	// Next day: succeeds again.
	day2 := day1.Add(24 * time.Hour)
	_, err = e.RedeemBonus(acc, "BASER", day2)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), acc.Points)
	assert.Equal(t, "2026-08-28", acc.UsedBonusCodes["BASER"])
}

// TestRedeemBonusOnceEver tests one-time code redemption.
func TestRedeemBonusOnceEver(t *testing.T) {
	codes := bonus.NewTable([]bonus.Code{
		{Code: "LAUNCH", Points: 500, Dollars: decimal.NewFromInt(5), Daily: false},
	})
	e := New(tier.Default(), codes, DefaultConfig())
	now := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	acc := newTestAccount(e, 1, now)

	res, err := e.RedeemBonus(acc, "launch", now)
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Points)
	assert.True(t, res.Dollars.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, bonus.OnceEverKey, acc.UsedBonusCodes["LAUNCH"])

	// Rejected forever after, regardless of elapsed time.
	_, err = e.RedeemBonus(acc, "LAUNCH", now.Add(400*24*time.Hour))
	assert.ErrorIs(t, err, ErrCodeAlreadyUsed)
}

// TestRedeemBonusUnknown tests unknown code rejection.
func TestRedeemBonusUnknown(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 1, now)

	_, err := e.RedeemBonus(acc, "NOSUCHCODE", now)
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Empty(t, acc.UsedBonusCodes)
}

// TestAttributeReferral tests first-touch attribution and referrer credit.
func TestAttributeReferral(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	referrer := newTestAccount(e, 100, now)
	referee := newTestAccount(e, 200, now)

	credited, applied := e.AttributeReferral(referee, referrer)
	require.True(t, applied)
	// Fresher referral reward: 1000 * 1.0.
	assert.Equal(t, int64(1000), credited)
	assert.Equal(t, int64(1000), referrer.Points)
	assert.Equal(t, 1, referrer.ReferralCount)
	require.NotNil(t, referee.ReferrerID)
	assert.Equal(t, int64(100), *referee.ReferrerID)
}

// TestAttributeReferralIdempotent tests that re-attribution never changes
// the referrer link or double-credits.
func TestAttributeReferralIdempotent(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	referrer := newTestAccount(e, 100, now)
	other := newTestAccount(e, 300, now)
	referee := newTestAccount(e, 200, now)

	_, applied := e.AttributeReferral(referee, referrer)
	require.True(t, applied)

	credited, applied := e.AttributeReferral(referee, referrer)
	assert.False(t, applied)
	assert.Equal(t, int64(0), credited)
	assert.Equal(t, int64(1000), referrer.Points)
	assert.Equal(t, 1, referrer.ReferralCount)

	// A different referrer cannot overwrite first-touch attribution.
	_, applied = e.AttributeReferral(referee, other)
	assert.False(t, applied)
	assert.Equal(t, int64(100), *referee.ReferrerID)
	assert.Equal(t, int64(0), other.Points)
}

// TestAttributeReferralSelf tests that self-referral is ignored.
func TestAttributeReferralSelf(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 100, now)

	_, applied := e.AttributeReferral(acc, acc)
	assert.False(t, applied)
	assert.Nil(t, acc.ReferrerID)
	assert.Equal(t, 0, acc.ReferralCount)
}

// TestAttributeReferralTierPromotion tests that the credit uses the tier
// resolved after the count increment.
func TestAttributeReferralTierPromotion(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	referrer := newTestAccount(e, 100, now)
	referee := newTestAccount(e, 200, now)

	// The 50th referral promotes to Brute before the credit is computed:
	// trunc(1500 * 1.2) = 1800.
	referrer.ReferralCount = 49
	e.RefreshTier(referrer)
	require.Equal(t, "Fresher", referrer.Tier)

	credited, applied := e.AttributeReferral(referee, referrer)
	require.True(t, applied)
	assert.Equal(t, "Brute", referrer.Tier)
	assert.Equal(t, int64(1800), credited)
	assert.Equal(t, 50, referrer.ReferralCount)
	assert.Equal(t, 100, referrer.NextTierRefs)
}

// TestWithdraw tests the withdrawal threshold, wallet gate and zeroing.
func TestWithdraw(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	t.Run("below minimum", func(t *testing.T) {
		acc := newTestAccount(e, 1, now)
		acc.Points = 500 * PointsPerDollar
		acc.WalletAddress = "0xabc"

		_, err := e.Withdraw(acc)
		assert.ErrorIs(t, err, ErrMinimumNotMet)
		// Balances untouched on rejection.
		assert.Equal(t, int64(500*PointsPerDollar), acc.Points)
	})

	t.Run("wallet not set", func(t *testing.T) {
		acc := newTestAccount(e, 1, now)
		acc.Points = 2000 * PointsPerDollar

		_, err := e.Withdraw(acc)
		assert.ErrorIs(t, err, ErrWalletNotSet)
		assert.Equal(t, int64(2000*PointsPerDollar), acc.Points)
	})

	t.Run("success zeroes both balances", func(t *testing.T) {
		acc := newTestAccount(e, 1, now)
		acc.Points = 2000 * PointsPerDollar
		acc.SocialDollars = decimal.NewFromInt(25)
		acc.WalletAddress = "0xabc"

		amount, err := e.Withdraw(acc)
		require.NoError(t, err)
		assert.True(t, amount.Equal(decimal.NewFromInt(2025)))
		assert.Equal(t, int64(0), acc.Points)
		assert.True(t, acc.SocialDollars.IsZero())
	})

	t.Run("fractional balance just over threshold", func(t *testing.T) {
		// 99,999,999 points at 100000/dollar is 999.99999; with 0.5 social
		// dollars the total is 1000.49999 and the request succeeds.
		acc := newTestAccount(e, 1, now)
		acc.Points = 99999999
		acc.SocialDollars = decimal.NewFromFloat(0.5)
		acc.WalletAddress = "TRX9000"

		amount, err := e.Withdraw(acc)
		require.NoError(t, err)
		assert.True(t, amount.GreaterThanOrEqual(decimal.NewFromInt(1000)))
		assert.Equal(t, int64(0), acc.Points)
		assert.True(t, acc.SocialDollars.IsZero())
	})
}

// TestWithdrawableBalance tests the balance conversion math.
func TestWithdrawableBalance(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	acc := newTestAccount(e, 1, now)
	acc.Points = 150000
	acc.SocialDollars = decimal.NewFromFloat(2.5)

	total := e.WithdrawableBalance(acc)
	assert.True(t, total.Equal(decimal.NewFromFloat(4)))
}
