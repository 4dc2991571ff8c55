// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-rewards-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrVersionConflict is returned when an optimistic update loses the
	// race against a concurrent writer. Callers re-read and re-apply.
	ErrVersionConflict = errors.New("account version conflict")
	// ErrDuplicateReferralCode is returned when an insert collides on the
	// unique referral code. Callers regenerate the code and retry.
	ErrDuplicateReferralCode = errors.New("duplicate referral code")
)

const accountColumns = `
	telegram_id, username, first_name, last_name, referral_code, referrer_id,
	points, social_dollars, referral_count, tier, multiplier, next_tier_refs,
	wallet_address, ad_view_count, premium_ad_view_count, daily_reset_at,
	last_ad_view_at, last_task_at, completed_social, used_bonus_codes,
	version, created_at, updated_at
`

// AccountRepository handles account persistence.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var acc model.Account
	err := row.Scan(
		&acc.TelegramID,
		&acc.Username,
		&acc.FirstName,
		&acc.LastName,
		&acc.ReferralCode,
		&acc.ReferrerID,
		&acc.Points,
		&acc.SocialDollars,
		&acc.ReferralCount,
		&acc.Tier,
		&acc.Multiplier,
		&acc.NextTierRefs,
		&acc.WalletAddress,
		&acc.AdViewCount,
		&acc.PremiumAdViewCount,
		&acc.DailyResetAt,
		&acc.LastAdViewAt,
		&acc.LastTaskAt,
		&acc.CompletedSocial,
		&acc.UsedBonusCodes,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if acc.LastTaskAt == nil {
		acc.LastTaskAt = make(map[model.TaskKind]time.Time)
	}
	if acc.UsedBonusCodes == nil {
		acc.UsedBonusCodes = make(map[string]string)
	}
	return &acc, nil
}

// Create inserts a new account. The caller supplies the full initial state,
// including the generated referral code and derived tier fields.
// Returns ErrDuplicateReferralCode on a referral code collision.
func (r *AccountRepository) Create(ctx context.Context, acc *model.Account) (*model.Account, error) {
	const query = `
		INSERT INTO accounts (
			telegram_id, username, first_name, last_name, referral_code, referrer_id,
			points, social_dollars, referral_count, tier, multiplier, next_tier_refs,
			wallet_address, ad_view_count, premium_ad_view_count, daily_reset_at,
			last_ad_view_at, last_task_at, completed_social, used_bonus_codes,
			version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, 1, NOW(), NOW())
		RETURNING ` + accountColumns

	row := r.pool.QueryRow(ctx, query,
		acc.TelegramID,
		acc.Username,
		acc.FirstName,
		acc.LastName,
		acc.ReferralCode,
		acc.ReferrerID,
		acc.Points,
		acc.SocialDollars,
		acc.ReferralCount,
		acc.Tier,
		acc.Multiplier,
		acc.NextTierRefs,
		acc.WalletAddress,
		acc.AdViewCount,
		acc.PremiumAdViewCount,
		acc.DailyResetAt,
		acc.LastAdViewAt,
		acc.LastTaskAt,
		acc.CompletedSocial,
		acc.UsedBonusCodes,
	)

	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "accounts_referral_code_key" {
			return nil, ErrDuplicateReferralCode
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return created, nil
}

// GetByID retrieves an account by its Telegram ID.
// Returns ErrAccountNotFound if the account does not exist.
func (r *AccountRepository) GetByID(ctx context.Context, telegramID int64) (*model.Account, error) {
	const query = `SELECT` + accountColumns + `FROM accounts WHERE telegram_id = $1`

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// GetByReferralCode resolves an account from its unique referral code.
// Returns ErrAccountNotFound if no account owns the code.
func (r *AccountRepository) GetByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	const query = `SELECT` + accountColumns + `FROM accounts WHERE referral_code = $1`

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by referral code: %w", err)
	}
	return acc, nil
}

// Update persists the full mutable state of an account using an optimistic
// compare-and-swap on the version column. Returns ErrVersionConflict when a
// concurrent writer got there first; accounts are never deleted, so a
// missing row always means a lost race.
func (r *AccountRepository) Update(ctx context.Context, acc *model.Account) (*model.Account, error) {
	const query = `
		UPDATE accounts SET
			username = $2,
			first_name = $3,
			last_name = $4,
			referrer_id = $5,
			points = $6,
			social_dollars = $7,
			referral_count = $8,
			tier = $9,
			multiplier = $10,
			next_tier_refs = $11,
			wallet_address = $12,
			ad_view_count = $13,
			premium_ad_view_count = $14,
			daily_reset_at = $15,
			last_ad_view_at = $16,
			last_task_at = $17,
			completed_social = $18,
			used_bonus_codes = $19,
			version = version + 1,
			updated_at = NOW()
		WHERE telegram_id = $1 AND version = $20
		RETURNING ` + accountColumns

	row := r.pool.QueryRow(ctx, query,
		acc.TelegramID,
		acc.Username,
		acc.FirstName,
		acc.LastName,
		acc.ReferrerID,
		acc.Points,
		acc.SocialDollars,
		acc.ReferralCount,
		acc.Tier,
		acc.Multiplier,
		acc.NextTierRefs,
		acc.WalletAddress,
		acc.AdViewCount,
		acc.PremiumAdViewCount,
		acc.DailyResetAt,
		acc.LastAdViewAt,
		acc.LastTaskAt,
		acc.CompletedSocial,
		acc.UsedBonusCodes,
		acc.Version,
	)

	updated, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return updated, nil
}

// UpdateUsername refreshes the cached Telegram identity fields.
func (r *AccountRepository) UpdateUsername(ctx context.Context, telegramID int64, username, firstName, lastName string) error {
	const query = `
		UPDATE accounts
		SET username = $2, first_name = $3, last_name = $4, updated_at = NOW()
		WHERE telegram_id = $1
	`

	result, err := r.pool.Exec(ctx, query, telegramID, username, firstName, lastName)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Exists checks if an account with the given Telegram ID exists.
func (r *AccountRepository) Exists(ctx context.Context, telegramID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM accounts WHERE telegram_id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, telegramID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}

// TopReferrers retrieves the top N accounts by referral count.
func (r *AccountRepository) TopReferrers(ctx context.Context, limit int) ([]*model.ReferralRank, error) {
	const query = `
		SELECT telegram_id, username, referral_count, tier
		FROM accounts
		ORDER BY referral_count DESC, points DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top referrers: %w", err)
	}
	defer rows.Close()

	var ranks []*model.ReferralRank
	for rows.Next() {
		var rank model.ReferralRank
		if err := rows.Scan(&rank.AccountID, &rank.Username, &rank.ReferralCount, &rank.Tier); err != nil {
			return nil, fmt.Errorf("failed to scan referral rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referral ranks: %w", err)
	}
	return ranks, nil
}

// TopByPoints retrieves the top N accounts by point balance.
func (r *AccountRepository) TopByPoints(ctx context.Context, limit int) ([]*model.Account, error) {
	const query = `SELECT` + accountColumns + `FROM accounts ORDER BY points DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}
