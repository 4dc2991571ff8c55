// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"telegram-rewards-bot/internal/engine"
	"telegram-rewards-bot/internal/model"
	"telegram-rewards-bot/internal/notify"
	"telegram-rewards-bot/internal/pkg/lock"
	"telegram-rewards-bot/internal/repository"
)

// Service-level errors.
var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrConflict surfaces after the bounded internal retries on optimistic
	// version conflicts are exhausted. Transient; callers may retry.
	ErrConflict = errors.New("concurrent account modification")
)

const (
	// maxUpdateAttempts bounds the internal re-read/re-apply loop on
	// optimistic version conflicts.
	maxUpdateAttempts = 3
	// maxCodeAttempts bounds referral code regeneration on collisions.
	maxCodeAttempts = 5
	// lockAcquireTimeout bounds how long a single operation waits for the
	// account lock before giving up as contended.
	lockAcquireTimeout = 10 * time.Second
)

// AccountStore is the account persistence surface the service depends on.
type AccountStore interface {
	Create(ctx context.Context, acc *model.Account) (*model.Account, error)
	GetByID(ctx context.Context, telegramID int64) (*model.Account, error)
	GetByReferralCode(ctx context.Context, code string) (*model.Account, error)
	Update(ctx context.Context, acc *model.Account) (*model.Account, error)
	UpdateUsername(ctx context.Context, telegramID int64, username, firstName, lastName string) error
	Exists(ctx context.Context, telegramID int64) (bool, error)
	TopReferrers(ctx context.Context, limit int) ([]*model.ReferralRank, error)
	TopByPoints(ctx context.Context, limit int) ([]*model.Account, error)
}

// LedgerStore is the balance-history surface the service depends on.
type LedgerStore interface {
	Create(ctx context.Context, accountID int64, points int64, dollars decimal.Decimal, entryType string, description *string) (*model.LedgerEntry, error)
	GetByAccountID(ctx context.Context, accountID int64, limit int) ([]*model.LedgerEntry, error)
	GetByAccountIDAndType(ctx context.Context, accountID int64, entryType string, limit int) ([]*model.LedgerEntry, error)
}

// Identity carries the caller-supplied Telegram identity fields.
type Identity struct {
	Username  string
	FirstName string
	LastName  string
}

// TaskOutcome reports a successful task completion.
type TaskOutcome struct {
	Points  int64
	Dollars decimal.Decimal
	Account *model.Account
}

// BonusOutcome reports a successful bonus code redemption.
type BonusOutcome struct {
	Points  int64
	Dollars decimal.Decimal
	Account *model.Account
}

// WithdrawalOutcome reports an accepted payout request.
type WithdrawalOutcome struct {
	Amount        decimal.Decimal
	WalletAddress string
}

// RewardsService orchestrates the accounting engine over persistence with
// per-account locking and bounded conflict retries.
type RewardsService struct {
	accounts AccountStore
	ledger   LedgerStore
	eng      *engine.Engine
	locks    *lock.AccountLock
	admin    notify.AdminNotifier
	users    notify.UserNotifier
	now      func() time.Time
}

// NewRewardsService creates a RewardsService instance.
func NewRewardsService(
	accounts AccountStore,
	ledger LedgerStore,
	eng *engine.Engine,
	locks *lock.AccountLock,
	admin notify.AdminNotifier,
	users notify.UserNotifier,
) *RewardsService {
	return &RewardsService{
		accounts: accounts,
		ledger:   ledger,
		eng:      eng,
		locks:    locks,
		admin:    admin,
		users:    users,
		now:      time.Now,
	}
}

// EnsureAccount retrieves the caller's account, lazily creating it on first
// contact with a fresh unique referral code and lowest-tier defaults.
// Returns the account and whether it was newly created.
func (s *RewardsService) EnsureAccount(ctx context.Context, telegramID int64, ident Identity) (*model.Account, bool, error) {
	s.locks.Lock(telegramID)
	defer s.locks.Unlock(telegramID)

	acc, err := s.accounts.GetByID(ctx, telegramID)
	if err == nil {
		if ident.Username != "" && acc.Username != ident.Username {
			if err := s.accounts.UpdateUsername(ctx, telegramID, ident.Username, ident.FirstName, ident.LastName); err != nil {
				log.Warn().Err(err).Int64("account_id", telegramID).Msg("Failed to refresh username")
			} else {
				acc.Username = ident.Username
				acc.FirstName = ident.FirstName
				acc.LastName = ident.LastName
			}
		}
		return acc, false, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, false, fmt.Errorf("failed to ensure account: %w", err)
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		fresh := &model.Account{
			TelegramID:    telegramID,
			Username:      ident.Username,
			FirstName:     ident.FirstName,
			LastName:      ident.LastName,
			ReferralCode:  generateReferralCode(),
			SocialDollars: decimal.Zero,
		}
		s.eng.InitAccount(fresh, s.now())

		created, err := s.accounts.Create(ctx, fresh)
		if err == nil {
			return created, true, nil
		}
		if errors.Is(err, repository.ErrDuplicateReferralCode) {
			continue
		}
		// Another request may have created the account concurrently.
		if existing, getErr := s.accounts.GetByID(ctx, telegramID); getErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create account: %w", err)
	}
	return nil, false, fmt.Errorf("failed to create account: referral code collisions exhausted")
}

// GetAccount retrieves an account by id.
func (s *RewardsService) GetAccount(ctx context.Context, telegramID int64) (*model.Account, error) {
	acc, err := s.accounts.GetByID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// ApplyTask evaluates and applies a task completion for the account.
// Business-rule rejections come back as *engine.RejectionError.
func (s *RewardsService) ApplyTask(ctx context.Context, telegramID int64, kind model.TaskKind, platform model.SocialPlatform) (*TaskOutcome, error) {
	var result engine.TaskResult
	acc, err := s.withAccountUpdate(ctx, telegramID, func(acc *model.Account) error {
		var applyErr error
		result, applyErr = s.eng.ApplyTask(acc, kind, platform, s.now())
		return applyErr
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, telegramID, result.Points, result.Dollars, model.EntryTypeForTask(kind), taskDescription(kind, platform))

	return &TaskOutcome{Points: result.Points, Dollars: result.Dollars, Account: acc}, nil
}

// RedeemBonus evaluates and applies a bonus code redemption.
func (s *RewardsService) RedeemBonus(ctx context.Context, telegramID int64, code string) (*BonusOutcome, error) {
	var result engine.BonusResult
	acc, err := s.withAccountUpdate(ctx, telegramID, func(acc *model.Account) error {
		var redeemErr error
		result, redeemErr = s.eng.RedeemBonus(acc, code, s.now())
		return redeemErr
	})
	if err != nil {
		return nil, err
	}

	desc := "bonus code redeemed"
	s.record(ctx, telegramID, result.Points, result.Dollars, model.EntryTypeBonusCode, &desc)

	return &BonusOutcome{Points: result.Points, Dollars: result.Dollars, Account: acc}, nil
}

// UpdateWallet sets the account's payout destination.
func (s *RewardsService) UpdateWallet(ctx context.Context, telegramID int64, walletAddress string) (*model.Account, error) {
	return s.withAccountUpdate(ctx, telegramID, func(acc *model.Account) error {
		acc.WalletAddress = strings.TrimSpace(walletAddress)
		return nil
	})
}

// ProcessReferral attributes a newly created account to the owner of the
// given referral code and credits the referrer. Idempotent: an account that
// already has a referrer is left untouched and no error is returned.
// Self-referral is likewise a silent no-op.
func (s *RewardsService) ProcessReferral(ctx context.Context, newAccountID int64, referralCode string) error {
	referee, err := s.accounts.GetByID(ctx, newAccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to get referee: %w", err)
	}
	if referee.ReferrerID != nil {
		return nil
	}

	referrer, err := s.accounts.GetByReferralCode(ctx, strings.TrimSpace(referralCode))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to resolve referral code: %w", err)
	}
	if referrer.TelegramID == newAccountID {
		return nil
	}

	var credited int64
	var applied bool
	err = s.locks.WithPairLock(newAccountID, referrer.TelegramID, func() error {
		for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
			// Re-read both sides under the lock so attribution state and
			// versions are current.
			freshReferee, err := s.accounts.GetByID(ctx, newAccountID)
			if err != nil {
				return fmt.Errorf("failed to get referee: %w", err)
			}
			freshReferrer, err := s.accounts.GetByID(ctx, referrer.TelegramID)
			if err != nil {
				return fmt.Errorf("failed to get referrer: %w", err)
			}

			credited, applied = s.eng.AttributeReferral(freshReferee, freshReferrer)
			if !applied {
				return nil
			}

			if _, err := s.accounts.Update(ctx, freshReferee); err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					continue
				}
				return fmt.Errorf("failed to update referee: %w", err)
			}

			persisted, err := s.persistReferrerCredit(ctx, freshReferrer, credited)
			if err != nil {
				return err
			}
			credited = persisted
			return nil
		}
		return ErrConflict
	})
	if err != nil {
		return err
	}

	if applied {
		desc := fmt.Sprintf("referral of user %d", newAccountID)
		s.record(ctx, referrer.TelegramID, credited, decimal.Zero, model.EntryTypeReferral, &desc)
		s.notifyReferrer(ctx, referrer.TelegramID, credited)
	}
	return nil
}

// persistReferrerCredit persists the referrer side of an attribution,
// retrying on version conflicts by re-applying the credit to a fresh read.
// The referee link has already landed at this point, so the credit must not
// be dropped on a lost race. Returns the credited amount actually persisted.
func (s *RewardsService) persistReferrerCredit(ctx context.Context, referrer *model.Account, firstCredit int64) (int64, error) {
	current := referrer
	credited := firstCredit
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if _, err := s.accounts.Update(ctx, current); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				fresh, getErr := s.accounts.GetByID(ctx, referrer.TelegramID)
				if getErr != nil {
					return 0, fmt.Errorf("failed to re-read referrer: %w", getErr)
				}
				credited = s.eng.CreditReferral(fresh)
				current = fresh
				continue
			}
			return 0, fmt.Errorf("failed to update referrer: %w", err)
		}
		return credited, nil
	}
	return 0, ErrConflict
}

// RequestWithdrawal validates the payout request, zeroes the balances and
// notifies the admin. Notification delivery failure is logged and never
// rolls the accounting back.
func (s *RewardsService) RequestWithdrawal(ctx context.Context, telegramID int64) (*WithdrawalOutcome, error) {
	var amount decimal.Decimal
	var wallet string
	var points int64
	var dollars decimal.Decimal
	acc, err := s.withAccountUpdate(ctx, telegramID, func(acc *model.Account) error {
		points = acc.Points
		dollars = acc.SocialDollars
		var withdrawErr error
		amount, withdrawErr = s.eng.Withdraw(acc)
		wallet = acc.WalletAddress
		return withdrawErr
	})
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("withdrawal request to %s", wallet)
	s.record(ctx, telegramID, -points, dollars.Neg(), model.EntryTypeWithdrawal, &desc)

	text := fmt.Sprintf(
		"New withdrawal request\n\nUser: %s\nID: %d\nAmount: $%s\nWallet: %s\nReferral code: %s",
		acc.DisplayName(), acc.TelegramID, amount.StringFixed(2), wallet, acc.ReferralCode,
	)
	if notifyErr := s.admin.NotifyAdmin(ctx, text); notifyErr != nil {
		log.Error().Err(notifyErr).Int64("account_id", telegramID).Msg("Failed to deliver withdrawal notification")
	}

	return &WithdrawalOutcome{Amount: amount, WalletAddress: wallet}, nil
}

// ContactAdmin forwards a user message to the admin chat. Only registered
// accounts may relay; unknown senders get ErrAccountNotFound.
func (s *RewardsService) ContactAdmin(ctx context.Context, telegramID int64, message string) error {
	exists, err := s.accounts.Exists(ctx, telegramID)
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	if !exists {
		return ErrAccountNotFound
	}

	text := fmt.Sprintf("New message from user %d:\n\n%s", telegramID, message)
	if err := s.admin.NotifyAdmin(ctx, text); err != nil {
		log.Error().Err(err).Int64("account_id", telegramID).Msg("Failed to forward message to admin")
		return err
	}
	return nil
}

// History retrieves the account's most recent ledger entries, optionally
// filtered to a single entry type. An empty entryType returns everything.
func (s *RewardsService) History(ctx context.Context, telegramID int64, entryType string, limit int) ([]*model.LedgerEntry, error) {
	if entryType != "" {
		return s.ledger.GetByAccountIDAndType(ctx, telegramID, entryType, limit)
	}
	return s.ledger.GetByAccountID(ctx, telegramID, limit)
}

// TopReferrers retrieves the referral leaderboard.
func (s *RewardsService) TopReferrers(ctx context.Context, limit int) ([]*model.ReferralRank, error) {
	return s.accounts.TopReferrers(ctx, limit)
}

// TopByPoints retrieves the point balance leaderboard.
func (s *RewardsService) TopByPoints(ctx context.Context, limit int) ([]*model.Account, error) {
	return s.accounts.TopByPoints(ctx, limit)
}

// WithdrawableBalance computes the account's current payout balance.
func (s *RewardsService) WithdrawableBalance(acc *model.Account) decimal.Decimal {
	return s.eng.WithdrawableBalance(acc)
}

// Engine exposes the accounting engine for read-only queries such as tier
// and threshold lookups.
func (s *RewardsService) Engine() *engine.Engine {
	return s.eng
}

// withAccountUpdate runs a mutation against the account under its lock,
// retrying the read-modify-write on version conflicts up to the bounded
// attempt count. Rejections from fn abort without persisting. Honors ctx
// cancellation while waiting for the lock; a lock acquisition timeout
// surfaces as ErrConflict.
func (s *RewardsService) withAccountUpdate(ctx context.Context, telegramID int64, fn func(acc *model.Account) error) (*model.Account, error) {
	var updated *model.Account
	err := s.locks.WithLockContext(ctx, telegramID, lockAcquireTimeout, func() error {
		for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
			acc, err := s.accounts.GetByID(ctx, telegramID)
			if err != nil {
				if errors.Is(err, repository.ErrAccountNotFound) {
					return ErrAccountNotFound
				}
				return fmt.Errorf("failed to get account: %w", err)
			}

			if err := fn(acc); err != nil {
				return err
			}

			result, err := s.accounts.Update(ctx, acc)
			if err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					continue
				}
				return fmt.Errorf("failed to update account: %w", err)
			}
			updated = result
			return nil
		}
		return ErrConflict
	})
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return updated, nil
}

// record writes a ledger entry, best-effort. The balance change has already
// been persisted; history gaps are logged, not surfaced.
func (s *RewardsService) record(ctx context.Context, accountID int64, points int64, dollars decimal.Decimal, entryType string, description *string) {
	if points == 0 && dollars.IsZero() {
		return
	}
	if _, err := s.ledger.Create(ctx, accountID, points, dollars, entryType, description); err != nil {
		log.Warn().Err(err).Int64("account_id", accountID).Str("type", entryType).Msg("Failed to record ledger entry")
	}
}

// notifyReferrer tells the referrer about the credit, best-effort.
func (s *RewardsService) notifyReferrer(ctx context.Context, referrerID int64, credited int64) {
	if s.users == nil {
		return
	}
	text := fmt.Sprintf("You got +%d points! Someone joined using your referral link.", credited)
	if err := s.users.NotifyUser(ctx, referrerID, text); err != nil {
		log.Warn().Err(err).Int64("account_id", referrerID).Msg("Failed to notify referrer")
	}
}

func taskDescription(kind model.TaskKind, platform model.SocialPlatform) *string {
	var desc string
	if kind == model.TaskSocialClaim {
		desc = fmt.Sprintf("social task: %s", platform)
	} else {
		desc = strings.ReplaceAll(string(kind), "_", " ")
	}
	return &desc
}

// generateReferralCode produces a short uppercase code. Uniqueness is
// enforced by the database; collisions regenerate.
func generateReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}
