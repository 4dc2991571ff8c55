package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"telegram-rewards-bot/internal/model"
)

// LedgerRepository handles balance-change history persistence.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Create records a single balance change. Points and dollars may both be
// zero-or-positive credits or, for withdrawals, negative settlements.
func (r *LedgerRepository) Create(ctx context.Context, accountID int64, points int64, dollars decimal.Decimal, entryType string, description *string) (*model.LedgerEntry, error) {
	const query = `
		INSERT INTO ledger_entries (account_id, points, dollars, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, account_id, points, dollars, type, description, created_at
	`

	var entry model.LedgerEntry
	err := r.pool.QueryRow(ctx, query, accountID, points, dollars, entryType, description).Scan(
		&entry.ID,
		&entry.AccountID,
		&entry.Points,
		&entry.Dollars,
		&entry.Type,
		&entry.Description,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return &entry, nil
}

// GetByAccountID retrieves an account's entries, newest first.
func (r *LedgerRepository) GetByAccountID(ctx context.Context, accountID int64, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, account_id, points, dollars, type, description, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var entry model.LedgerEntry
		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.Points,
			&entry.Dollars,
			&entry.Type,
			&entry.Description,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// GetByAccountIDAndType retrieves entries of one type, newest first.
func (r *LedgerRepository) GetByAccountIDAndType(ctx context.Context, accountID int64, entryType string, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, account_id, points, dollars, type, description, created_at
		FROM ledger_entries
		WHERE account_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, accountID, entryType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var entry model.LedgerEntry
		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.Points,
			&entry.Dollars,
			&entry.Type,
			&entry.Description,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}
