package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ipfsnut/bookmarks-backend/internal/models"
)

var (
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	ErrEmptyReason   = errors.New("reason must not be empty")
	ErrForbidden     = errors.New("caller may only award tokens to themself")
	ErrLedgerWrite   = errors.New("ledger write failed")
)

// CallerContext identifies who is invoking a ledger operation. System
// callers bypass the self-only authorization check.
type CallerContext struct {
	system bool
	userID string
}

func SystemCaller() CallerContext {
	return CallerContext{system: true}
}

func UserCaller(userID string) CallerContext {
	return CallerContext{userID: userID}
}

func (c CallerContext) IsSystem() bool { return c.system }

// LedgerService owns the per-user token balance and the append-only
// transaction log. All durable state lives in Postgres; correctness under
// concurrent awards relies on the row lock taken on the balance row plus
// the version check on the update.
type LedgerService struct {
	db         *sql.DB
	recentSize int
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:         db,
		recentSize: 10,
	}
}

// Award appends a credit transaction and updates the cached balance inside
// a single database transaction. Both writes commit together or neither
// does. dedupKey, when non-empty, makes the call idempotent: a repeat with
// the same key returns the current balance without crediting again.
func (s *LedgerService) Award(ctx context.Context, caller CallerContext, userID string, amount int64, reason, relatedEntityID, relatedEntityType, dedupKey string) (*models.TokenBalance, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ErrEmptyReason
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidAmount)
	}
	if !caller.system && caller.userID != userID {
		return nil, ErrForbidden
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	defer tx.Rollback()

	if dedupKey != "" {
		var existingID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM token_transactions WHERE dedup_key = $1`, dedupKey).Scan(&existingID)
		if err == nil {
			// Already credited under this key; report the current balance.
			balance, err := s.readBalance(ctx, tx, userID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
			}
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
			}
			return balance, nil
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
		}
	}

	if err := s.appendTransaction(ctx, tx, userID, amount, reason, relatedEntityID, relatedEntityType, dedupKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	balance, err := s.creditBalance(ctx, tx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	return balance, nil
}

// GetBalance returns the cached balance plus the most recent transactions,
// newest first. A user with no balance row is a valid zero-balance state,
// not an error.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (*models.BalanceSummary, error) {
	summary := &models.BalanceSummary{Transactions: []models.TokenTransaction{}}

	err := s.db.QueryRowContext(ctx,
		`SELECT amount FROM token_balances WHERE user_id = $1`, userID).Scan(&summary.Balance)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, type, reason,
		       COALESCE(related_entity_id, ''), COALESCE(related_entity_type, ''), created_at
		FROM token_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, s.recentSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t models.TokenTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Reason,
			&t.RelatedEntityID, &t.RelatedEntityType, &t.CreatedAt); err != nil {
			return nil, err
		}
		summary.Transactions = append(summary.Transactions, t)
	}

	return summary, rows.Err()
}

func (s *LedgerService) appendTransaction(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason, relatedEntityID, relatedEntityType, dedupKey string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_transactions (id, user_id, amount, type, reason, related_entity_id, related_entity_type, dedup_key, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9)`,
		uuid.NewString(), userID, amount, models.TransactionTypeCredit,
		reason, relatedEntityID, relatedEntityType, dedupKey, time.Now())
	return err
}

// creditBalance performs the read-modify-write half of an award. The
// SELECT ... FOR UPDATE holds a row lock until commit so concurrent awards
// to the same user serialize instead of losing an update.
func (s *LedgerService) creditBalance(ctx context.Context, tx *sql.Tx, userID string, amount int64) (*models.TokenBalance, error) {
	var balance models.TokenBalance
	err := tx.QueryRowContext(ctx, `
		SELECT user_id, amount, version, updated_at
		FROM token_balances
		WHERE user_id = $1
		FOR UPDATE`, userID).Scan(&balance.UserID, &balance.Amount, &balance.Version, &balance.UpdatedAt)

	if err == sql.ErrNoRows {
		// First award for this user; create the row lazily.
		now := time.Now()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO token_balances (user_id, amount, version, updated_at)
			VALUES ($1, $2, $3, $4)`,
			userID, amount, 1, now)
		if err != nil {
			return nil, err
		}
		return &models.TokenBalance{UserID: userID, Amount: amount, Version: 1, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}

	newAmount := balance.Amount + amount
	result, err := tx.ExecContext(ctx, `
		UPDATE token_balances
		SET amount = $1, version = version + 1, updated_at = $2
		WHERE user_id = $3 AND version = $4`,
		newAmount, time.Now(), userID, balance.Version)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("optimistic lock failed for user %s", userID)
	}

	balance.Amount = newAmount
	balance.Version++
	balance.UpdatedAt = time.Now()
	return &balance, nil
}

func (s *LedgerService) readBalance(ctx context.Context, tx *sql.Tx, userID string) (*models.TokenBalance, error) {
	var balance models.TokenBalance
	err := tx.QueryRowContext(ctx, `
		SELECT user_id, amount, version, updated_at
		FROM token_balances
		WHERE user_id = $1`, userID).Scan(&balance.UserID, &balance.Amount, &balance.Version, &balance.UpdatedAt)
	if err == sql.ErrNoRows {
		return &models.TokenBalance{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}
