package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/salonbook/billing-engine/internal/models"
)

// lockBalanceTx лениво создает нулевой баланс счёта и берёт блокировку строки
// на время транзакции. Все мутации по счёту сериализуются на этой блокировке.
func lockBalanceTx(ctx context.Context, tx *sql.Tx, accountID, currency string) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO balances (account_id, amount, currency, updated_at)
		 VALUES ($1, 0, $2, now())
		 ON CONFLICT (account_id) DO NOTHING`,
		accountID, currency)
	if err != nil {
		return 0, err
	}

	var amount int64
	err = tx.QueryRowContext(ctx,
		`SELECT amount FROM balances WHERE account_id = $1 FOR UPDATE`,
		accountID).Scan(&amount)
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func insertLedgerEntryTx(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry) error {
	return tx.QueryRowContext(ctx,
		`INSERT INTO ledger_entries
		     (id, account_id, amount, kind, description, related_subscription_id,
		      balance_before, balance_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		entry.ID, entry.AccountID, entry.Amount, entry.Kind, entry.Description,
		entry.RelatedSubscriptionID, entry.BalanceBefore, entry.BalanceAfter).
		Scan(&entry.CreatedAt)
}

// GetOrCreateBalance возвращает баланс счёта, создавая нулевую запись при
// первом обращении.
func (s *Storage) GetOrCreateBalance(ctx context.Context, accountID, currency string) (*models.Balance, error) {
	const op = "storage.GetOrCreateBalance"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO balances (account_id, amount, currency, updated_at)
		 VALUES ($1, 0, $2, now())
		 ON CONFLICT (account_id) DO NOTHING`,
		accountID, currency)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result models.Balance
	err = s.DB.QueryRowContext(ctx,
		`SELECT account_id, amount, currency, updated_at FROM balances WHERE account_id = $1`,
		accountID).Scan(&result.AccountID, &result.Amount, &result.Currency, &result.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// Deposit атомарно увеличивает баланс счёта и пишет запись журнала
// в той же транзакции. Верхнего предела у пополнения нет.
func (s *Storage) Deposit(ctx context.Context, accountID string, amount int64, currency, description string) (*models.LedgerEntry, error) {
	const op = "storage.Deposit"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	before, err := lockBalanceTx(ctx, tx, accountID, currency)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	after := before + amount

	_, err = tx.ExecContext(ctx,
		`UPDATE balances SET amount = $1, updated_at = now() WHERE account_id = $2`,
		after, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry := &models.LedgerEntry{
		ID:            uuid.New().String(),
		AccountID:     accountID,
		Amount:        amount,
		Kind:          models.LedgerKindDeposit,
		Description:   description,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	if err = insertLedgerEntryTx(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entry, nil
}

// Withdraw атомарно списывает средства со счёта: проверка достаточности и
// уменьшение выполняются под одной блокировкой строки. При нехватке средств
// возвращает InsufficientFundsError, баланс не меняется и запись журнала
// не создаётся.
func (s *Storage) Withdraw(ctx context.Context, accountID string, amount int64, currency, kind, description string, relatedSubscriptionID *int64) (*models.LedgerEntry, error) {
	const op = "storage.Withdraw"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	before, err := lockBalanceTx(ctx, tx, accountID, currency)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if before < amount {
		return nil, &InsufficientFundsError{
			AccountID: accountID,
			Requested: amount,
			Available: before,
		}
	}
	after := before - amount

	_, err = tx.ExecContext(ctx,
		`UPDATE balances SET amount = $1, updated_at = now() WHERE account_id = $2`,
		after, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry := &models.LedgerEntry{
		ID:                    uuid.New().String(),
		AccountID:             accountID,
		Amount:                -amount,
		Kind:                  kind,
		Description:           description,
		RelatedSubscriptionID: relatedSubscriptionID,
		BalanceBefore:         before,
		BalanceAfter:          after,
	}
	if err = insertLedgerEntryTx(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entry, nil
}
