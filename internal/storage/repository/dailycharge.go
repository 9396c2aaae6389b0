package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/salonbook/billing-engine/internal/models"
)

// GetDailyCharge возвращает запись списания за пару (подписка, дата)
// или ErrChargeNotFound.
func (s *Storage) GetDailyCharge(ctx context.Context, subscriptionID int64, date time.Time) (*models.DailyCharge, error) {
	const op = "storage.GetDailyCharge"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, subscription_id, charge_date, amount, balance_before, balance_after,
			      status, created_at
			  FROM daily_charges
			  WHERE subscription_id = $1 AND charge_date = $2`
	var item models.DailyCharge
	err := s.DB.QueryRowContext(ctx, query, subscriptionID, date).Scan(
		&item.ID, &item.SubscriptionID, &item.ChargeDate, &item.Amount,
		&item.BalanceBefore, &item.BalanceAfter, &item.Status, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrChargeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// ChargeDaily выполняет одно ежедневное списание как единую транзакцию:
// блокировка строки баланса, вставка записи daily_charges под уникальным
// индексом (subscription_id, charge_date), затем либо уменьшение баланса
// с записью журнала, либо мягкая деактивация подписки при нехватке средств.
//
// Проигранная гонка за уникальный индекс возвращает ErrDuplicateCharge:
// повторная попытка после сбоя или конкурентный воркер обнаруживаются здесь,
// и деньги не списываются второй раз.
func (s *Storage) ChargeDaily(ctx context.Context, sub *models.Subscription, date time.Time, currency string) (*models.DailyCharge, error) {
	const op = "storage.ChargeDaily"
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

	before, err := lockBalanceTx(ctx, tx, sub.AccountID, currency)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	charge := models.DailyCharge{
		SubscriptionID: sub.ID,
		ChargeDate:     date,
		Amount:         sub.DailyRate,
		BalanceBefore:  before,
	}
	if before >= sub.DailyRate {
		charge.Status = models.ChargeStatusSuccess
		charge.BalanceAfter = before - sub.DailyRate
	} else {
		charge.Status = models.ChargeStatusFailed
		charge.BalanceAfter = before
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO daily_charges
		     (subscription_id, charge_date, amount, balance_before, balance_after, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (subscription_id, charge_date) DO NOTHING
		 RETURNING id, created_at`,
		charge.SubscriptionID, charge.ChargeDate, charge.Amount,
		charge.BalanceBefore, charge.BalanceAfter, charge.Status).
		Scan(&charge.ID, &charge.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrDuplicateCharge)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if charge.Status == models.ChargeStatusSuccess {
		_, err = tx.ExecContext(ctx,
			`UPDATE balances SET amount = $1, updated_at = now() WHERE account_id = $2`,
			charge.BalanceAfter, sub.AccountID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		subID := sub.ID
		entry := &models.LedgerEntry{
			ID:                    uuid.New().String(),
			AccountID:             sub.AccountID,
			Amount:                -sub.DailyRate,
			Kind:                  models.LedgerKindDailyCharge,
			Description:           "daily subscription charge",
			RelatedSubscriptionID: &subID,
			BalanceBefore:         before,
			BalanceAfter:          charge.BalanceAfter,
		}
		if err = insertLedgerEntryTx(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE subscriptions SET is_active = false WHERE id = $1`, sub.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &charge, nil
}

// ListFailedCharges возвращает FAILED-списания за дату для ретрай-прохода.
func (s *Storage) ListFailedCharges(ctx context.Context, date time.Time) ([]*models.DailyCharge, error) {
	const op = "storage.ListFailedCharges"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, subscription_id, charge_date, amount, balance_before, balance_after,
			      status, created_at
			  FROM daily_charges
			  WHERE charge_date = $1 AND status = 'FAILED'
			  ORDER BY subscription_id`
	rows, err := s.DB.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.DailyCharge
	for rows.Next() {
		var item models.DailyCharge
		if err := rows.Scan(&item.ID, &item.SubscriptionID, &item.ChargeDate, &item.Amount,
			&item.BalanceBefore, &item.BalanceAfter, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteFailedCharge удаляет FAILED-маркер за дату, освобождая пару
// (подписка, дата) для повторной попытки. SUCCESS-записи не удаляются никогда.
func (s *Storage) DeleteFailedCharge(ctx context.Context, subscriptionID int64, date time.Time) (int, error) {
	const op = "storage.DeleteFailedCharge"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`DELETE FROM daily_charges
		 WHERE subscription_id = $1 AND charge_date = $2 AND status = 'FAILED'`,
		subscriptionID, date)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
