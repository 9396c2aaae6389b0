package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/salonbook/billing-engine/internal/models"
)

const subscriptionColumns = `id, account_id, kind, status, start_date, end_date,
	price, daily_rate, payment_period, auto_renewal, is_active, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var item models.Subscription
	err := row.Scan(&item.ID, &item.AccountID, &item.Kind, &item.Status,
		&item.StartDate, &item.EndDate, &item.Price, &item.DailyRate,
		&item.PaymentPeriod, &item.AutoRenewal, &item.IsActive, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateSubscription вставляет новую запись подписки и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub *models.Subscription) (int64, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (account_id, kind, status, start_date, end_date,
			      price, daily_rate, payment_period, auto_renewal, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		sub.AccountID, sub.Kind, sub.Status, sub.StartDate, sub.EndDate,
		sub.Price, sub.DailyRate, sub.PaymentPeriod, sub.AutoRenewal, sub.IsActive).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetSubscription возвращает подписку по ID.
func (s *Storage) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	result, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetActiveSubscription возвращает текущую (со статусом ACTIVE) подписку счёта
// заданного вида. Мягко деактивированные подписки тоже возвращаются — их
// статус остаётся ACTIVE, различие видно по полю IsActive.
func (s *Storage) GetActiveSubscription(ctx context.Context, accountID, kind string) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE account_id = $1 AND kind = $2 AND status = $3
			  ORDER BY created_at DESC
			  LIMIT 1`
	result, err := scanSubscription(s.DB.QueryRowContext(ctx, query, accountID, kind, models.SubscriptionStatusActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListActiveByAccount возвращает все активные подписки счёта, участвующие
// в ежедневных списаниях на дату asOf. Используется для подсчёта резерва.
func (s *Storage) ListActiveByAccount(ctx context.Context, accountID string, asOf time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListActiveByAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE account_id = $1
			    AND is_active = true
			    AND start_date <= $2
			    AND end_date > $2`
	return s.querySubscriptions(ctx, op, query, accountID, asOf)
}

// ListChargeable возвращает подписки, подлежащие списанию за дату chargeDate:
// активные и находящиеся внутри оплачиваемого периода.
func (s *Storage) ListChargeable(ctx context.Context, chargeDate time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListChargeable"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE is_active = true
			    AND start_date <= $1
			    AND end_date > $1
			  ORDER BY id`
	return s.querySubscriptions(ctx, op, query, chargeDate)
}

// ListRenewalsDue возвращает подписки, чей период заканчивается в дату date
// и у которых включено автопродление с заданным периодом оплаты.
func (s *Storage) ListRenewalsDue(ctx context.Context, date time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListRenewalsDue"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE status = 'ACTIVE'
			    AND auto_renewal = true
			    AND payment_period IS NOT NULL
			    AND end_date = $1
			  ORDER BY id`
	return s.querySubscriptions(ctx, op, query, date)
}

func (s *Storage) querySubscriptions(ctx context.Context, op, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		item, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ExpireSubscription помечает подписку EXPIRED и выключает её из списаний.
// Используется при апгрейде (старая запись вытесняется новой) и при продлении.
func (s *Storage) ExpireSubscription(ctx context.Context, id int64) (int, error) {
	const op = "storage.ExpireSubscription"
	return s.execSubscriptionUpdate(ctx, op,
		`UPDATE subscriptions SET status = 'EXPIRED', is_active = false WHERE id = $1`, id)
}

// DeactivateSubscription мягко выключает подписку из списаний, не трогая
// статус и даты: владелец видит подписку с реальным сроком и может пополнить
// баланс до следующего ретрай-прохода.
func (s *Storage) DeactivateSubscription(ctx context.Context, id int64) (int, error) {
	const op = "storage.DeactivateSubscription"
	return s.execSubscriptionUpdate(ctx, op,
		`UPDATE subscriptions SET is_active = false WHERE id = $1`, id)
}

// ActivateSubscription возвращает подписку в списания (ретрай после пополнения).
func (s *Storage) ActivateSubscription(ctx context.Context, id int64) (int, error) {
	const op = "storage.ActivateSubscription"
	return s.execSubscriptionUpdate(ctx, op,
		`UPDATE subscriptions SET is_active = true WHERE id = $1`, id)
}

func (s *Storage) execSubscriptionUpdate(ctx context.Context, op, query string, id int64) (int, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
