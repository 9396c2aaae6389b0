package repository

import (
	"context"
	"fmt"

	"github.com/salonbook/billing-engine/internal/models"
)

// ListLedgerEntries возвращает записи журнала операций счёта, новые первыми,
// с пагинацией.
func (s *Storage) ListLedgerEntries(ctx context.Context, accountID string, limit, offset int) ([]*models.LedgerEntry, error) {
	const op = "storage.ListLedgerEntries"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, amount, kind, description, related_subscription_id,
			      balance_before, balance_after, created_at
			  FROM ledger_entries
			  WHERE account_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.LedgerEntry
	for rows.Next() {
		var item models.LedgerEntry
		if err := rows.Scan(&item.ID, &item.AccountID, &item.Amount, &item.Kind,
			&item.Description, &item.RelatedSubscriptionID,
			&item.BalanceBefore, &item.BalanceAfter, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetLastLedgerEntry возвращает последнюю запись журнала по счёту.
func (s *Storage) GetLastLedgerEntry(ctx context.Context, accountID string) (*models.LedgerEntry, error) {
	const op = "storage.GetLastLedgerEntry"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, amount, kind, description, related_subscription_id,
			      balance_before, balance_after, created_at
			  FROM ledger_entries
			  WHERE account_id = $1
			  ORDER BY created_at DESC
			  LIMIT 1`
	var item models.LedgerEntry
	err := s.DB.QueryRowContext(ctx, query, accountID).Scan(
		&item.ID, &item.AccountID, &item.Amount, &item.Kind,
		&item.Description, &item.RelatedSubscriptionID,
		&item.BalanceBefore, &item.BalanceAfter, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}
