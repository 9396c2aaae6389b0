// Package services содержит бизнес-логику работы с балансом счёта:
// ленивое создание, пополнение, списание и история операций.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/salonbook/billing-engine/internal/models"
)

// BalanceRepository определяет методы хранилища для работы с балансом
// и журналом операций.
type BalanceRepository interface {
	// GetOrCreateBalance возвращает баланс счёта, создавая нулевой при первом обращении.
	GetOrCreateBalance(ctx context.Context, accountID, currency string) (*models.Balance, error)
	// Deposit атомарно пополняет баланс и пишет запись журнала.
	Deposit(ctx context.Context, accountID string, amount int64, currency, description string) (*models.LedgerEntry, error)
	// Withdraw атомарно списывает средства; при нехватке возвращает InsufficientFundsError.
	Withdraw(ctx context.Context, accountID string, amount int64, currency, kind, description string, relatedSubscriptionID *int64) (*models.LedgerEntry, error)
	// ListLedgerEntries возвращает записи журнала с пагинацией.
	ListLedgerEntries(ctx context.Context, accountID string, limit, offset int) ([]*models.LedgerEntry, error)
}

// Reserver пересчитывает производный резерв счёта.
type Reserver interface {
	EnsureReserve(ctx context.Context, accountID string, asOf time.Time) (int64, error)
}

// StatusCache инвалидирует кешированные модели чтения статуса подписки.
type StatusCache interface {
	Invalidate(key string) error
}

// BalanceService реализует операции над балансом счёта.
type BalanceService struct {
	repo     BalanceRepository
	reserver Reserver
	cache    StatusCache
	currency string
	log      *slog.Logger
}

// NewBalanceService создает новый экземпляр BalanceService.
// reserver и cache могут быть nil, тогда пополнение не обновляет модели чтения.
func NewBalanceService(repo BalanceRepository, reserver Reserver, cache StatusCache,
	currency string, log *slog.Logger) *BalanceService {
	return &BalanceService{
		repo:     repo,
		reserver: reserver,
		cache:    cache,
		currency: currency,
		log:      log,
	}
}

// GetOrCreate возвращает баланс счёта.
func (s *BalanceService) GetOrCreate(ctx context.Context, accountID string) (*models.Balance, error) {
	return s.repo.GetOrCreateBalance(ctx, accountID, s.currency)
}

// Deposit пополняет баланс счёта. Сумма в минорных единицах, method попадает
// в описание записи журнала. После зачисления пересчитывается резерв
// и сбрасываются кешированные статусы подписок счёта.
func (s *BalanceService) Deposit(ctx context.Context, accountID string, amount int64, method string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive, got %d", amount)
	}

	entry, err := s.repo.Deposit(ctx, accountID, amount, s.currency, "deposit via "+method)
	if err != nil {
		return nil, err
	}

	s.refreshReadModels(ctx, accountID)

	s.log.Info("deposit applied",
		slog.String("account_id", accountID),
		slog.Int64("amount", amount),
		slog.Int64("balance", entry.BalanceAfter))
	return entry, nil
}

func (s *BalanceService) refreshReadModels(ctx context.Context, accountID string) {
	if s.cache != nil {
		for _, kind := range []string{models.SubscriptionKindSalon, models.SubscriptionKindProvider} {
			if err := s.cache.Invalidate("substatus:" + accountID + ":" + kind); err != nil {
				s.log.Warn("failed to invalidate status cache",
					slog.String("account_id", accountID), slog.Any("error", err))
			}
		}
	}
	if s.reserver != nil {
		if _, err := s.reserver.EnsureReserve(ctx, accountID, time.Now()); err != nil {
			s.log.Warn("failed to refresh reserve after deposit",
				slog.String("account_id", accountID), slog.Any("error", err))
		}
	}
}

// Withdraw списывает средства со счёта. Проверка достаточности и списание —
// единая атомарная операция хранилища.
func (s *BalanceService) Withdraw(ctx context.Context, accountID string, amount int64, description string, relatedSubscriptionID *int64) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("withdraw amount must be positive, got %d", amount)
	}

	entry, err := s.repo.Withdraw(ctx, accountID, amount, s.currency,
		models.LedgerKindWithdrawal, description, relatedSubscriptionID)
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal applied",
		slog.String("account_id", accountID),
		slog.Int64("amount", amount),
		slog.Int64("balance", entry.BalanceAfter))
	return entry, nil
}

// History возвращает записи журнала операций счёта, новые первыми.
func (s *BalanceService) History(ctx context.Context, accountID string, limit, offset int) ([]*models.LedgerEntry, error) {
	return s.repo.ListLedgerEntries(ctx, accountID, limit, offset)
}
