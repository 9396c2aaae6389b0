// Package services реализует расчёт резервов по активным подпискам.
// Резерв — производная величина: сумма дневных ставок на оставшийся
// горизонт каждой активной подписки. Он нигде не хранится как деньги,
// а лишь ограничивает доступный остаток и кешируется для чтения.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/salonbook/billing-engine/internal/lib/billing"
	"github.com/salonbook/billing-engine/internal/models"
	"github.com/salonbook/billing-engine/internal/storage/repository"
)

// ReservationRepository определяет методы хранилища для расчёта резерва.
type ReservationRepository interface {
	GetOrCreateBalance(ctx context.Context, accountID, currency string) (*models.Balance, error)
	// ListActiveByAccount возвращает активные подписки счёта на дату asOf.
	ListActiveByAccount(ctx context.Context, accountID string, asOf time.Time) ([]*models.Subscription, error)
}

// ReserveCache кеширует рассчитанный резерв по счёту.
type ReserveCache interface {
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// ReservationService вычисляет резервы и доступный остаток счёта.
type ReservationService struct {
	repo     ReservationRepository
	cache    ReserveCache
	currency string
	// maxDays ограничивает горизонт резервирования; 0 — без ограничения.
	maxDays int
	log     *slog.Logger
}

// NewReservationService создает новый экземпляр ReservationService.
func NewReservationService(repo ReservationRepository, cache ReserveCache, currency string, maxDays int, log *slog.Logger) *ReservationService {
	return &ReservationService{
		repo:     repo,
		cache:    cache,
		currency: currency,
		maxDays:  maxDays,
		log:      log,
	}
}

func reserveCacheKey(accountID string) string {
	return "reserve:" + accountID
}

// Reserved возвращает суммарный резерв счёта на дату asOf.
func (s *ReservationService) Reserved(ctx context.Context, accountID string, asOf time.Time) (int64, error) {
	subs, err := s.repo.ListActiveByAccount(ctx, accountID, asOf)
	if err != nil {
		return 0, fmt.Errorf("list active subscriptions: %w", err)
	}

	var total int64
	for _, sub := range subs {
		total += billing.ReservationAmount(sub, asOf, s.maxDays)
	}
	return total, nil
}

// AvailableBalance возвращает баланс, резерв и доступный остаток счёта.
// Доступный остаток не опускается ниже нуля.
func (s *ReservationService) AvailableBalance(ctx context.Context, accountID string, asOf time.Time) (balance, reserved, available int64, err error) {
	bal, err := s.repo.GetOrCreateBalance(ctx, accountID, s.currency)
	if err != nil {
		return 0, 0, 0, err
	}

	reserved, err = s.Reserved(ctx, accountID, asOf)
	if err != nil {
		return 0, 0, 0, err
	}

	available = bal.Amount - reserved
	if available < 0 {
		available = 0
	}
	return bal.Amount, reserved, available, nil
}

// ReserveFullPrice проверяет, что доступного остатка хватает на полную
// стоимость подписки sub. Деньги не двигаются, проверка отражает правило
// приёма новой подписки.
func (s *ReservationService) ReserveFullPrice(ctx context.Context, sub *models.Subscription, asOf time.Time) error {
	_, _, available, err := s.AvailableBalance(ctx, sub.AccountID, asOf)
	if err != nil {
		return err
	}

	if available < sub.Price {
		return &repository.InsufficientFundsError{
			AccountID: sub.AccountID,
			Requested: sub.Price,
			Available: available,
		}
	}
	return nil
}

// EnsureReserve пересчитывает резерв счёта и обновляет кеш. Вызывается
// после каждого изменения состава подписок или успешного списания.
func (s *ReservationService) EnsureReserve(ctx context.Context, accountID string, asOf time.Time) (int64, error) {
	reserved, err := s.Reserved(ctx, accountID, asOf)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(reserveCacheKey(accountID), reserved, 10*time.Minute); err != nil {
			s.log.Warn("failed to cache reserve", slog.String("account_id", accountID), slog.Any("error", err))
		}
	}
	return reserved, nil
}
