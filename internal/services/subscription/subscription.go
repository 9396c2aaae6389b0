// Package services реализует жизненный цикл подписки: покупку с проверкой
// резерва, апгрейд с пропорциональной доплатой и производные модели чтения
// (статус, предупреждение о низком балансе).
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/salonbook/billing-engine/internal/lib/billing"
	"github.com/salonbook/billing-engine/internal/lib/money"
	"github.com/salonbook/billing-engine/internal/models"
	"github.com/salonbook/billing-engine/internal/storage/repository"
)

// SubscriptionRepository определяет методы хранилища подписок.
type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub *models.Subscription) (int64, error)
	GetActiveSubscription(ctx context.Context, accountID, kind string) (*models.Subscription, error)
	ExpireSubscription(ctx context.Context, id int64) (int, error)
	Withdraw(ctx context.Context, accountID string, amount int64, currency, kind, description string, relatedSubscriptionID *int64) (*models.LedgerEntry, error)
}

// Reserver проверяет достаточность остатка и считает доступный баланс.
type Reserver interface {
	ReserveFullPrice(ctx context.Context, sub *models.Subscription, asOf time.Time) error
	AvailableBalance(ctx context.Context, accountID string, asOf time.Time) (balance, reserved, available int64, err error)
	EnsureReserve(ctx context.Context, accountID string, asOf time.Time) (int64, error)
}

// StatusCache кеширует модели чтения статуса подписки.
type StatusCache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// SubscriptionService реализует операции над подписками.
type SubscriptionService struct {
	repo        SubscriptionRepository
	reserver    Reserver
	cache       StatusCache
	currency    string
	warningDays int
	log         *slog.Logger
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, reserver Reserver, cache StatusCache,
	currency string, warningDays int, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:        repo,
		reserver:    reserver,
		cache:       cache,
		currency:    currency,
		warningDays: warningDays,
		log:         log,
	}
}

func statusCacheKey(accountID, kind string) string {
	return "substatus:" + accountID + ":" + kind
}

// Purchase создает подписку для счёта accountID. Подписка принимается,
// только если доступный остаток покрывает полную стоимость периода; деньги
// при этом не списываются — их заберут ежедневные списания.
func (s *SubscriptionService) Purchase(ctx context.Context, accountID string, req models.DummyPurchase) (*models.Subscription, error) {
	const op = "services.subscription.Purchase"

	rate := billing.DailyRate(req.Price, req.PeriodDays)
	if rate <= 0 {
		return nil, fmt.Errorf("%s: price %d is below one minor unit per day", op, req.Price)
	}

	if _, err := s.repo.GetActiveSubscription(ctx, accountID, req.Kind); err == nil {
		return nil, fmt.Errorf("%s: account already has an active %s subscription", op, req.Kind)
	} else if !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	today := truncateToDay(now)
	sub := &models.Subscription{
		AccountID:   accountID,
		Kind:        req.Kind,
		Status:      models.SubscriptionStatusActive,
		StartDate:   today,
		EndDate:     today.AddDate(0, 0, req.PeriodDays),
		Price:       req.Price,
		DailyRate:   rate,
		AutoRenewal: req.AutoRenewal,
		IsActive:    true,
	}
	if req.AutoRenewal {
		period := req.PeriodDays
		sub.PaymentPeriod = &period
	}

	if err := s.reserver.ReserveFullPrice(ctx, sub, now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.ID = id

	s.invalidateStatus(accountID, req.Kind)
	if _, err := s.reserver.EnsureReserve(ctx, accountID, now); err != nil {
		s.log.Warn("failed to refresh reserve after purchase",
			slog.String("account_id", accountID), slog.Any("error", err))
	}

	s.log.Info("subscription purchased",
		slog.Int64("id", id),
		slog.String("account_id", accountID),
		slog.String("kind", req.Kind),
		slog.Int64("price", req.Price),
		slog.Int64("daily_rate", rate))
	return sub, nil
}

// Upgrade переводит активную подписку счёта на более дорогой тариф.
// Доплата — разница дневных ставок за оставшийся горизонт, списывается
// сразу. Текущая запись помечается EXPIRED, новая наследует горизонт.
func (s *SubscriptionService) Upgrade(ctx context.Context, accountID string, req models.DummyUpgrade) (*models.Subscription, int64, error) {
	const op = "services.subscription.Upgrade"

	current, err := s.repo.GetActiveSubscription(ctx, accountID, req.Kind)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	newRate := billing.DailyRate(req.NewPrice, req.PeriodDays)
	if newRate <= current.DailyRate {
		return nil, 0, fmt.Errorf("%s: new daily rate %d is not above current %d", op, newRate, current.DailyRate)
	}

	now := time.Now()
	additional := billing.UpgradeCost(current, newRate, now)
	if additional > 0 {
		if _, err := s.repo.Withdraw(ctx, accountID, additional, s.currency,
			models.LedgerKindWithdrawal, "subscription upgrade surcharge", &current.ID); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	if _, err := s.repo.ExpireSubscription(ctx, current.ID); err != nil {
		return nil, additional, fmt.Errorf("%s: %w", op, err)
	}

	today := truncateToDay(now)
	next := &models.Subscription{
		AccountID:     accountID,
		Kind:          req.Kind,
		Status:        models.SubscriptionStatusActive,
		StartDate:     today,
		EndDate:       current.EndDate,
		Price:         newRate * int64(billing.RemainingDays(current, now)),
		DailyRate:     newRate,
		AutoRenewal:   current.AutoRenewal,
		PaymentPeriod: current.PaymentPeriod,
		IsActive:      true,
	}
	if current.AutoRenewal {
		period := req.PeriodDays
		next.PaymentPeriod = &period
	}

	id, err := s.repo.CreateSubscription(ctx, next)
	if err != nil {
		return nil, additional, fmt.Errorf("%s: %w", op, err)
	}
	next.ID = id

	s.invalidateStatus(accountID, req.Kind)
	if _, err := s.reserver.EnsureReserve(ctx, accountID, now); err != nil {
		s.log.Warn("failed to refresh reserve after upgrade",
			slog.String("account_id", accountID), slog.Any("error", err))
	}

	s.log.Info("subscription upgraded",
		slog.Int64("old_id", current.ID),
		slog.Int64("new_id", id),
		slog.String("account_id", accountID),
		slog.Int64("surcharge", additional))
	return next, additional, nil
}

// Status собирает состояние подписки, баланса и резерва для счёта.
// Для счёта без активной подписки возвращается модель с нулевыми ставками.
func (s *SubscriptionService) Status(ctx context.Context, accountID, kind string) (*models.SubscriptionStatusInfo, error) {
	const op = "services.subscription.Status"

	key := statusCacheKey(accountID, kind)
	if s.cache != nil {
		var cached models.SubscriptionStatusInfo
		if found, err := s.cache.Get(key, &cached); err == nil && found {
			return &cached, nil
		}
	}

	now := time.Now()
	balance, reserved, available, err := s.reserver.AvailableBalance(ctx, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	info := &models.SubscriptionStatusInfo{
		Balance:        balance,
		BalanceDisplay: money.Display(balance),
		Available:      available,
		Reserved:       reserved,
	}

	sub, err := s.repo.GetActiveSubscription(ctx, accountID, kind)
	switch {
	case errors.Is(err, repository.ErrSubscriptionNotFound):
		// Подписки нет, возвращаем только денежную часть.
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	default:
		info.IsActive = sub.IsActive
		info.DaysRemaining = billing.RemainingDays(sub, now)
		info.DailyRate = sub.DailyRate
		info.DailyRateDisplay = money.Display(sub.DailyRate)
		info.CanContinue = available >= sub.DailyRate
		info.NextChargeDate = billing.NextChargeDate(sub, now)
	}

	if s.cache != nil {
		if err := s.cache.Set(key, info, time.Minute); err != nil {
			s.log.Warn("failed to cache subscription status",
				slog.String("account_id", accountID), slog.Any("error", err))
		}
	}
	return info, nil
}

// Warning рассчитывает уровень предупреждения о низком балансе: critical —
// доступного остатка не хватает даже на одно списание, warning — хватает
// меньше чем на warningDays дней. Уровни считаются по доступному остатку,
// тем же предикатом, что и CanContinue в статусе.
func (s *SubscriptionService) Warning(ctx context.Context, accountID, kind string) (*models.BalanceWarning, error) {
	const op = "services.subscription.Warning"

	balance, _, available, err := s.reserver.AvailableBalance(ctx, accountID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	warning := &models.BalanceWarning{
		Level:          models.WarningLevelNone,
		Balance:        balance,
		BalanceDisplay: money.Display(balance),
	}

	sub, err := s.repo.GetActiveSubscription(ctx, accountID, kind)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return warning, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	warning.DailyRate = sub.DailyRate
	if sub.DailyRate > 0 {
		daysLeft := int(available / sub.DailyRate)
		warning.DaysLeft = daysLeft
		switch {
		case available < sub.DailyRate:
			warning.Level = models.WarningLevelCritical
		case daysLeft < s.warningDays:
			warning.Level = models.WarningLevelWarning
		}
	}
	return warning, nil
}

func (s *SubscriptionService) invalidateStatus(accountID, kind string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(statusCacheKey(accountID, kind)); err != nil {
		s.log.Warn("failed to invalidate status cache",
			slog.String("account_id", accountID), slog.Any("error", err))
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
