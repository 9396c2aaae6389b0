// Package services реализует обработку ежедневного списания по одной
// подписке. Повторный вызов за ту же дату возвращает результат первой
// попытки без движения средств — защиту от двойного списания обеспечивает
// уникальный ключ (subscription_id, charge_date) в хранилище.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/salonbook/billing-engine/internal/models"
	"github.com/salonbook/billing-engine/internal/storage/repository"
)

// ErrInvalidSubscriptionState возвращается при попытке списания по подписке,
// которая деактивирована или дата списания вне оплаченного периода.
var ErrInvalidSubscriptionState = errors.New("subscription is not chargeable on this date")

// ChargeRepository определяет методы хранилища для обработки списаний.
type ChargeRepository interface {
	GetSubscription(ctx context.Context, subscriptionID int64) (*models.Subscription, error)
	GetDailyCharge(ctx context.Context, subscriptionID int64, date time.Time) (*models.DailyCharge, error)
	// ChargeDaily атомарно выполняет списание за дату: запись daily_charges,
	// обновление баланса и запись журнала — одна транзакция.
	ChargeDaily(ctx context.Context, sub *models.Subscription, date time.Time, currency string) (*models.DailyCharge, error)
}

// Reserver пересчитывает резерв счёта после изменения состояния.
type Reserver interface {
	EnsureReserve(ctx context.Context, accountID string, asOf time.Time) (int64, error)
}

// Result описывает исход обработки списания по подписке.
type Result struct {
	Charge *models.DailyCharge
	// Duplicate — списание за эту дату уже выполнялось, возвращён сохранённый исход.
	Duplicate bool
	// Deactivated — средств не хватило, подписка приостановлена.
	Deactivated bool
}

// ChargeProcessor выполняет идемпотентные ежедневные списания.
type ChargeProcessor struct {
	repo     ChargeRepository
	reserver Reserver
	currency string
	log      *slog.Logger
}

// NewChargeProcessor создает новый экземпляр ChargeProcessor.
func NewChargeProcessor(repo ChargeRepository, reserver Reserver, currency string, log *slog.Logger) *ChargeProcessor {
	return &ChargeProcessor{
		repo:     repo,
		reserver: reserver,
		currency: currency,
		log:      log,
	}
}

// ProcessDailyCharge выполняет списание дневной ставки по подписке за дату
// date. Для уже обработанной даты возвращает сохранённый результат с
// признаком Duplicate. Недостаточный баланс не считается ошибкой вызова:
// фиксируется FAILED-списание и подписка деактивируется.
func (p *ChargeProcessor) ProcessDailyCharge(ctx context.Context, subscriptionID int64, date time.Time) (*Result, error) {
	const op = "services.charge.ProcessDailyCharge"

	date = truncateToDay(date)

	sub, err := p.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Сохранённый исход побеждает любую повторную попытку, в том числе
	// по подписке, которую уже успели деактивировать.
	existing, err := p.repo.GetDailyCharge(ctx, subscriptionID, date)
	if err == nil {
		return &Result{Charge: existing, Duplicate: true}, nil
	}
	if !errors.Is(err, repository.ErrChargeNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !chargeable(sub, date) {
		return nil, fmt.Errorf("%s: subscription %d: %w", op, subscriptionID, ErrInvalidSubscriptionState)
	}

	charge, err := p.repo.ChargeDaily(ctx, sub, date, p.currency)
	if errors.Is(err, repository.ErrDuplicateCharge) {
		// Гонка с параллельным проходом: перечитываем зафиксированный исход.
		existing, rerr := p.repo.GetDailyCharge(ctx, subscriptionID, date)
		if rerr != nil {
			return nil, fmt.Errorf("%s: %w", op, rerr)
		}
		return &Result{Charge: existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &Result{Charge: charge}
	if charge.Status == models.ChargeStatusFailed {
		res.Deactivated = true
		p.log.Warn("daily charge failed, subscription deactivated",
			slog.Int64("subscription_id", subscriptionID),
			slog.String("account_id", sub.AccountID),
			slog.Int64("balance", charge.BalanceBefore),
			slog.Int64("amount", charge.Amount))
	}

	if _, err := p.reserver.EnsureReserve(ctx, sub.AccountID, date); err != nil {
		p.log.Warn("failed to refresh reserve after charge",
			slog.String("account_id", sub.AccountID), slog.Any("error", err))
	}

	return res, nil
}

// chargeable проверяет, что подписка активна и дата входит в оплаченный период.
func chargeable(sub *models.Subscription, date time.Time) bool {
	if !sub.IsActive || sub.Status != models.SubscriptionStatusActive {
		return false
	}
	start := truncateToDay(sub.StartDate)
	end := truncateToDay(sub.EndDate)
	return !date.Before(start) && date.Before(end)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
