// Package services реализует ежедневный биллинговый проход: массовое
// списание по активным подпискам пулом воркеров, повторные попытки по
// неудавшимся списаниям, автопродление подписок и публикацию биллинговых
// событий для отправки уведомлений.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/salonbook/billing-engine/internal/lib/billing"
	"github.com/salonbook/billing-engine/internal/lib/sl"
	"github.com/salonbook/billing-engine/internal/models"
	chargeservice "github.com/salonbook/billing-engine/internal/services/charge"
	"github.com/salonbook/billing-engine/internal/storage/repository"
)

// SchedulerRepository определяет методы хранилища для биллингового прохода.
type SchedulerRepository interface {
	ListChargeable(ctx context.Context, chargeDate time.Time) ([]*models.Subscription, error)
	ListRenewalsDue(ctx context.Context, date time.Time) ([]*models.Subscription, error)
	ListFailedCharges(ctx context.Context, date time.Time) ([]*models.DailyCharge, error)
	DeleteFailedCharge(ctx context.Context, subscriptionID int64, date time.Time) (int, error)
	ActivateSubscription(ctx context.Context, id int64) (int, error)
	ExpireSubscription(ctx context.Context, id int64) (int, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) (int64, error)
	GetSubscription(ctx context.Context, id int64) (*models.Subscription, error)
}

// ChargeProcessor выполняет идемпотентное списание по одной подписке.
type ChargeProcessor interface {
	ProcessDailyCharge(ctx context.Context, subscriptionID int64, date time.Time) (*chargeservice.Result, error)
}

// Reserver проверяет достаточность доступного остатка для новой подписки.
type Reserver interface {
	ReserveFullPrice(ctx context.Context, sub *models.Subscription, asOf time.Time) error
}

// EventPublisher публикует биллинговые события для сервиса уведомлений.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// SchedulerService управляет ежедневным биллинговым циклом.
type SchedulerService struct {
	repo      SchedulerRepository
	processor ChargeProcessor
	reserver  Reserver
	publisher EventPublisher
	log       *slog.Logger

	// runAt — локальное время запуска прохода в формате "15:04".
	runAt        string
	workers      int
	errorBackoff time.Duration
	warningDays  int
}

// NewSchedulerService создает новый экземпляр SchedulerService.
// publisher может быть nil, тогда события не публикуются.
func NewSchedulerService(repo SchedulerRepository, processor ChargeProcessor, reserver Reserver,
	publisher EventPublisher, runAt string, workers int, errorBackoff time.Duration,
	warningDays int, log *slog.Logger) *SchedulerService {
	if workers <= 0 {
		workers = 1
	}
	return &SchedulerService{
		repo:         repo,
		processor:    processor,
		reserver:     reserver,
		publisher:    publisher,
		runAt:        runAt,
		workers:      workers,
		errorBackoff: errorBackoff,
		warningDays:  warningDays,
		log:          log,
	}
}

// RunDailyPass выполняет списания по всем подпискам, подлежащим оплате за
// дату date. Ошибка по одной подписке не прерывает проход: каждая подписка
// обрабатывается независимо, итог собирается в PassSummary.
func (s *SchedulerService) RunDailyPass(ctx context.Context, date time.Time) (*models.PassSummary, error) {
	const op = "services.billingrun.RunDailyPass"

	started := time.Now()
	summary := &models.PassSummary{Date: date}

	subs, err := s.repo.ListChargeable(ctx, date)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", op, err)
	}
	summary.Total = len(subs)
	s.log.Info("starting daily billing pass",
		slog.String("date", date.Format("2006-01-02")),
		slog.Int("subscriptions", len(subs)))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.workers)
	)

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return summary, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(sub *models.Subscription) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := s.processor.ProcessDailyCharge(ctx, sub.ID, date)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("subscription %d: %v", sub.ID, err))
				chargesTotal.WithLabelValues("error").Inc()
				return
			}
			s.recordResult(sub, res, summary)
		}(sub)
	}
	wg.Wait()

	passDuration.Observe(time.Since(started).Seconds())
	s.log.Info("daily billing pass finished",
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("deactivated", summary.Deactivated),
		slog.Int("errors", len(summary.Errors)))
	return summary, nil
}

// recordResult учитывает исход списания в сводке и публикует события.
// Вызывается под мьютексом сводки.
func (s *SchedulerService) recordResult(sub *models.Subscription, res *chargeservice.Result, summary *models.PassSummary) {
	charge := res.Charge
	switch charge.Status {
	case models.ChargeStatusSuccess:
		if !res.Duplicate {
			summary.Succeeded++
			chargesTotal.WithLabelValues("success").Inc()
			s.publishLowBalanceIfNeeded(sub, charge)
		}
	case models.ChargeStatusFailed:
		summary.Failed++
		if res.Deactivated {
			summary.Deactivated++
		}
		if !res.Duplicate {
			chargesTotal.WithLabelValues("failed").Inc()
			s.publishEvent(models.BillingEvent{
				Type:           models.EventChargeFailed,
				AccountID:      sub.AccountID,
				SubscriptionID: sub.ID,
				Amount:         charge.Amount,
				Balance:        charge.BalanceAfter,
				Date:           charge.ChargeDate,
			})
		}
	}
}

// publishLowBalanceIfNeeded публикует предупреждение, когда остатка после
// списания хватает меньше чем на warningDays дней.
func (s *SchedulerService) publishLowBalanceIfNeeded(sub *models.Subscription, charge *models.DailyCharge) {
	if sub.DailyRate <= 0 || s.warningDays <= 0 {
		return
	}
	if charge.BalanceAfter >= sub.DailyRate*int64(s.warningDays) {
		return
	}
	s.publishEvent(models.BillingEvent{
		Type:           models.EventLowBalance,
		AccountID:      sub.AccountID,
		SubscriptionID: sub.ID,
		Amount:         charge.Amount,
		Balance:        charge.BalanceAfter,
		Date:           charge.ChargeDate,
	})
}

// RetryFailedCharges повторяет списания, не прошедшие за дату date.
// Маркер FAILED удаляется, подписка реактивируется и списание выполняется
// заново тем же идемпотентным путём. Новая неудача снова фиксирует FAILED
// и деактивирует подписку.
func (s *SchedulerService) RetryFailedCharges(ctx context.Context, date time.Time) (*models.PassSummary, error) {
	const op = "services.billingrun.RetryFailedCharges"

	summary := &models.PassSummary{Date: date}

	failed, err := s.repo.ListFailedCharges(ctx, date)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", op, err)
	}
	summary.Total = len(failed)
	if len(failed) == 0 {
		return summary, nil
	}
	s.log.Info("retrying failed charges",
		slog.String("date", date.Format("2006-01-02")),
		slog.Int("count", len(failed)))

	for _, charge := range failed {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		deleted, err := s.repo.DeleteFailedCharge(ctx, charge.SubscriptionID, date)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("subscription %d: delete failed charge: %v", charge.SubscriptionID, err))
			continue
		}
		if deleted == 0 {
			// Маркер уже убран параллельным проходом.
			continue
		}
		if _, err := s.repo.ActivateSubscription(ctx, charge.SubscriptionID); err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("subscription %d: reactivate: %v", charge.SubscriptionID, err))
			continue
		}

		res, err := s.processor.ProcessDailyCharge(ctx, charge.SubscriptionID, date)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("subscription %d: %v", charge.SubscriptionID, err))
			continue
		}

		sub, err := s.repo.GetSubscription(ctx, charge.SubscriptionID)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("subscription %d: %v", charge.SubscriptionID, err))
			continue
		}
		s.recordResult(sub, res, summary)
	}

	s.log.Info("retry pass finished",
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed))
	return summary, nil
}

// CheckRenewals продлевает подписки с автопродлением, чей период
// заканчивается в дату date. Текущая подписка помечается EXPIRED, новый
// период создаётся отдельной строкой и первый день сразу списывается.
func (s *SchedulerService) CheckRenewals(ctx context.Context, date time.Time) (*models.PassSummary, error) {
	const op = "services.billingrun.CheckRenewals"

	summary := &models.PassSummary{Date: date}

	due, err := s.repo.ListRenewalsDue(ctx, date)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", op, err)
	}
	summary.Total = len(due)
	if len(due) == 0 {
		return summary, nil
	}
	s.log.Info("processing auto-renewals",
		slog.String("date", date.Format("2006-01-02")),
		slog.Int("count", len(due)))

	for _, old := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := s.renewOne(ctx, old, date); err != nil {
			summary.Failed++
			renewalsTotal.WithLabelValues("failed").Inc()
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("subscription %d: %v", old.ID, err))
			s.publishEvent(models.BillingEvent{
				Type:           models.EventRenewalFailed,
				AccountID:      old.AccountID,
				SubscriptionID: old.ID,
				Amount:         old.Price,
				Date:           date,
			})
			continue
		}
		summary.Succeeded++
		renewalsTotal.WithLabelValues("success").Inc()
	}

	s.log.Info("auto-renewals finished",
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed))
	return summary, nil
}

// renewOne создает подписку на следующий период поверх истекающей.
func (s *SchedulerService) renewOne(ctx context.Context, old *models.Subscription, date time.Time) error {
	if old.PaymentPeriod == nil || *old.PaymentPeriod <= 0 {
		return fmt.Errorf("subscription has no payment period")
	}
	period := *old.PaymentPeriod

	next := &models.Subscription{
		AccountID:     old.AccountID,
		Kind:          old.Kind,
		Status:        models.SubscriptionStatusActive,
		StartDate:     old.EndDate,
		EndDate:       old.EndDate.AddDate(0, 0, period),
		Price:         old.Price,
		DailyRate:     billing.DailyRate(old.Price, period),
		PaymentPeriod: old.PaymentPeriod,
		AutoRenewal:   true,
		IsActive:      true,
	}

	if err := s.reserver.ReserveFullPrice(ctx, next, date); err != nil {
		if repository.IsInsufficientFunds(err) {
			return fmt.Errorf("renewal declined: %w", err)
		}
		return err
	}

	if _, err := s.repo.ExpireSubscription(ctx, old.ID); err != nil {
		return fmt.Errorf("expire current period: %w", err)
	}

	id, err := s.repo.CreateSubscription(ctx, next)
	if err != nil {
		return fmt.Errorf("create next period: %w", err)
	}

	// Первый день нового периода оплачивается сразу, дальше подписку
	// подхватывает обычный ежедневный проход.
	if _, err := s.processor.ProcessDailyCharge(ctx, id, next.StartDate); err != nil {
		return fmt.Errorf("charge first day: %w", err)
	}

	s.publishEvent(models.BillingEvent{
		Type:           models.EventRenewalCompleted,
		AccountID:      old.AccountID,
		SubscriptionID: id,
		Amount:         next.Price,
		Date:           date,
	})
	s.log.Info("subscription renewed",
		slog.Int64("old_id", old.ID),
		slog.Int64("new_id", id),
		slog.String("account_id", old.AccountID))
	return nil
}

// RunFullPass выполняет полный цикл за дату: продления, основной проход,
// повтор неудавшихся списаний.
func (s *SchedulerService) RunFullPass(ctx context.Context, date time.Time) (*models.PassSummary, error) {
	if _, err := s.CheckRenewals(ctx, date); err != nil {
		return nil, err
	}
	summary, err := s.RunDailyPass(ctx, date)
	if err != nil {
		return summary, err
	}
	retry, err := s.RetryFailedCharges(ctx, date)
	if err != nil {
		return summary, err
	}
	// Успешный повтор снимает неудачу, которую основной проход насчитал
	// по FAILED-маркеру. Маркер мог остаться и от предыдущего запуска за
	// эту же дату, поэтому счётчики не уводятся ниже нуля.
	summary.Succeeded += retry.Succeeded
	if retry.Succeeded > 0 {
		summary.Failed = max(0, summary.Failed-retry.Succeeded)
		summary.Deactivated = max(0, summary.Deactivated-retry.Succeeded)
	}
	summary.Errors = append(summary.Errors, retry.Errors...)
	return summary, nil
}

// Run запускает ежедневный цикл: ожидание ближайшего времени runAt,
// полный проход, переход к следующему дню. Ошибка прохода приводит к
// повтору через errorBackoff. Завершается по отмене контекста.
func (s *SchedulerService) Run(ctx context.Context) error {
	for {
		next := s.nextRunTime(time.Now())
		s.log.Info("next billing pass scheduled", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		date := time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())
		// Проход за дату повторяется с паузой, пока не выполнится:
		// идемпотентность списаний делает повтор безопасным.
		for {
			_, err := s.RunFullPass(ctx, date)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error("billing pass failed, will retry", sl.Err(err))

			backoff := time.NewTimer(s.errorBackoff)
			select {
			case <-ctx.Done():
				backoff.Stop()
				return ctx.Err()
			case <-backoff.C:
			}
		}
	}
}

// nextRunTime возвращает ближайший момент запуска после now.
func (s *SchedulerService) nextRunTime(now time.Time) time.Time {
	at, err := time.Parse("15:04", s.runAt)
	if err != nil {
		at, _ = time.Parse("15:04", "00:01")
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// publishEvent отправляет биллинговое событие, если публикация настроена.
func (s *SchedulerService) publishEvent(event models.BillingEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish("events", event); err != nil {
		s.log.Error("failed to publish billing event",
			slog.String("type", event.Type), sl.Err(err))
	}
}
