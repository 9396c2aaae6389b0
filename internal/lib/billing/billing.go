// Package billing содержит чистые функции биллинговых расчётов:
// дневная ставка тарифа, оставшиеся дни подписки, доплата при апгрейде
// и сумма резерва под будущие списания. Функции не выполняют I/O.
//
// Правило округления единое для всех расчётов: дневная ставка — целочисленное
// деление цены на длину периода с усечением к нулю, все производные суммы
// умножают уже усечённую ставку.
package billing

import (
	"time"

	"github.com/salonbook/billing-engine/internal/models"
)

// DailyRate считает стоимость одного дня подписки в минорных единицах.
// Усечение к нулю: 900/30 = 30, 1000/30 = 33. Для некорректного периода
// возвращает 0.
func DailyRate(priceMinor int64, periodDays int) int64 {
	if periodDays <= 0 {
		return 0
	}
	return priceMinor / int64(periodDays)
}

// RemainingDays считает количество оставшихся оплачиваемых дней подписки
// на дату asOf. День asOf входит в остаток, день EndDate — нет.
// До начала периода возвращает полную длину, после окончания — 0.
func RemainingDays(sub *models.Subscription, asOf time.Time) int {
	start := truncateToDay(sub.StartDate)
	end := truncateToDay(sub.EndDate)
	day := truncateToDay(asOf)

	if !day.Before(end) {
		return 0
	}
	if day.Before(start) {
		day = start
	}
	return int(end.Sub(day).Hours() / 24)
}

// UpgradeCost считает доплату при переходе на тариф с дневной ставкой
// newDailyRate на оставшийся горизонт текущей подписки:
// max(0, remainingDays * (newRate - currentRate)).
// Отрицательной доплата не бывает — автоматических возвратов при даунгрейде нет.
func UpgradeCost(current *models.Subscription, newDailyRate int64, asOf time.Time) int64 {
	remaining := int64(RemainingDays(current, asOf))
	cost := remaining * (newDailyRate - current.DailyRate)
	if cost < 0 {
		return 0
	}
	return cost
}

// ReservationAmount считает сумму, которую нужно удержать под будущие
// ежедневные списания: dailyRate * min(remainingDays, maxDays).
// maxDays <= 0 означает отсутствие ограничения горизонта.
func ReservationAmount(sub *models.Subscription, asOf time.Time, maxDays int) int64 {
	days := RemainingDays(sub, asOf)
	if maxDays > 0 && days > maxDays {
		days = maxDays
	}
	return sub.DailyRate * int64(days)
}

// NextChargeDate возвращает дату следующего списания для активной подписки
// после даты asOf, либо nil, если период уже закончился.
func NextChargeDate(sub *models.Subscription, asOf time.Time) *time.Time {
	next := truncateToDay(asOf).AddDate(0, 0, 1)
	start := truncateToDay(sub.StartDate)
	if next.Before(start) {
		next = start
	}
	if !next.Before(truncateToDay(sub.EndDate)) {
		return nil
	}
	return &next
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
