package models

import "time"

// Статусы ежедневного списания.
const (
	ChargeStatusSuccess = "SUCCESS"
	ChargeStatusFailed  = "FAILED"
)

// DailyCharge фиксирует результат одного ежедневного списания по подписке.
// Пара (SubscriptionID, ChargeDate) уникальна — это ключ идемпотентности:
// одна строка на подписку в день, навсегда. Строки не обновляются и не
// удаляются (кроме FAILED-маркеров в ретрай-проходе).
type DailyCharge struct {
	ID             int64     `json:"id"`              // Уникальный идентификатор записи
	SubscriptionID int64     `json:"subscription_id"` // Подписка, по которой произведено списание
	ChargeDate     time.Time `json:"charge_date"`     // Календарная дата списания
	Amount         int64     `json:"amount"`          // Сумма списания в минорных единицах
	BalanceBefore  int64     `json:"balance_before"`  // Баланс до списания
	BalanceAfter   int64     `json:"balance_after"`   // Баланс после списания
	Status         string    `json:"status"`          // SUCCESS или FAILED
	CreatedAt      time.Time `json:"created_at"`      // Время создания записи
}
