package models

import "time"

// Типы событий биллинга, публикуемых в RabbitMQ.
const (
	EventChargeFailed     = "charge_failed"
	EventLowBalance       = "low_balance"
	EventRenewalCompleted = "renewal_completed"
	EventRenewalFailed    = "renewal_failed"
)

// BillingEvent — сообщение для очереди уведомлений. Отправитель писем
// живёт в отдельном процессе и узнаёт о событиях биллинга только отсюда.
type BillingEvent struct {
	Type           string    `json:"type"`
	AccountID      string    `json:"account_id"`
	SubscriptionID int64     `json:"subscription_id,omitempty"`
	Amount         int64     `json:"amount,omitempty"`
	Balance        int64     `json:"balance,omitempty"`
	Date           time.Time `json:"date"`
}
