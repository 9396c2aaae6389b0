package models

import "time"

// Виды записей журнала операций.
const (
	LedgerKindDeposit     = "DEPOSIT"
	LedgerKindWithdrawal  = "WITHDRAWAL"
	LedgerKindDailyCharge = "DAILY_CHARGE"
	LedgerKindRefund      = "REFUND"
)

// LedgerEntry представляет одну запись журнала операций по счёту.
// Записи неизменяемы: журнал только дополняется и служит аудиторским следом.
// Инвариант: BalanceAfter == BalanceBefore + Amount, где Amount отрицателен
// для списаний.
type LedgerEntry struct {
	ID                    string    `json:"id"`                                // Уникальный идентификатор записи (uuid)
	AccountID             string    `json:"account_id"`                        // Счёт, к которому относится запись
	Amount                int64     `json:"amount"`                            // Подписанная сумма в минорных единицах
	Kind                  string    `json:"kind"`                              // Вид операции: DEPOSIT, WITHDRAWAL, DAILY_CHARGE, REFUND
	Description           string    `json:"description"`                       // Человеко-читаемое описание операции
	RelatedSubscriptionID *int64    `json:"related_subscription_id,omitempty"` // Подписка, с которой связана операция (опционально)
	BalanceBefore         int64     `json:"balance_before"`                    // Баланс до операции
	BalanceAfter          int64     `json:"balance_after"`                     // Баланс после операции
	CreatedAt             time.Time `json:"created_at"`                        // Время создания записи
}
