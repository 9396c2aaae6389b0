package repository

import (
	"errors"
	"fmt"
)

// Ошибки уровня хранилища, которые сервисы различают через errors.Is/As.
// Нехватка средств и дубль списания — ожидаемые бизнес-исходы, а не сбои
// инфраструктуры, поэтому у них собственные типы.
var (
	// ErrDuplicateCharge — списание за эту пару (подписка, дата) уже записано.
	ErrDuplicateCharge = errors.New("daily charge already recorded for this date")
	// ErrChargeNotFound — запись о списании не найдена.
	ErrChargeNotFound = errors.New("daily charge not found")
	// ErrSubscriptionNotFound — подписка не найдена.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// InsufficientFundsError возвращается, когда на балансе не хватает средств
// для списания или резерва. Несёт размер недостачи для ответа клиенту.
type InsufficientFundsError struct {
	AccountID string
	Requested int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: requested %d, available %d",
		e.AccountID, e.Requested, e.Available)
}

// Shortfall возвращает недостающую сумму в минорных единицах.
func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Requested - e.Available
}

// IsInsufficientFunds сообщает, является ли ошибка нехваткой средств.
func IsInsufficientFunds(err error) bool {
	var target *InsufficientFundsError
	return errors.As(err, &target)
}
