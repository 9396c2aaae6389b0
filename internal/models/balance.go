// Package models содержит доменные структуры биллингового движка:
// баланс счёта, записи журнала операций, подписки и ежедневные списания,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// Balance представляет денежный баланс одного счёта.
// Сумма хранится в минорных единицах валюты (копейках) и изменяется
// только через операции хранилища — прямые записи запрещены.
type Balance struct {
	AccountID string    `json:"account_id"` // Уникальный идентификатор счёта
	Amount    int64     `json:"amount"`     // Текущая сумма в минорных единицах
	Currency  string    `json:"currency"`   // Код валюты, например "RUB"
	UpdatedAt time.Time `json:"updated_at"` // Время последнего изменения
}

// DummyDeposit используется для приёма запроса на пополнение баланса из JSON.
// Сумма приходит в минорных единицах, метод — свободная строка для журнала
// ("card", "sbp", "manual" и т.п.).
type DummyDeposit struct {
	Amount int64  `json:"amount" validate:"required,gt=0"` // Сумма пополнения (>0, минорные единицы)
	Method string `json:"method" validate:"required"`      // Способ пополнения
}
