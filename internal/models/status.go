package models

import "time"

// Уровни предупреждения о низком балансе.
const (
	WarningLevelNone     = "none"
	WarningLevelWarning  = "warning"
	WarningLevelCritical = "critical"
)

// SubscriptionStatusInfo — производная модель чтения, собирающая состояние
// подписки, баланса и резерва для UI. CanContinue истинно, когда доступного
// баланса хватает хотя бы на одно ежедневное списание.
type SubscriptionStatusInfo struct {
	IsActive         bool       `json:"is_active"`
	DaysRemaining    int        `json:"days_remaining"`
	DailyRate        int64      `json:"daily_rate"`
	DailyRateDisplay string     `json:"daily_rate_display"`
	Balance          int64      `json:"balance"`
	BalanceDisplay   string     `json:"balance_display"`
	Available        int64      `json:"available"`
	Reserved         int64      `json:"reserved"`
	CanContinue      bool       `json:"can_continue"`
	NextChargeDate   *time.Time `json:"next_charge_date,omitempty"`
}

// BalanceWarning — предупреждение о низком балансе с уровнем серьёзности.
// warning — баланса меньше чем на 7 дней, critical — не хватает даже на день.
type BalanceWarning struct {
	Level          string `json:"level"`
	Balance        int64  `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
	DailyRate      int64  `json:"daily_rate"`
	DaysLeft       int    `json:"days_left"`
}

// PassSummary агрегирует итоги одного прохода планировщика по подпискам.
// Ошибки инфраструктуры собираются в Errors по каждой подписке отдельно
// и не прерывают обработку остальных.
type PassSummary struct {
	Date        time.Time `json:"date"`
	Total       int       `json:"total"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Deactivated int       `json:"deactivated"`
	Errors      []string  `json:"errors,omitempty"`
}
