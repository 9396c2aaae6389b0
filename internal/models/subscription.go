package models

import "time"

// Виды подписок платформы.
const (
	SubscriptionKindSalon    = "SALON"
	SubscriptionKindProvider = "PROVIDER"
)

// Статусы жизненного цикла подписки.
const (
	SubscriptionStatusActive    = "ACTIVE"
	SubscriptionStatusExpired   = "EXPIRED"
	SubscriptionStatusCancelled = "CANCELLED"
)

// Subscription представляет оплачиваемый период подписки салона или мастера.
// При апгрейде старая запись помечается EXPIRED, а новая создаётся отдельной
// строкой — история периодов сохраняется. Поле IsActive отделено от Status:
// при нехватке средств подписка мягко деактивируется, но её даты не меняются.
type Subscription struct {
	ID            int64     `json:"id"`                       // Уникальный идентификатор записи
	AccountID     string    `json:"account_id"`               // Счёт владельца подписки
	Kind          string    `json:"kind"`                     // Вид подписки: SALON или PROVIDER
	Status        string    `json:"status"`                   // ACTIVE, EXPIRED или CANCELLED
	StartDate     time.Time `json:"start_date"`               // Дата начала периода (включительно)
	EndDate       time.Time `json:"end_date"`                 // Дата окончания периода (исключительно)
	Price         int64     `json:"price"`                    // Полная стоимость периода в минорных единицах
	DailyRate     int64     `json:"daily_rate"`               // Стоимость одного дня, производная от Price
	PaymentPeriod *int      `json:"payment_period,omitempty"` // Период продления в днях; nil — без автопродления
	AutoRenewal   bool      `json:"auto_renewal"`             // Продлевать ли подписку автоматически
	IsActive      bool      `json:"is_active"`                // Участвует ли подписка в ежедневных списаниях
	CreatedAt     time.Time `json:"created_at"`               // Время создания записи
}

// DummyPurchase используется для приёма запроса на покупку подписки из JSON.
// Цена приходит в минорных единицах; каталог тарифов — внешняя система,
// движок только резервирует и списывает.
type DummyPurchase struct {
	Kind        string `json:"kind" validate:"required,oneof=SALON PROVIDER"` // Вид подписки
	Price       int64  `json:"price" validate:"required,gt=0"`                // Стоимость периода
	PeriodDays  int    `json:"period_days" validate:"required,gt=0"`          // Длина периода в днях
	AutoRenewal bool   `json:"auto_renewal"`                                  // Автопродление
}

// DummyUpgrade используется для приёма запроса на апгрейд подписки из JSON.
type DummyUpgrade struct {
	Kind       string `json:"kind" validate:"required,oneof=SALON PROVIDER"` // Вид апгрейдируемой подписки
	NewPrice   int64  `json:"new_price" validate:"required,gt=0"`            // Стоимость нового тарифа за период
	PeriodDays int    `json:"period_days" validate:"required,gt=0"`          // Длина периода нового тарифа
}
