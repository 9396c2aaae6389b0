// Package get реализует HTTP-обработчик чтения баланса счёта.
//
// Handler извлекает идентификатор счёта из контекста и возвращает баланс,
// резерв и доступный остаток. Для счёта без операций возвращается нулевой баланс.
package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/salonbook/billing-engine/internal/http/middlewarectx"
	"github.com/salonbook/billing-engine/internal/http/response"
	"github.com/salonbook/billing-engine/internal/lib/money"
	"github.com/salonbook/billing-engine/internal/lib/sl"
)

// Handler управляет HTTP-запросами на чтение баланса.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис расчёта доступного остатка
}

// Service описывает интерфейс чтения баланса с учётом резерва.
type Service interface {
	AvailableBalance(ctx context.Context, accountID string, asOf time.Time) (balance, reserved, available int64, err error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить баланс счёта
// @Description Возвращает баланс, зарезервированную сумму и доступный остаток текущего счёта.
// @Tags Balance
// @Produce  json
// @Success 200 {object} map[string]any "Баланс счёта"
// @Failure 401 {object} response.ErrorResponse "Счёт не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /balance [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.balance.get"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountID, ok := r.Context().Value(middlewarectx.AccountID).(string)
	if !ok || accountID == "" {
		log.Error("account id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	balance, reserved, available, err := h.service.AvailableBalance(r.Context(), accountID, time.Now())
	if err != nil {
		log.Error("failed to read balance", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read balance"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"balance":         balance,
		"balance_display": money.Display(balance),
		"reserved":        reserved,
		"available":       available,
	}))
}
