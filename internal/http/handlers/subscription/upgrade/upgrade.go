// Package upgrade реализует HTTP-обработчик апгрейда подписки.
//
// Handler принимает JSON-запрос с новым тарифом, валидирует его и возвращает
// новую подписку вместе с размером доплаты за оставшийся горизонт.
// Апгрейд отклоняется с HTTP 402 при нехватке средств на доплату.
package upgrade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/salonbook/billing-engine/internal/http/middlewarectx"
	"github.com/salonbook/billing-engine/internal/http/response"
	"github.com/salonbook/billing-engine/internal/lib/money"
	"github.com/salonbook/billing-engine/internal/lib/sl"
	"github.com/salonbook/billing-engine/internal/models"
	"github.com/salonbook/billing-engine/internal/storage/repository"
)

// Handler управляет HTTP-запросами на апгрейд подписки.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики подписок
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики апгрейда подписки.
type Service interface {
	Upgrade(ctx context.Context, accountID string, req models.DummyUpgrade) (*models.Subscription, int64, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Апгрейдить подписку
// @Description Переводит активную подписку на более дорогой тариф с пропорциональной доплатой за оставшиеся дни.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body models.DummyUpgrade true "Параметры нового тарифа"
// @Success 200 {object} map[string]any "Новая подписка и размер доплаты"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Счёт не авторизован"
// @Failure 402 {object} response.ErrorResponse "Недостаточно средств на доплату"
// @Failure 404 {object} response.ErrorResponse "Активная подписка не найдена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при апгрейде"
// @Router /subscriptions/upgrade [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.upgrade"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyUpgrade
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	accountID, ok := r.Context().Value(middlewarectx.AccountID).(string)
	if !ok || accountID == "" {
		log.Error("account id not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	sub, surcharge, err := h.service.Upgrade(r.Context(), accountID, req)
	switch {
	case errors.Is(err, repository.ErrSubscriptionNotFound):
		log.Info("no active subscription to upgrade", slog.String("account_id", accountID))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("active subscription not found"))
		return
	case repository.IsInsufficientFunds(err):
		log.Info("upgrade declined, insufficient funds", slog.String("account_id", accountID))
		w.WriteHeader(http.StatusPaymentRequired)
		render.JSON(w, r, response.Error("insufficient funds for upgrade surcharge"))
		return
	case err != nil:
		log.Error("failed to upgrade subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not upgrade subscription"))
		return
	}

	log.Info("subscription upgraded", slog.Int64("id", sub.ID), slog.Int64("surcharge", surcharge))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription":      sub,
		"surcharge":         surcharge,
		"surcharge_display": money.Display(surcharge),
	}))
}
