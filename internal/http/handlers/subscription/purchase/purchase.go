// Package purchase реализует HTTP-обработчик покупки подписки.
//
// Handler принимает JSON-запрос с тарифом, валидирует его, извлекает
// идентификатор счёта из контекста и возвращает созданную подписку.
// Покупка отклоняется с HTTP 402, если доступного остатка не хватает
// на полную стоимость периода.
package purchase

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/salonbook/billing-engine/internal/http/middlewarectx"
	"github.com/salonbook/billing-engine/internal/http/response"
	"github.com/salonbook/billing-engine/internal/lib/sl"
	"github.com/salonbook/billing-engine/internal/models"
	"github.com/salonbook/billing-engine/internal/storage/repository"
)

// Handler управляет HTTP-запросами на покупку подписки.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики подписок
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики покупки подписки.
type Service interface {
	Purchase(ctx context.Context, accountID string, req models.DummyPurchase) (*models.Subscription, error)
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
// @Summary Купить подписку
// @Description Создает подписку для текущего счёта. Требует, чтобы доступный остаток покрывал полную стоимость периода.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body models.DummyPurchase true "Параметры тарифа"
// @Success 200 {object} models.Subscription "Созданная подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Счёт не авторизован"
// @Failure 402 {object} response.ErrorResponse "Недостаточно средств"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при покупке"
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.purchase"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyPurchase
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

	sub, err := h.service.Purchase(r.Context(), accountID, req)
	if err != nil {
		if repository.IsInsufficientFunds(err) {
			log.Info("purchase declined, insufficient funds", slog.String("account_id", accountID))
			w.WriteHeader(http.StatusPaymentRequired)
			render.JSON(w, r, response.Error("insufficient funds for full subscription price"))
			return
		}
		log.Error("failed to purchase subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not purchase subscription"))
		return
	}

	log.Info("subscription purchased", slog.Int64("id", sub.ID))
	render.JSON(w, r, response.StatusOKWithData(sub))
}
