// Package deposit реализует HTTP-обработчик пополнения баланса счёта.
//
// Handler принимает JSON-запрос с суммой и способом пополнения, валидирует его,
// извлекает идентификатор счёта из контекста и возвращает запись журнала
// с новым балансом в JSON-формате.
//
// В случае ошибок формируются соответствующие HTTP-ответы с описанием проблемы.
package deposit

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
	"github.com/salonbook/billing-engine/internal/lib/money"
	"github.com/salonbook/billing-engine/internal/lib/sl"
	"github.com/salonbook/billing-engine/internal/models"
)

// Handler управляет HTTP-запросами на пополнение баланса.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики баланса
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики пополнения баланса.
type Service interface {
	Deposit(ctx context.Context, accountID string, amount int64, method string) (*models.LedgerEntry, error)
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
// @Summary Пополнить баланс счёта
// @Description Зачисляет сумму на баланс текущего счёта и возвращает новую запись журнала.
// @Tags Balance
// @Accept  json
// @Produce  json
// @Param request body models.DummyDeposit true "Сумма и способ пополнения"
// @Success 200 {object} map[string]any "Пополнение выполнено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Счёт не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при пополнении"
// @Router /balance/deposit [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.balance.deposit"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyDeposit
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

	entry, err := h.service.Deposit(r.Context(), accountID, req.Amount, req.Method)
	if err != nil {
		log.Error("failed to deposit", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not deposit"))
		return
	}

	log.Info("deposit completed", slog.String("account_id", accountID), slog.Int64("amount", req.Amount))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"entry_id":        entry.ID,
		"balance":         entry.BalanceAfter,
		"balance_display": money.Display(entry.BalanceAfter),
	}))
}
