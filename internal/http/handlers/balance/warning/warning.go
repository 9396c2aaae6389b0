// Package warning реализует HTTP-обработчик предупреждения о низком балансе.
//
// Handler принимает вид подписки из строки запроса и возвращает уровень
// предупреждения: none, warning или critical.
package warning

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/salonbook/billing-engine/internal/http/middlewarectx"
	"github.com/salonbook/billing-engine/internal/http/response"
	"github.com/salonbook/billing-engine/internal/lib/sl"
	"github.com/salonbook/billing-engine/internal/models"
)

// Handler управляет HTTP-запросами на проверку уровня баланса.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис расчёта предупреждений
}

// Service описывает интерфейс расчёта предупреждения о низком балансе.
type Service interface {
	Warning(ctx context.Context, accountID, kind string) (*models.BalanceWarning, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Проверить уровень баланса
// @Description Возвращает предупреждение о низком балансе для подписки заданного вида.
// @Tags Balance
// @Produce  json
// @Param kind query string false "Вид подписки: SALON или PROVIDER (по умолчанию SALON)"
// @Success 200 {object} models.BalanceWarning "Уровень предупреждения"
// @Failure 401 {object} response.ErrorResponse "Счёт не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /balance/warning [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.balance.warning"
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

	kind := strings.ToUpper(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = models.SubscriptionKindSalon
	}

	warning, err := h.service.Warning(r.Context(), accountID, kind)
	if err != nil {
		log.Error("failed to evaluate balance warning", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not evaluate balance warning"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(warning))
}
