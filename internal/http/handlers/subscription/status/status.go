// Package status реализует HTTP-обработчик чтения статуса подписки.
//
// Handler собирает производную модель чтения: активность подписки, оставшиеся
// дни, дневную ставку, баланс с резервом и дату следующего списания.
package status

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

// Handler управляет HTTP-запросами на чтение статуса подписки.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис моделей чтения подписки
}

// Service описывает интерфейс чтения статуса подписки.
type Service interface {
	Status(ctx context.Context, accountID, kind string) (*models.SubscriptionStatusInfo, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить статус подписки
// @Description Возвращает состояние подписки, баланс, резерв и дату следующего списания для текущего счёта.
// @Tags Subscriptions
// @Produce  json
// @Param kind query string false "Вид подписки: SALON или PROVIDER (по умолчанию SALON)"
// @Success 200 {object} models.SubscriptionStatusInfo "Статус подписки"
// @Failure 401 {object} response.ErrorResponse "Счёт не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.status"
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

	info, err := h.service.Status(r.Context(), accountID, kind)
	if err != nil {
		log.Error("failed to read subscription status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read subscription status"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(info))
}
