// Package runpass реализует HTTP-обработчик ручного запуска биллингового
// прохода за дату. Операция доступна только роли admin и идемпотентна:
// уже списанные подписки при повторном запуске не трогаются.
package runpass

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/salonbook/billing-engine/internal/http/response"
	"github.com/salonbook/billing-engine/internal/lib/sl"
	"github.com/salonbook/billing-engine/internal/models"
)

// Handler управляет HTTP-запросами на ручной запуск прохода.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис биллингового прохода
}

// Service описывает интерфейс запуска полного биллингового прохода.
type Service interface {
	RunFullPass(ctx context.Context, date time.Time) (*models.PassSummary, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Запустить биллинговый проход
// @Description Выполняет продления, ежедневные списания и повтор неудач за дату. Без параметра date берётся сегодняшний день. Повторный запуск безопасен.
// @Tags Admin
// @Produce  json
// @Param date query string false "Дата прохода в формате 2006-01-02"
// @Success 200 {object} models.PassSummary "Итоги прохода"
// @Failure 400 {object} response.ErrorResponse "Некорректная дата"
// @Failure 403 {object} response.ErrorResponse "Требуется роль admin"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при проходе"
// @Router /admin/billing/run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.runpass"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			log.Error("invalid date parameter", slog.String("date", raw))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("date must be in format 2006-01-02"))
			return
		}
		date = parsed
	}

	summary, err := h.service.RunFullPass(r.Context(), date)
	if err != nil {
		log.Error("billing pass failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("billing pass failed"))
		return
	}

	log.Info("billing pass completed",
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed))
	render.JSON(w, r, response.StatusOKWithData(summary))
}
