// Package history реализует HTTP-обработчик чтения журнала операций счёта.
//
// Handler принимает параметры пагинации limit и offset из строки запроса
// и возвращает записи журнала, новые первыми.
package history

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/salonbook/billing-engine/internal/http/middlewarectx"
	"github.com/salonbook/billing-engine/internal/http/response"
	"github.com/salonbook/billing-engine/internal/lib/sl"
	"github.com/salonbook/billing-engine/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Handler управляет HTTP-запросами на чтение истории операций.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис чтения журнала
}

// Service описывает интерфейс чтения журнала операций.
type Service interface {
	History(ctx context.Context, accountID string, limit, offset int) ([]*models.LedgerEntry, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить историю операций
// @Description Возвращает записи журнала операций текущего счёта с пагинацией, новые первыми.
// @Tags Balance
// @Produce  json
// @Param limit query int false "Максимум записей (по умолчанию 20, не более 100)"
// @Param offset query int false "Смещение от начала"
// @Success 200 {object} map[string]any "Записи журнала"
// @Failure 401 {object} response.ErrorResponse "Счёт не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /balance/history [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.balance.history"
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

	limit := queryInt(r, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := h.service.History(r.Context(), accountID, limit, offset)
	if err != nil {
		log.Error("failed to read ledger history", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read history"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"entries": entries,
		"count":   len(entries),
	}))
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
