// Package billingapi предоставляет маршруты биллингового API.
package billingapi

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/salonbook/billing-engine/internal/http/handlers/admin/runpass"
	"github.com/salonbook/billing-engine/internal/http/handlers/balance/deposit"
	balanceget "github.com/salonbook/billing-engine/internal/http/handlers/balance/get"
	"github.com/salonbook/billing-engine/internal/http/handlers/balance/history"
	"github.com/salonbook/billing-engine/internal/http/handlers/balance/warning"
	"github.com/salonbook/billing-engine/internal/http/handlers/health"
	"github.com/salonbook/billing-engine/internal/http/handlers/subscription/purchase"
	substatus "github.com/salonbook/billing-engine/internal/http/handlers/subscription/status"
	"github.com/salonbook/billing-engine/internal/http/handlers/subscription/upgrade"
	"github.com/salonbook/billing-engine/internal/http/middlewarectx"
	"github.com/salonbook/billing-engine/internal/lib/jwt"
	balanceservice "github.com/salonbook/billing-engine/internal/services/balance"
	billingrunservice "github.com/salonbook/billing-engine/internal/services/billingrun"
	reservationservice "github.com/salonbook/billing-engine/internal/services/reservation"
	subscriptionservice "github.com/salonbook/billing-engine/internal/services/subscription"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwt.Maker,
	balanceService *balanceservice.BalanceService,
	reservationService *reservationservice.ReservationService,
	subscriptionService *subscriptionservice.SubscriptionService,
	schedulerService *billingrunservice.SchedulerService) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/balance/deposit", deposit.New(logger, balanceService).ServeHTTP)
			r.Get("/balance", balanceget.New(logger, reservationService).ServeHTTP)
			r.Get("/balance/history", history.New(logger, balanceService).ServeHTTP)
			r.Get("/balance/warning", warning.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions", purchase.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscriptions/upgrade", upgrade.New(logger, subscriptionService).ServeHTTP)
			r.Get("/subscriptions/status", substatus.New(logger, subscriptionService).ServeHTTP)

			// Служебные операции
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnlyMiddleware(logger))
				r.Post("/admin/billing/run", runpass.New(logger, schedulerService).ServeHTTP)
			})
		})

		r.Get("/health", health.New(logger).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
