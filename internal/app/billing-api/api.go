// Package billingapi собирает HTTP-приложение биллингового движка:
// хранилище, миграции, кеш, сервисы и маршруты.
package billingapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/salonbook/billing-engine/internal/cache"
	"github.com/salonbook/billing-engine/internal/config"
	"github.com/salonbook/billing-engine/internal/lib/jwt"
	"github.com/salonbook/billing-engine/internal/migrations"
	balanceservice "github.com/salonbook/billing-engine/internal/services/balance"
	billingrunservice "github.com/salonbook/billing-engine/internal/services/billingrun"
	chargeservice "github.com/salonbook/billing-engine/internal/services/charge"
	reservationservice "github.com/salonbook/billing-engine/internal/services/reservation"
	subscriptionservice "github.com/salonbook/billing-engine/internal/services/subscription"
	"github.com/salonbook/billing-engine/internal/storage/repository"
)

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	reservationService := reservationservice.NewReservationService(db, cacheRedis, cfg.Currency, cfg.ReserveMaxDays, logger)
	balanceService := balanceservice.NewBalanceService(db, reservationService, cacheRedis, cfg.Currency, logger)
	chargeProcessor := chargeservice.NewChargeProcessor(db, reservationService, cfg.Currency, logger)
	subscriptionService := subscriptionservice.NewSubscriptionService(db, reservationService, cacheRedis,
		cfg.Currency, cfg.WarningDays, logger)
	// Для ручных запусков из API события не публикуются, publisher == nil.
	schedulerService := billingrunservice.NewSchedulerService(db, chargeProcessor, reservationService,
		nil, cfg.RunAt, cfg.Workers, cfg.ErrorBackoff, cfg.WarningDays, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker,
		balanceService, reservationService, subscriptionService, schedulerService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close storage", slog.Any("err", closeErr))
		}
		return err
	}
}
