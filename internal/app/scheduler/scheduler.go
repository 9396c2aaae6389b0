// Package scheduler собирает приложение ежедневного биллингового прохода.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/salonbook/billing-engine/internal/cache"
	"github.com/salonbook/billing-engine/internal/config"
	"github.com/salonbook/billing-engine/internal/rabbitmq"
	billingrunservice "github.com/salonbook/billing-engine/internal/services/billingrun"
	chargeservice "github.com/salonbook/billing-engine/internal/services/charge"
	reservationservice "github.com/salonbook/billing-engine/internal/services/reservation"
	"github.com/salonbook/billing-engine/internal/storage/repository"
)

// App представляет приложение планировщика списаний.
type App struct {
	schedulerService *billingrunservice.SchedulerService
	conn             *amqp.Connection
	ch               *amqp.Channel
	db               *repository.Storage
	logger           *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetBillingQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	reservationService := reservationservice.NewReservationService(db, cacheRedis, cfg.Currency, cfg.ReserveMaxDays, logger)
	chargeProcessor := chargeservice.NewChargeProcessor(db, reservationService, cfg.Currency, logger)
	publisher := &rabbitmq.ChannelPublisher{Channel: ch}
	schedulerService := billingrunservice.NewSchedulerService(db, chargeProcessor, reservationService,
		publisher, cfg.RunAt, cfg.Workers, cfg.ErrorBackoff, cfg.WarningDays, logger)

	return &App{
		schedulerService: schedulerService,
		conn:             conn,
		ch:               ch,
		db:               db,
		logger:           logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает ежедневный цикл списаний до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.schedulerService.Run(ctx)
	}()

	<-ctx.Done()
	a.logger.Info("shutting down billing scheduler")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close storage", slog.Any("err", err))
	}

	return <-errCh
}
