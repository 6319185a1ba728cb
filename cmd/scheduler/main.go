package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/app"
	"github.com/Freeeeeet/master_scheduler/internal/config"
	"github.com/Freeeeeet/master_scheduler/internal/controller"
	"github.com/Freeeeeet/master_scheduler/internal/controller/rest"
	"github.com/Freeeeeet/master_scheduler/internal/events"
	"github.com/Freeeeeet/master_scheduler/internal/lock"
	"github.com/Freeeeeet/master_scheduler/internal/repository"
	"github.com/Freeeeeet/master_scheduler/internal/repository/base"
	"github.com/Freeeeeet/master_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting master scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	pool, err := openPool(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

	// Репозитории
	tx := base.NewRepository(pool)
	slotRepo := repository.NewSlotRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	reminderRepo := repository.NewReminderRepository(pool)

	// Доставка событий
	sinks := events.Fanout{events.NewLogSink(logger)}

	if brokers := events.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kafkaSink := events.NewKafkaSink(brokers, cfg.KafkaTopicPrefix)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		logger.Info("Kafka event sink enabled", zap.Strings("brokers", brokers))
	}

	var telegram *bot.Bot
	if cfg.TelegramToken != "" {
		telegram, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return err
		}
		sinks = append(sinks, events.NewTelegramSink(telegram, userRepo, logger))
		logger.Info("Telegram event sink enabled")
	}

	// Сервисы
	clock := service.SystemClock
	generator := service.NewSlotGenerator(slotRepo, userRepo, tx, clock, cfg.SlotDuration, cfg.WorkingHours, logger)
	booking := service.NewBookingService(slotRepo, orderRepo, tx, sinks, clock, logger)
	slotManager := service.NewSlotManager(slotRepo, logger)
	notifier := service.NewNotifier(orderRepo, userRepo, reminderRepo, sinks, clock, service.DefaultReminderWindows, logger)

	// Фоновые задачи
	var locker app.Locker
	if cfg.RedisAddr != "" {
		client, err := lock.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client)
		logger.Info("Redis task lock enabled", zap.String("addr", cfg.RedisAddr))
	}

	scheduler := app.NewScheduler(logger, locker)
	scheduler.Add(app.Task{
		Name:     "upcoming-order-notifier",
		Interval: cfg.NotifierInterval,
		Run:      notifier.Run,
	})
	if cfg.AutoGenerateDays > 0 {
		days := cfg.AutoGenerateDays
		scheduler.Add(app.Task{
			Name:     "slot-generation",
			Interval: 24 * time.Hour,
			Run: func(ctx context.Context) error {
				return generator.GenerateForAllMasters(ctx, days)
			},
		})
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if telegram != nil {
		botController := controller.NewBotController(telegram, userRepo, booking, logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Failed to register bot handlers", zap.Error(err))
		}
		go botController.Start(ctx)
	}

	// HTTP
	handler := rest.NewHandler(generator, booking, slotManager, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
