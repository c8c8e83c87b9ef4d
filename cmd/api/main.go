package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/payslip-dispatch/internal/config"
	"github.com/kursadbilgin/payslip-dispatch/internal/converter"
	"github.com/kursadbilgin/payslip-dispatch/internal/handler"
	"github.com/kursadbilgin/payslip-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/payslip-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/payslip-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/payslip-dispatch/internal/notifier"
	"github.com/kursadbilgin/payslip-dispatch/internal/observability"
	"github.com/kursadbilgin/payslip-dispatch/internal/queue"
	"github.com/kursadbilgin/payslip-dispatch/internal/repository"
	"github.com/kursadbilgin/payslip-dispatch/internal/service"
	"github.com/kursadbilgin/payslip-dispatch/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("payslip-dispatch api stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.Options{MaxOpenConns: cfg.DBMaxOpenConns}, logger)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}

	checks := []handler.ReadinessCheck{handler.PostgresCheck(sqlDB), handler.RedisCheck(rdb)}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		publisher = queue.NewRabbitMQPublisher(mq)
		checks = append(checks, handler.ReadinessCheck{Name: "rabbitmq", Check: mq.Ping})
	} else {
		logger.Warn("RABBITMQ_URL not set, batch completion events will not be published")
	}
	defer publisher.Close() //nolint:errcheck

	metrics := observability.NewMetrics()

	employees := repository.NewGormEmployeeRepo(db)
	history := repository.NewGormSendHistoryRepo(db)
	sessions := repository.NewGormImportSessionRepo(db)
	settings := repository.NewGormSettingsRepo(db)

	slips, err := converter.NewSlipConverter(
		converter.Options{WorkDir: cfg.WorkDir},
		converter.NewLibreOfficeRenderer(cfg.LibreOfficePath, cfg.ConvertTimeout()),
		logger.Named("converter"),
	)
	if err != nil {
		return fmt.Errorf("converter initialization failed: %w", err)
	}

	generation, err := service.NewGenerationOrchestrator(employees, slips, publisher, logger.Named("generation"))
	if err != nil {
		return fmt.Errorf("generation orchestrator initialization failed: %w", err)
	}
	generation.SetMetrics(metrics)

	sends, err := service.NewSendOrchestrator(
		employees,
		history,
		notifier.NewFactory(logger.Named("notifier")),
		limiter,
		publisher,
		logger.Named("send"),
	)
	if err != nil {
		return fmt.Errorf("send orchestrator initialization failed: %w", err)
	}
	sends.SetMetrics(metrics)

	generationHandler, err := handler.NewGenerationHandler(generation, sessions, employees, settings, cfg.SSEKeepAlive(), logger)
	if err != nil {
		return fmt.Errorf("generation handler initialization failed: %w", err)
	}
	sendHandler, err := handler.NewSendHandler(sends, settings, history, cfg.WebhookDefaults(), cfg.SSEKeepAlive(), logger)
	if err != nil {
		return fmt.Errorf("send handler initialization failed: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "payslip-dispatch",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(transport.CorrelationID())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, checks...)
	handler.RegisterGenerationRoutes(app, generationHandler)
	handler.RegisterSendRoutes(app, sendHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("payslip-dispatch api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()

		var errs []error
		if err := generation.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("generation shutdown: %w", err))
		}
		if err := sends.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("send shutdown: %w", err))
		}
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
