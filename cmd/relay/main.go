package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mkarlsson/invoice-relay/internal/config"
	"github.com/mkarlsson/invoice-relay/internal/gateway"
	"github.com/mkarlsson/invoice-relay/internal/handler"
	"github.com/mkarlsson/invoice-relay/internal/infra/postgresql"
	"github.com/mkarlsson/invoice-relay/internal/infra/postgresql/migrations"
	infraredis "github.com/mkarlsson/invoice-relay/internal/infra/redis"
	"github.com/mkarlsson/invoice-relay/internal/lookup"
	"github.com/mkarlsson/invoice-relay/internal/observability"
	"github.com/mkarlsson/invoice-relay/internal/pipeline"
	"github.com/mkarlsson/invoice-relay/internal/queue"
	"github.com/mkarlsson/invoice-relay/internal/recipient"
	"github.com/mkarlsson/invoice-relay/internal/report"
	"github.com/mkarlsson/invoice-relay/internal/repository"
	"github.com/mkarlsson/invoice-relay/internal/service"
	"github.com/mkarlsson/invoice-relay/internal/share"
	"github.com/mkarlsson/invoice-relay/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	scanInterval, err := cfg.ScanIntervalDuration()
	if err != nil {
		logger.Fatal("invalid scan interval", zap.Error(err))
	}

	registry, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		logger.Fatal("batch source registry initialization failed", zap.Error(err))
	}
	logger.Info("batch sources loaded", zap.Int("sources", registry.Len()))

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rmq.Close()

	publisher := queue.NewRabbitMQPublisher(rmq)
	consumer := queue.NewRabbitMQConsumer(rmq, cfg.WorkerConcurrency, logger)

	shareClient, err := share.NewLocalShare(cfg.ShareRootPath)
	if err != nil {
		logger.Fatal("file share initialization failed", zap.Error(err))
	}

	identityClient, err := lookup.NewHTTPIdentityClient(cfg.IdentityEndpoint)
	if err != nil {
		logger.Fatal("identity client initialization failed", zap.Error(err))
	}

	partyClient, err := lookup.NewHTTPPartyClient(cfg.PartyEndpoint)
	if err != nil {
		logger.Fatal("party client initialization failed", zap.Error(err))
	}

	resolver := recipient.NewResolver(identityClient, partyClient, logger)

	gw, err := gateway.NewHTTPGateway(cfg.GatewayEndpoint)
	if err != nil {
		logger.Fatal("messaging gateway initialization failed", zap.Error(err))
	}

	batchRepo := repository.NewGormBatchRepo(db)

	pipe, err := pipeline.New(shareClient, resolver, gw, limiter, batchRepo, logger)
	if err != nil {
		logger.Fatal("pipeline initialization failed", zap.Error(err))
	}

	var reporter *report.Reporter
	if cfg.ReportingEnabled() {
		mailer, err := report.NewHTTPMailer(cfg.MailEndpoint)
		if err != nil {
			logger.Fatal("mail gateway initialization failed", zap.Error(err))
		}
		reporter, err = report.NewReporter(mailer, report.Settings{
			SubjectPrefix: cfg.ReportSubjectPrefix,
			Sender:        cfg.ReportSender,
			Recipients:    cfg.ReportRecipientList(),
		}, logger)
		if err != nil {
			logger.Fatal("reporter initialization failed", zap.Error(err))
		}
	} else {
		logger.Warn("mail reporting disabled, status and error reports will not be sent")
	}

	scheduler, err := service.NewScheduler(registry, publisher, scanInterval, logger)
	if err != nil {
		logger.Fatal("scheduler initialization failed", zap.Error(err))
	}

	worker, err := service.NewWorkerService(registry, consumer, pipe, reporter, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("worker initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	worker.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterBatchRoutes(app, batchRepo); err != nil {
		logger.Fatal("batch route registration failed", zap.Error(err))
	}
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("scheduler started", zap.Duration("interval", scanInterval))
		return scheduler.Start(ctx)
	})

	g.Go(func() error {
		logger.Info("worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
		return worker.Start(ctx)
	})

	g.Go(func() error {
		logger.Info("api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("invoice-relay terminated", zap.Error(err))
	}

	logger.Info("invoice-relay stopped")
}
