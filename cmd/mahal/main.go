package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"mahal/internal/amqp"
	"mahal/internal/backend"
	"mahal/internal/cache"
	"mahal/internal/cli"
	apphttp "mahal/internal/http"
	"mahal/internal/log"
	"mahal/internal/metrics"
	"mahal/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	factory := backend.NewFactory(logger)
	beCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid data backend config", err, "backend", cfg.DataBackend)
	}
	be, err := factory.CreateBackend(ctx, beCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize data backend", err, "backend", cfg.DataBackend)
	}
	gw := be.Gateway

	m := metrics.New()
	normalizer := cfg.Normalizer()

	agg := services.NewFundAggregator(gw, gw, normalizer)
	reports := services.NewDashboardService(agg, gw, cfg.DashboardCacheTTL, m)
	alloc := services.NewAllocator(gw, m)

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.SyncPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			cli.Fatal(logger, "Failed to connect to AMQP", err)
		}
		publisher = amqpClient
		logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP_URL not set, ledger sync disabled")
	}

	members := services.NewMemberService(gw, alloc, reports)
	users := services.NewUserService(gw, alloc, reports)
	collections := services.NewCollectionService(gw, gw, normalizer, publisher, reports, m)

	caches := cache.NewManager()
	for _, c := range reports.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Members:            members,
		Users:              users,
		Collections:        collections,
		Reports:            reports,
		Ping:               be.Ping,
		Metrics:            m,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting mahal server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
