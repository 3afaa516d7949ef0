package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"orcamento/internal/amqp"
	"orcamento/internal/budget"
	"orcamento/internal/cache"
	"orcamento/internal/cli"
	apphttp "orcamento/internal/http"
	"orcamento/internal/log"
	"orcamento/internal/metrics"
	"orcamento/internal/ports"
	"orcamento/internal/services"
)

var version = "dev"

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)
	flush := cli.InitSentry(cfg, logger, version)
	defer flush()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	res := cli.OpenBackend(startCtx, cfg, logger)
	m := metrics.New()

	opts := []services.Option{
		services.WithMetrics(m),
		services.WithLogger(logger),
	}

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	if cfg.CacheEnabled() {
		plans := cache.NewLRUCache[budget.Plan](cfg.PlanCacheSize, cfg.PlanCacheTTL)
		cacheManager.Register(plans)
		cacheManager.StartCleanup(max(cfg.PlanCacheTTL, time.Minute))
		opts = append(opts, services.WithPlanCache(plans))
	}

	checks := map[string]ports.Pinger{}
	for name, p := range res.Backend.Checks {
		checks[name] = p
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(startCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err.Error())
		} else {
			amqpClient = client
			checks["amqp"] = client
			opts = append(opts, services.WithPublisher(client))
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	assembler := budget.NewAssembler(res.Backend.Store, res.Backend.Actuals, res.Backend.Goals)
	svc := services.NewBudgetService(res.Backend.Store, assembler, opts...)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Service:            svc,
		Checks:             checks,
		Metrics:            m,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err.Error())
			}
		}
		if err := res.Close(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting orcamento server", "port", cfg.Port, "backend", cfg.DataBackend, "version", version)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		flush()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
