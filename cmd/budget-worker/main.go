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
	"orcamento/internal/log"
	"orcamento/internal/metrics"
	"orcamento/internal/services"
	"orcamento/internal/worker"
)

var version = "dev"

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	flush := cli.InitSentry(cfg, logger, version)
	defer flush()

	logger.Info("Starting budget-worker", "version", version)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the budget worker", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	res := cli.OpenBackend(startCtx, cfg, logger)
	defer res.Close()

	amqpClient, err := amqp.NewClient(startCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		flush()
		os.Exit(1)
	}
	defer amqpClient.Close()

	m := metrics.New()
	opts := []services.Option{services.WithMetrics(m), services.WithLogger(logger)}
	if cfg.CacheEnabled() {
		opts = append(opts, services.WithPlanCache(cache.NewLRUCache[budget.Plan](cfg.PlanCacheSize, cfg.PlanCacheTTL)))
	}
	svc := services.NewBudgetService(res.Backend.Store,
		budget.NewAssembler(res.Backend.Store, res.Backend.Actuals, res.Backend.Goals),
		opts...)

	var metricsSrv *http.Server
	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", log.FieldError, err.Error())
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, func(ctx context.Context) {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
	})

	w := worker.NewSummaryWorker(svc, worker.Config{
		RuleEnabled: cfg.WorkerRuleEnabled,
		MaxAge:      cfg.WorkerMaxMessageAge,
		Metrics:     m,
		Logger:      logger,
	})
	if err := w.Run(ctx, amqpClient); err != nil {
		cli.ReportError(ctx, logger, "Message consumption failed", err)
		flush()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("budget-worker stopped gracefully")
}
