// Package cli provides common process initialization utilities shared by
// cmd/orcamento, cmd/budget-worker and cmd/orcamentoctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"orcamento/internal/backend"
	"orcamento/internal/config"
	"orcamento/internal/log"
)

const sentryFlushTimeout = 2 * time.Second

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    strings.ToLower(cfg.LogFormat),
		Component: component,
		Output:    os.Stdout,
	})
	if err != nil {
		logger.Warn("Falling back to info level", log.FieldError, err.Error())
	}
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads .env and the environment, then validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSentry enables error reporting when a DSN is configured. The returned
// function flushes buffered events and must run before the process exits.
func InitSentry(cfg *config.Config, logger *log.Logger, release string) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}
	env := cfg.SentryEnvironment
	if env == "" {
		env = "production"
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: env,
		Release:     release,
	}); err != nil {
		// Log error but keep running without reporting
		logger.Error("Failed to initialize Sentry", log.FieldError, err.Error())
		return func() {}
	}
	logger.Info("Sentry error reporting enabled", "environment", env)
	return func() { sentry.Flush(sentryFlushTimeout) }
}

// OpenBackend creates the configured backend or exits the process.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend",
			log.FieldError, err.Error(),
			"backend", bcfg.Type.String())
		os.Exit(1)
	}
	return res
}

// ReportError sends err to Sentry and logs it.
func ReportError(ctx context.Context, logger *log.Logger, msg string, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	logger.ErrorContext(ctx, msg, log.FieldError, err.Error())
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that is cancelled on SIGINT/SIGTERM, and a channel that
// is closed once cleanup finished or the timeout elapsed.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
