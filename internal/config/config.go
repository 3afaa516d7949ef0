package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"orcamento/internal/log"
)

// Backends accepted by DATA_BACKEND.
var validBackends = []string{"memory", "sqlite"}

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// Memory backend seed
	MemoryDataDir   string
	MemorySeedOwner string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Remote collaborators
	TransactionsAPIURL string
	GoalsAPIURL        string
	RemoteTimeout      time.Duration
	RemoteMaxRetries   int

	// Plan cache (catalog, targets, planned income). A zero TTL disables it.
	PlanCacheTTL  time.Duration
	PlanCacheSize int

	// Worker
	WorkerRuleEnabled   bool
	WorkerMaxMessageAge time.Duration
	// WorkerMetricsPort serves /metrics from the worker; empty disables it.
	WorkerMetricsPort string

	// Observability
	LogLevel          string
	LogFormat         string
	SentryDSN         string
	SentryEnvironment string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/orcamento.db"),

		MemoryDataDir:   getEnv("MEMORY_DATA_DIR", "data"),
		MemorySeedOwner: getEnv("MEMORY_SEED_OWNER", "demo"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "orcamento"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_changes"),

		TransactionsAPIURL: getEnv("TRANSACTIONS_API_URL", ""),
		GoalsAPIURL:        getEnv("GOALS_API_URL", ""),
		RemoteTimeout:      getEnvDuration("REMOTE_TIMEOUT", 5*time.Second),
		RemoteMaxRetries:   getEnvInt("REMOTE_MAX_RETRIES", 3),

		PlanCacheTTL:  getEnvDuration("PLAN_CACHE_TTL", 0),
		PlanCacheSize: getEnvInt("PLAN_CACHE_SIZE", 256),

		WorkerRuleEnabled:   getEnvBool("WORKER_RULE_ENABLED", true),
		WorkerMaxMessageAge: getEnvDuration("WORKER_MAX_MESSAGE_AGE", 10*time.Minute),
		WorkerMetricsPort:   getEnv("WORKER_METRICS_PORT", "9091"),

		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "production"),
	}

	return cfg
}

// CacheEnabled reports whether month plans are cached at all.
func (c *Config) CacheEnabled() bool {
	return c.PlanCacheTTL > 0 && c.PlanCacheSize > 0
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "memory" && strings.TrimSpace(c.MemorySeedOwner) == "" {
		errors = append(errors, "memory seed owner cannot be empty when using memory backend")
	}

	// Validate AMQP configuration if URL is provided
	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate remote collaborators
	for _, remote := range []struct{ name, raw string }{
		{"TRANSACTIONS_API_URL", c.TransactionsAPIURL},
		{"GOALS_API_URL", c.GoalsAPIURL},
	} {
		if remote.raw == "" {
			continue
		}
		if u, err := url.Parse(remote.raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an absolute http(s) URL", remote.name, remote.raw))
		}
	}
	if c.RemoteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must be positive", c.RemoteTimeout))
	}
	if c.RemoteMaxRetries < 0 || c.RemoteMaxRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid remote max retries %d: must be between 0 and 10", c.RemoteMaxRetries))
	}

	// Validate cache
	if c.PlanCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid plan cache TTL %v: must not be negative", c.PlanCacheTTL))
	}
	if c.PlanCacheSize < 0 || c.PlanCacheSize > 100000 {
		errors = append(errors, fmt.Sprintf("invalid plan cache size %d: must be between 0 and 100000", c.PlanCacheSize))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.WorkerMaxMessageAge < time.Second {
		errors = append(errors, fmt.Sprintf("invalid worker max message age %v: must be at least 1 second", c.WorkerMaxMessageAge))
	}

	if c.WorkerMetricsPort != "" {
		if port, err := strconv.Atoi(c.WorkerMetricsPort); err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid worker metrics port '%s': must be between 1 and 65535", c.WorkerMetricsPort))
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level: %v", err))
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
