package backend

import (
	"context"
	"fmt"

	"orcamento/internal/adapters"
	"orcamento/internal/log"
	"orcamento/internal/ports"
	"orcamento/internal/storage"
	"orcamento/internal/storage/memory"
)

// localStore is what both local backends implement.
type localStore interface {
	ports.BudgetStore
	ports.TransactionAggregator
	ports.GoalReader
	ports.Pinger
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := f.attachRemotes(config, &result.Backend); err != nil {
		_ = result.Close()
		return nil, err
	}
	return result, nil
}

func local(s localStore) Backend {
	return Backend{
		Store:   s,
		Actuals: s,
		Goals:   s,
		Checks:  map[string]ports.Pinger{"store": s},
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: local(repo),
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store, err := memory.NewFromFiles(dataDir, config.SeedOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir, log.FieldOwnerID, config.SeedOwner)

	return &BackendResult{
		Backend: local(store),
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

// attachRemotes replaces the local actuals and goal readers with HTTP
// adapters when their base URLs are configured.
func (f *DefaultFactory) attachRemotes(config Config, b *Backend) error {
	if !config.HasRemotes() {
		return nil
	}
	opts := func(url string) adapters.Options {
		return adapters.Options{
			BaseURL:    url,
			Timeout:    config.RemoteTimeout,
			MaxRetries: config.RemoteMaxRetries,
			Logger:     f.logger.Logger,
		}
	}

	if config.TransactionsAPIURL != "" {
		client, err := adapters.NewTransactionsClient(opts(config.TransactionsAPIURL))
		if err != nil {
			return fmt.Errorf("failed to initialize transactions client: %w", err)
		}
		b.Actuals = client
		f.logger.Info("Using remote transactions service", "url", config.TransactionsAPIURL)
	}
	if config.GoalsAPIURL != "" {
		client, err := adapters.NewGoalsClient(opts(config.GoalsAPIURL))
		if err != nil {
			return fmt.Errorf("failed to initialize goals client: %w", err)
		}
		b.Goals = client
		f.logger.Info("Using remote goals service", "url", config.GoalsAPIURL)
	}
	return nil
}
