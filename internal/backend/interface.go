package backend

import (
	"context"
	"time"

	"orcamento/internal/ports"
)

// Backend bundles the ports the budget engine reads and writes.
type Backend struct {
	Store   ports.BudgetStore
	Actuals ports.TransactionAggregator
	Goals   ports.GoalReader
	// Checks are the dependencies reported by readiness probes.
	Checks map[string]ports.Pinger
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Close runs the cleanup function if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string
	SeedOwner     string

	// Remote collaborators. Empty URLs keep actuals and goals on the local store.
	TransactionsAPIURL string
	GoalsAPIURL        string
	RemoteTimeout      time.Duration
	RemoteMaxRetries   int
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
