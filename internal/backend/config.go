package backend

import (
	"errors"
	"fmt"
	"net/url"

	"orcamento/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type %q, want one of %v", appConfig.DataBackend, GetBackendTypeStrings())
	}

	return Config{
		Type:               backendType,
		SQLiteDBPath:       appConfig.SQLiteDBPath,
		DataDirectory:      appConfig.MemoryDataDir,
		SeedOwner:          appConfig.MemorySeedOwner,
		TransactionsAPIURL: appConfig.TransactionsAPIURL,
		GoalsAPIURL:        appConfig.GoalsAPIURL,
		RemoteTimeout:      appConfig.RemoteTimeout,
		RemoteMaxRetries:   appConfig.RemoteMaxRetries,
	}, nil
}

// Validate reports every problem of the configuration at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			errs = append(errs, errors.New("SQLite database path is required for sqlite backend"))
		}
	case MemoryBackend:
		// An empty DataDirectory falls back to the built-in catalog.
		if c.SeedOwner == "" {
			errs = append(errs, errors.New("seed owner is required for memory backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid backend type: %s", c.Type))
	}

	for _, remote := range []struct{ name, raw string }{
		{"transactions", c.TransactionsAPIURL},
		{"goals", c.GoalsAPIURL},
	} {
		if remote.raw == "" {
			continue
		}
		if err := checkRemoteURL(remote.raw); err != nil {
			errs = append(errs, fmt.Errorf("%s API URL: %w", remote.name, err))
		}
	}
	if c.RemoteMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("remote max retries must not be negative, got %d", c.RemoteMaxRetries))
	}
	return errors.Join(errs...)
}

// HasRemotes reports whether actuals or goals come from a collaborator service.
func (c Config) HasRemotes() bool {
	return c.TransactionsAPIURL != "" || c.GoalsAPIURL != ""
}

func checkRemoteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
