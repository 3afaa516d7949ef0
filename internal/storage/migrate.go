package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrator owns a dedicated connection so migrations never share the repository pool.
type migrator struct {
	db *sql.DB
	m  *migrate.Migrate
}

func openMigrator(dbPath string) (*migrator, error) {
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		migrateDB.Close()
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		migrateDB.Close()
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		migrateDB.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return &migrator{db: migrateDB, m: m}, nil
}

func (mg *migrator) close() {
	mg.m.Close()
	mg.db.Close()
}

// RunMigrations applies every pending up migration.
func RunMigrations(dbPath string) error {
	mg, err := openMigrator(dbPath)
	if err != nil {
		return err
	}
	defer mg.close()

	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// RollbackMigrations reverts the last n migrations.
func RollbackMigrations(dbPath string, n int) error {
	if n <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", n)
	}
	mg, err := openMigrator(dbPath)
	if err != nil {
		return err
	}
	defer mg.close()

	if err := mg.m.Steps(-n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	return nil
}

// MigrationVersion reports the applied schema version. Version 0 means no migration ran.
func MigrationVersion(dbPath string) (version uint, dirty bool, err error) {
	mg, err := openMigrator(dbPath)
	if err != nil {
		return 0, false, err
	}
	defer mg.close()

	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}
