package table

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migmysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migpostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migsqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// runMigrations applies every pending embedded schema migration for
// dialect against the already-open *sql.DB, creating the audit tables that
// the Store's row-count queries read.
func runMigrations(sqlDB *sql.DB, dialect string) error {
	driver, err := migrationDriver(sqlDB, dialect)
	if err != nil {
		return fmt.Errorf("audit table: failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("audit table: failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return fmt.Errorf("audit table: failed to construct migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("audit table: migration failed: %w", err)
	}
	return nil
}

func migrationDriver(sqlDB *sql.DB, dialect string) (database.Driver, error) {
	switch dialect {
	case "postgres":
		return migpostgres.WithInstance(sqlDB, &migpostgres.Config{})
	case "mysql":
		return migmysql.WithInstance(sqlDB, &migmysql.Config{})
	case "sqlite":
		return migsqlite.WithInstance(sqlDB, &migsqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported dialect for migration: %s", dialect)
	}
}
