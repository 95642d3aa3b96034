// Package migrations embeds the schema for each storage driver and applies it
// with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Postgres returns a migrator for the database at dsn. Callers must Close it.
func Postgres(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "postgres")
	if err != nil {
		return nil, fmt.Errorf("opening embedded postgres migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// UpPostgres applies every pending postgres migration.
func UpPostgres(dsn string) error {
	m, err := Postgres(dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	return up(m)
}

// UpSQLite applies every pending sqlite migration on an open handle.
// The handle stays open; the migrator is not closed because closing the
// sqlite3 driver closes the underlying *sql.DB.
func UpSQLite(db *sql.DB) error {
	src, err := iofs.New(files, "sqlite")
	if err != nil {
		return fmt.Errorf("opening embedded sqlite migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	return up(m)
}

func up(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
