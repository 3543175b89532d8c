// Package migrations applies the embedded ledger schema with golang-migrate.
//
// PostgreSQL uses golang-migrate's postgres driver over lib/pq. SQLite uses
// the driver in sqlite_driver.go because golang-migrate's own sqlite3 driver
// pulls in mattn/go-sqlite3, which collides with the ncruces registration.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

//go:embed postgres/*.sql sqlite/*.sql
var embeddedFS embed.FS

// RunPostgres opens a short-lived lib/pq connection and migrates to the latest version.
func RunPostgres(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}
	return up("postgres", driver)
}

// RunSQLite migrates an already opened ncruces connection. The connection stays open.
func RunSQLite(db *sql.DB) error {
	driver, err := WithSQLiteInstance(db, &SQLiteConfig{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	return up("sqlite", driver)
}

func up(dir string, driver database.Driver) error {
	source, err := iofs.New(embeddedFS, dir)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, dir, driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug().Str("dialect", dir).Msg("[MIGRATE] Schema up to date")
			return nil
		}
		return err
	}

	version, dirty, _ := m.Version()
	log.Info().Str("dialect", dir).Uint("version", version).Bool("dirty", dirty).Msg("[MIGRATE] Schema migrated")
	return nil
}
