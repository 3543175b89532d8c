// Package sqlite opens the embedded ledger database used for local
// development, the admin CLI and the test suite.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rs/zerolog/log"

	"circulation-backend/internal/infrastructure/migrations"
	"circulation-backend/internal/infrastructure/store"
)

// DB owns the SQLite connection.
type DB struct {
	conn *sqlx.DB
	path string
}

// NewDB opens path, configures pragmas and runs migrations. The parent
// directory is created when missing.
//
// The pool is limited to one connection: SQLite serialises writers anyway and
// a single connection turns lock contention into queueing instead of SQLITE_BUSY.
func NewDB(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	dsn := "file:" + path + "?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := migrations.RunSQLite(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Str("path", path).Msg("[SQLITE] Database initialized")

	return &DB{conn: sqlx.NewDb(conn, "sqlite3"), path: path}, nil
}

// Store returns the ledger store bound to this connection.
func (db *DB) Store() *store.SqlxStore {
	return store.NewSqlxStore(db.conn, store.DialectSQLite)
}

// Close releases database resources.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	log.Debug().Str("path", db.path).Msg("[SQLITE] Closing database")
	return db.conn.Close()
}
