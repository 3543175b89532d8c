package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4/database"
)

const defaultMigrationsTable = "schema_migrations"

var errNilConfig = errors.New("no config")

// SQLiteConfig configures the ncruces-backed migration driver.
type SQLiteConfig struct {
	MigrationsTable string
}

// sqliteDriver implements database.Driver on a *sql.DB opened with the
// ncruces driver. It never closes the connection it was given.
type sqliteDriver struct {
	db     *sql.DB
	locked atomic.Bool
	table  string
}

// WithSQLiteInstance wraps an open connection and creates the version table.
func WithSQLiteInstance(db *sql.DB, config *SQLiteConfig) (database.Driver, error) {
	if config == nil {
		return nil, errNilConfig
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	table := config.MigrationsTable
	if table == "" {
		table = defaultMigrationsTable
	}

	d := &sqliteDriver{db: db, table: table}
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (version uint64, dirty bool);
	CREATE UNIQUE INDEX IF NOT EXISTS version_unique ON %s (version);
	`, table, table)
	if _, err := db.Exec(query); err != nil {
		return nil, &database.Error{OrigErr: err, Query: []byte(query)}
	}
	return d, nil
}

func (d *sqliteDriver) Open(string) (database.Driver, error) {
	return nil, errors.New("open not supported; use WithSQLiteInstance")
}

// Close leaves the connection to its owner.
func (d *sqliteDriver) Close() error { return nil }

func (d *sqliteDriver) Lock() error {
	if !d.locked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

func (d *sqliteDriver) Unlock() error {
	if !d.locked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

func (d *sqliteDriver) Run(migration io.Reader) error {
	body, err := io.ReadAll(migration)
	if err != nil {
		return err
	}
	query := string(body)

	return d.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(query); err != nil {
			return &database.Error{OrigErr: err, Query: body}
		}
		return nil
	})
}

func (d *sqliteDriver) SetVersion(version int, dirty bool) error {
	return d.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM " + d.table); err != nil {
			return &database.Error{OrigErr: err, Err: "clear version table failed"}
		}
		// A dirty NilVersion is recorded too, see golang-migrate issue 330.
		if version >= 0 || (version == database.NilVersion && dirty) {
			query := fmt.Sprintf(`INSERT INTO %s (version, dirty) VALUES (?, ?)`, d.table)
			if _, err := tx.Exec(query, version, dirty); err != nil {
				return &database.Error{OrigErr: err, Query: []byte(query)}
			}
		}
		return nil
	})
}

func (d *sqliteDriver) Version() (int, bool, error) {
	var (
		version int
		dirty   bool
	)
	err := d.db.QueryRow("SELECT version, dirty FROM " + d.table + " LIMIT 1").Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return database.NilVersion, false, nil
	}
	if err != nil {
		return 0, false, &database.Error{OrigErr: err, Err: "read version failed"}
	}
	return version, dirty, nil
}

func (d *sqliteDriver) Drop() error {
	rows, err := d.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return err
	}

	for _, name := range tables {
		if _, err := d.db.Exec("DROP TABLE IF EXISTS " + name); err != nil {
			return &database.Error{OrigErr: err, Err: "drop failed"}
		}
	}
	return nil
}

func (d *sqliteDriver) inTx(fn func(*sql.Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}
