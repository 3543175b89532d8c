package store

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"

	"circulation-backend/pkg/database"
)

// DialectSQLite is the sqlite3 dialect with a fixed-width UTC time layout, so
// TEXT timestamp columns compare correctly as strings.
const DialectSQLite = "sqlite3-ledger"

// SQLiteTimeFormat is the on-disk layout of every timestamp column in SQLite.
const SQLiteTimeFormat = "2006-01-02 15:04:05.000000"

func init() {
	opts := sqlite3.DialectOptions()
	opts.TimeFormat = SQLiteTimeFormat
	goqu.RegisterDialect(DialectSQLite, opts)
}

// SqlxStore implements Store over a sqlx.DB.
type SqlxStore struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	driver  string
}

func NewSqlxStore(db *sqlx.DB, dialect string) *SqlxStore {
	return &SqlxStore{db: db, dialect: goqu.Dialect(dialect), driver: dialect}
}

func (s *SqlxStore) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stdRows{rows: rows}, nil
}

func (s *SqlxStore) Exec(ctx context.Context, query string) (int64, error) {
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SqlxStore) InTx(ctx context.Context, fn TxFunc) error {
	return database.WithSqlxTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(ctx, sqlxTx{tx: tx})
	})
}

func (s *SqlxStore) Dialect() goqu.DialectWrapper { return s.dialect }
func (s *SqlxStore) Driver() string               { return s.driver }
func (s *SqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
func (s *SqlxStore) Close() error { return s.db.Close() }

type sqlxTx struct {
	tx *sqlx.Tx
}

func (t sqlxTx) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &stdRows{rows: rows}, nil
}

func (t sqlxTx) Exec(ctx context.Context, query string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// stdRows wraps standard library sql.Rows to implement Rows
type stdRows struct {
	rows *sql.Rows
}

func (s *stdRows) Next() bool             { return s.rows.Next() }
func (s *stdRows) Scan(dest ...any) error { return s.rows.Scan(dest...) }
func (s *stdRows) Err() error             { return s.rows.Err() }
func (s *stdRows) Close() error           { return s.rows.Close() }
