package store

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"circulation-backend/pkg/database"
)

const dialectPostgres = "postgres"

// PgxStore implements Store over a pgxpool.Pool.
type PgxStore struct {
	pool    *pgxpool.Pool
	dialect goqu.DialectWrapper
}

func NewPgxStore(pool *pgxpool.Pool) *PgxStore {
	return &PgxStore{pool: pool, dialect: goqu.Dialect(dialectPostgres)}
}

func (s *PgxStore) Query(ctx context.Context, query string) (Rows, error) {
	return pgxQuery(ctx, s.pool, query)
}

func (s *PgxStore) Exec(ctx context.Context, query string) (int64, error) {
	return pgxExec(ctx, s.pool, query)
}

func (s *PgxStore) InTx(ctx context.Context, fn TxFunc) error {
	return database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, pgxTx{tx: tx})
	})
}

func (s *PgxStore) Dialect() goqu.DialectWrapper { return s.dialect }
func (s *PgxStore) Driver() string               { return dialectPostgres }
func (s *PgxStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool belongs to database.PostgresDB.
func (s *PgxStore) Close() error { return nil }

type pgxQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgxTx struct {
	tx pgx.Tx
}

func (t pgxTx) Query(ctx context.Context, query string) (Rows, error) {
	return pgxQuery(ctx, t.tx, query)
}

func (t pgxTx) Exec(ctx context.Context, query string) (int64, error) {
	return pgxExec(ctx, t.tx, query)
}

func pgxQuery(ctx context.Context, q pgxQueryer, query string) (Rows, error) {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func pgxExec(ctx context.Context, q pgxQueryer, query string) (int64, error) {
	tag, err := q.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// pgxRows wraps pgx.Rows to implement the Rows interface.
type pgxRows struct {
	rows pgx.Rows
}

func (p *pgxRows) Next() bool             { return p.rows.Next() }
func (p *pgxRows) Scan(dest ...any) error { return p.rows.Scan(dest...) }
func (p *pgxRows) Err() error             { return p.rows.Err() }

func (p *pgxRows) Close() error {
	p.rows.Close()
	return p.rows.Err()
}
