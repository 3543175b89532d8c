// Package store hides the SQL backend behind a small adapter so the ledger
// repositories run unchanged on PostgreSQL (pgx) and SQLite (sqlx + ncruces).
// Statements are rendered by goqu for the active dialect and executed as
// interpolated SQL.
package store

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
)

var ErrNoRows = errors.New("store: no rows in result set")

// Querier is satisfied by both the pooled connection and an open transaction.
type Querier interface {
	Query(ctx context.Context, query string) (Rows, error)
	Exec(ctx context.Context, query string) (int64, error)
}

// Rows defines the interface for query result rows
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// TxFunc runs inside a transaction. Returning an error rolls it back.
type TxFunc func(ctx context.Context, q Querier) error

// Store is a Querier that can also open transactions.
type Store interface {
	Querier
	Dialect() goqu.DialectWrapper
	InTx(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
	Driver() string
	Close() error
}

// SQLBuilder is implemented by every goqu dataset.
type SQLBuilder interface {
	ToSQL() (string, []interface{}, error)
}

// QueryRow renders b and scans the first row into dest. ErrNoRows when empty.
func QueryRow(ctx context.Context, q Querier, b SQLBuilder, dest ...any) error {
	query, _, err := b.ToSQL()
	if err != nil {
		return err
	}

	rows, err := q.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return ErrNoRows
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	return rows.Close()
}

// QueryAll renders b and calls scan once per row. Rows are fully drained
// before returning so the connection is free for the next statement.
func QueryAll(ctx context.Context, q Querier, b SQLBuilder, scan func(Rows) error) error {
	query, _, err := b.ToSQL()
	if err != nil {
		return err
	}

	rows, err := q.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return rows.Close()
}

// Exec renders b and returns rows affected.
func Exec(ctx context.Context, q Querier, b SQLBuilder) (int64, error) {
	query, _, err := b.ToSQL()
	if err != nil {
		return 0, err
	}
	return q.Exec(ctx, query)
}
