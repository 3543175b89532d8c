package store

import (
	"context"

	"github.com/doug-martin/goqu/v9"
)

// LockXact serialises transactions that lock the same key until the
// enclosing transaction ends, so q must be the Querier handed out by InTx.
// On PostgreSQL it takes a transaction-scoped advisory lock. SQLite allows a
// single writer at a time, so there it is a no-op.
func LockXact(ctx context.Context, q Querier, driver, key string) error {
	if driver != dialectPostgres {
		return nil
	}
	_, err := Exec(ctx, q, advisoryXactLock(key))
	return err
}

func advisoryXactLock(key string) *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		Select(goqu.Func("pg_advisory_xact_lock", goqu.Func("hashtextextended", key, 0)))
}
