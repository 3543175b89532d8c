package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ncruces/go-sqlite3"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// IsUniqueViolation reports a duplicate key on either backend.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var sqErr *sqlite3.Error
	if errors.As(err, &sqErr) {
		code := sqErr.ExtendedCode()
		return code == sqlite3.CONSTRAINT_PRIMARYKEY || code == sqlite3.CONSTRAINT_UNIQUE
	}
	return false
}

// IsForeignKeyViolation reports a dangling reference on either backend.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	var sqErr *sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode() == sqlite3.CONSTRAINT_FOREIGNKEY
	}
	return false
}

// IsCheckViolation reports a CHECK constraint failure on either backend.
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCheckViolation
	}
	var sqErr *sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode() == sqlite3.CONSTRAINT_CHECK
	}
	return false
}
