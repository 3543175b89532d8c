// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"circulation-backend/internal/infrastructure/sqlite"
	"circulation-backend/internal/infrastructure/store"
)

// NewSQLiteStore opens a migrated ledger database in t.TempDir and closes it
// when the test ends.
func NewSQLiteStore(t testing.TB) store.Store {
	t.Helper()

	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db.Store()
}
