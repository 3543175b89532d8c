package directory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circulation-backend/internal/domains/directory"
	"circulation-backend/internal/testutil"
)

func TestSQLRegistry_Upsert(t *testing.T) {
	ctx := context.Background()
	reg := directory.NewSQLRegistry(testutil.NewSQLiteStore(t))
	id := uuid.New()

	_, err := reg.GetBorrower(ctx, id)
	assert.ErrorIs(t, err, directory.ErrBorrowerNotFound)

	require.NoError(t, reg.UpsertBorrower(ctx, &directory.Borrower{ID: id, DisplayName: "Ada", MaxConcurrentLoans: 3}))
	b, err := reg.GetBorrower(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", b.DisplayName)
	assert.Equal(t, 3, b.MaxConcurrentLoans)
	created := b.CreatedAt

	require.NoError(t, reg.UpsertBorrower(ctx, &directory.Borrower{ID: id, DisplayName: "Ada L.", MaxConcurrentLoans: 4}))
	b, err = reg.GetBorrower(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", b.DisplayName)
	assert.Equal(t, 4, b.MaxConcurrentLoans)
	assert.Equal(t, created, b.CreatedAt)
}
