package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circulation-backend/internal/infrastructure/store"
	"circulation-backend/internal/testutil"
)

func insertItem(d goqu.DialectWrapper, id uuid.UUID, copies int, at time.Time) *goqu.InsertDataset {
	return d.Insert("items").Rows(goqu.Record{
		"id":               id.String(),
		"copies_total":     copies,
		"copies_available": copies,
		"created_at":       at,
		"updated_at":       at,
	})
}

func TestSqlxStore_InTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSQLiteStore(t)
	id := uuid.New()
	at := time.Date(2025, time.January, 2, 3, 4, 5, 6000, time.UTC)

	boom := errors.New("boom")
	err := st.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		_, err := store.Exec(ctx, q, insertItem(st.Dialect(), id, 1, at))
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, store.QueryRow(ctx, st, st.Dialect().From("items").Select(goqu.COUNT(goqu.Star())), &count))
	assert.Zero(t, count)

	require.NoError(t, st.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		_, err := store.Exec(ctx, q, insertItem(st.Dialect(), id, 1, at))
		return err
	}))

	var created store.Timestamp
	err = store.QueryRow(ctx, st, st.Dialect().From("items").Select("created_at").Where(goqu.C("id").Eq(id.String())), &created)
	require.NoError(t, err)
	assert.True(t, at.Equal(created.Time), "got %s", created.Time)
}

func TestSqlxStore_ConstraintErrors(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSQLiteStore(t)
	id := uuid.New()
	at := time.Now().UTC()

	_, err := store.Exec(ctx, st, insertItem(st.Dialect(), id, 2, at))
	require.NoError(t, err)

	_, err = store.Exec(ctx, st, insertItem(st.Dialect(), id, 2, at))
	assert.True(t, store.IsUniqueViolation(err), "got %v", err)

	_, err = store.Exec(ctx, st, st.Dialect().Update("items").
		Set(goqu.Record{"copies_available": 3}).
		Where(goqu.C("id").Eq(id.String())))
	assert.True(t, store.IsCheckViolation(err), "got %v", err)

	_, err = store.Exec(ctx, st, st.Dialect().Insert("loans").Rows(goqu.Record{
		"id":          uuid.NewString(),
		"borrower_id": uuid.NewString(),
		"item_id":     uuid.NewString(),
		"opened_at":   at,
		"due_at":      at,
	}))
	assert.True(t, store.IsForeignKeyViolation(err), "got %v", err)

	err = store.QueryRow(ctx, st, st.Dialect().From("items").Select("id").Where(goqu.C("id").Eq("missing")), new(string))
	assert.ErrorIs(t, err, store.ErrNoRows)
}

func TestNullTimestamp_Scan(t *testing.T) {
	var nt store.NullTimestamp
	require.NoError(t, nt.Scan(nil))
	assert.Nil(t, nt.Ptr())

	require.NoError(t, nt.Scan("2025-04-05 06:07:08.123456"))
	require.NotNil(t, nt.Ptr())
	assert.Equal(t, time.Date(2025, time.April, 5, 6, 7, 8, 123456000, time.UTC), *nt.Ptr())

	assert.Error(t, nt.Scan(42))

	var ts store.Timestamp
	assert.Error(t, ts.Scan(nil))
}

func TestLockXact_NoOpOnSQLite(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewSQLiteStore(t)

	err := st.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		return store.LockXact(ctx, q, st.Driver(), "borrower:"+uuid.NewString())
	})
	assert.NoError(t, err)
}
