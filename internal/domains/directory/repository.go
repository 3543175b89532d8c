package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"circulation-backend/internal/infrastructure/store"
)

const tableBorrowers = "borrowers"

// SQLRegistry stores borrowers in the ledger database.
type SQLRegistry struct {
	store store.Store
	now   func() time.Time
}

func NewSQLRegistry(s store.Store) *SQLRegistry {
	return &SQLRegistry{store: s, now: time.Now}
}

func (r *SQLRegistry) GetBorrower(ctx context.Context, id uuid.UUID) (*Borrower, error) {
	ds := r.store.Dialect().From(tableBorrowers).
		Select("id", "display_name", "max_concurrent_loans", "created_at", "updated_at").
		Where(goqu.C("id").Eq(id.String()))

	var (
		b                    Borrower
		createdAt, updatedAt store.Timestamp
	)
	err := store.QueryRow(ctx, r.store, ds, &b.ID, &b.DisplayName, &b.MaxConcurrentLoans, &createdAt, &updatedAt)
	if errors.Is(err, store.ErrNoRows) {
		return nil, NewBorrowerNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}

	b.CreatedAt, b.UpdatedAt = createdAt.Time, updatedAt.Time
	return &b, nil
}

// UpsertBorrower inserts or updates by id inside one transaction.
func (r *SQLRegistry) UpsertBorrower(ctx context.Context, b *Borrower) error {
	now := r.now().UTC().Truncate(time.Microsecond)
	d := r.store.Dialect()

	return r.store.InTx(ctx, func(ctx context.Context, q store.Querier) error {
		update := d.Update(tableBorrowers).
			Set(goqu.Record{
				"display_name":         b.DisplayName,
				"max_concurrent_loans": b.MaxConcurrentLoans,
				"updated_at":           now,
			}).
			Where(goqu.C("id").Eq(b.ID.String()))

		n, err := store.Exec(ctx, q, update)
		if err != nil {
			return fmt.Errorf("failed to update borrower: %w", err)
		}
		if n == 1 {
			b.UpdatedAt = now
			return nil
		}

		insert := d.Insert(tableBorrowers).Rows(goqu.Record{
			"id":                   b.ID.String(),
			"display_name":         b.DisplayName,
			"max_concurrent_loans": b.MaxConcurrentLoans,
			"created_at":           now,
			"updated_at":           now,
		})
		if _, err := store.Exec(ctx, q, insert); err != nil {
			return fmt.Errorf("failed to insert borrower: %w", err)
		}
		b.CreatedAt, b.UpdatedAt = now, now
		return nil
	})
}
