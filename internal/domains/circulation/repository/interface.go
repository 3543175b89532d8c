package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/infrastructure/store"
)

// Every method takes the Querier it runs on: the Store itself for standalone
// reads, or the transaction handed out by Store.InTx for atomic units.

// LedgerRepository owns the per-item copy counters.
type LedgerRepository interface {
	RegisterItem(ctx context.Context, q store.Querier, item *model.Item) error
	GetItem(ctx context.Context, q store.Querier, id uuid.UUID) (*model.Item, error)
	ListItems(ctx context.Context, q store.Querier, limit, offset int) ([]model.Item, error)

	// TryAcquireCopy decrements copies_available when positive.
	// Returns a *model.Denial (no_copies_available) when none is left.
	TryAcquireCopy(ctx context.Context, q store.Querier, id uuid.UUID, now time.Time) error

	// ReleaseCopy increments copies_available when below copies_total.
	// A miss on an existing item is model.ErrInvariantViolation.
	ReleaseCopy(ctx context.Context, q store.Querier, id uuid.UUID, now time.Time) error

	// Resize sets copies_total, shifting copies_available by the same delta.
	// Denied (resize_below_outstanding) when newTotal < outstanding copies.
	Resize(ctx context.Context, q store.Querier, id uuid.UUID, newTotal int, now time.Time) (*model.Item, error)
}

// LoanRepository owns loan records.
type LoanRepository interface {
	Open(ctx context.Context, q store.Querier, loan *model.Loan) error
	GetByID(ctx context.Context, q store.Querier, id uuid.UUID) (*model.Loan, error)

	// Close sets returned_at and fine_amount on an open loan. Returns false
	// when the loan was already closed, in which case nothing changed.
	Close(ctx context.Context, q store.Querier, id uuid.UUID, at time.Time, fine decimal.Decimal, reason model.CloseReason) (bool, error)

	// Renew moves due_at and bumps renewal_count, guarded on the renewal_count
	// previously read. Returns false when the guard did not match.
	Renew(ctx context.Context, q store.Querier, id uuid.UUID, expectedRenewals int, newDue time.Time) (bool, error)

	// Delete removes the loan. With openOnly it matches an open loan only and
	// returns false when the loan was closed in between.
	Delete(ctx context.Context, q store.Querier, id uuid.UUID, openOnly bool) (bool, error)
	UpdateAccruedFine(ctx context.Context, q store.Querier, id uuid.UUID, fine decimal.Decimal) (bool, error)

	CountOpenByBorrower(ctx context.Context, q store.Querier, borrowerID uuid.UUID) (int, error)
	List(ctx context.Context, q store.Querier, filter model.LoanFilter, now time.Time) ([]model.Loan, error)
	ListOverdue(ctx context.Context, q store.Querier, now time.Time, limit int) ([]model.Loan, error)
}

// QueryRepository answers read-only aggregate questions, each in one statement.
type QueryRepository interface {
	Availability(ctx context.Context, q store.Querier, itemID uuid.UUID) (*model.Availability, error)
	Statistics(ctx context.Context, q store.Querier, now time.Time) (*model.LoanStatistics, error)
	ConservationViolations(ctx context.Context, q store.Querier) ([]model.ConservationViolation, error)
}
