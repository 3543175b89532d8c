package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"circulation-backend/internal/domains/circulation/model"
)

// ServiceInterface defines circulation use cases.
//
// Business refusals come back as a *model.Denial (errors.Is(err,
// model.ErrDenied)); everything else is a fault.
type ServiceInterface interface {
	// Borrow checks eligibility, then takes a copy and opens a loan in one
	// transaction. Denied: borrower_not_found, item_not_found,
	// loan_limit_reached, no_copies_available.
	Borrow(ctx context.Context, req model.BorrowRequest) (*model.Loan, error)

	// Return closes the loan with its fine and releases the copy in one
	// transaction. A second return is denied (already_closed) and releases nothing.
	Return(ctx context.Context, loanID uuid.UUID, req model.ReturnRequest) (*model.Loan, error)

	// Renew extends due_at. Denied: already_closed, too_overdue, renewal_limit_reached.
	Renew(ctx context.Context, loanID uuid.UUID, req model.RenewRequest) (*model.Loan, error)

	// ForceClose closes an open loan without a fine and releases exactly one copy.
	ForceClose(ctx context.Context, loanID uuid.UUID) (*model.Loan, error)

	// DeleteLoan removes a loan record. Open loans need force and release one copy.
	DeleteLoan(ctx context.Context, loanID uuid.UUID, force bool) error

	GetLoan(ctx context.Context, loanID uuid.UUID) (*model.LoanResponse, error)
	ListLoans(ctx context.Context, req model.ListLoansRequest) (*model.ListLoansResponse, error)
	ListOverdue(ctx context.Context, limit int) ([]model.LoanResponse, error)

	// RefreshOverdueFines persists the accrued fine of every open overdue loan.
	RefreshOverdueFines(ctx context.Context) (int, error)

	CheckBorrowEligible(ctx context.Context, borrowerID, itemID uuid.UUID) error

	RegisterItem(ctx context.Context, req model.RegisterItemRequest) (*model.Item, error)
	ResizeItem(ctx context.Context, itemID uuid.UUID, req model.ResizeItemRequest) (*model.Item, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*model.Item, error)
	ListItems(ctx context.Context, page, limit int) ([]model.Item, error)

	GetAvailability(ctx context.Context, itemID uuid.UUID) (*model.Availability, error)
	Statistics(ctx context.Context) (*model.LoanStatistics, error)

	// Reconcile reports items whose counter disagrees with their open loans.
	Reconcile(ctx context.Context) (*model.ReconcileResponse, error)
}

// OverrideKind names an administrative action that bypassed the normal loan lifecycle.
type OverrideKind string

const (
	OverrideForceClose  OverrideKind = "force_close"
	OverrideForceDelete OverrideKind = "force_delete"
	OverrideResize      OverrideKind = "resize"
)

// OverrideEvent is emitted after an override commits.
type OverrideEvent struct {
	Kind   OverrideKind `json:"kind"`
	ItemID uuid.UUID    `json:"item_id"`
	LoanID *uuid.UUID   `json:"loan_id,omitempty"`
	At     time.Time    `json:"at"`
}

// OverrideNotifier receives override events. Failures are logged, never
// surfaced: the override itself has already committed.
type OverrideNotifier interface {
	NotifyOverride(ctx context.Context, event OverrideEvent) error
}
