package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is the ledger row for one circulating title.
// Invariant: 0 <= CopiesAvailable <= CopiesTotal and
// CopiesAvailable = CopiesTotal - open loans for the item.
type Item struct {
	ID              uuid.UUID `json:"id" db:"id"`
	CopiesTotal     int       `json:"copies_total" db:"copies_total"`
	CopiesAvailable int       `json:"copies_available" db:"copies_available"`
	Version         int64     `json:"version" db:"version"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Outstanding is the number of copies currently on loan.
func (i *Item) Outstanding() int {
	return i.CopiesTotal - i.CopiesAvailable
}

// CloseReason records how a loan left the open state.
type CloseReason string

const (
	CloseReasonReturned    CloseReason = "returned"
	CloseReasonForceClosed CloseReason = "force_closed"
)

// Loan links one borrower to one copy of an item.
type Loan struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	BorrowerID   uuid.UUID       `json:"borrower_id" db:"borrower_id"`
	ItemID       uuid.UUID       `json:"item_id" db:"item_id"`
	OpenedAt     time.Time       `json:"opened_at" db:"opened_at"`
	DueAt        time.Time       `json:"due_at" db:"due_at"`
	ReturnedAt   *time.Time      `json:"returned_at,omitempty" db:"returned_at"`
	FineAmount   decimal.Decimal `json:"fine_amount" db:"fine_amount"`
	RenewalCount int             `json:"renewal_count" db:"renewal_count"`
	CloseReason  *CloseReason    `json:"close_reason,omitempty" db:"close_reason"`
}

// IsOpen reports whether the loan still holds a copy.
func (l *Loan) IsOpen() bool {
	return l.ReturnedAt == nil
}

// IsOverdue: open and past due.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.IsOpen() && now.After(l.DueAt)
}

// DaysOverdue counts whole days past due. Zero when the loan is closed or not yet due.
func (l *Loan) DaysOverdue(now time.Time) int {
	if !l.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(l.DueAt) / (24 * time.Hour))
}

// Availability is a single consistent snapshot of an item's circulation state.
type Availability struct {
	ItemID            uuid.UUID `json:"item_id"`
	CopiesTotal       int       `json:"copies_total"`
	CopiesAvailable   int       `json:"copies_available"`
	OpenLoanCount     int       `json:"open_loan_count"`
	LifetimeLoanCount int       `json:"lifetime_loan_count"`
}

// LoanStatistics aggregates over every loan in the ledger.
type LoanStatistics struct {
	TotalLoans       int             `json:"total_loans"`
	OpenLoans        int             `json:"open_loans"`
	ReturnedLoans    int             `json:"returned_loans"`
	OverdueLoans     int             `json:"overdue_loans"`
	OutstandingFines decimal.Decimal `json:"outstanding_fines"`
	CollectedFines   decimal.Decimal `json:"collected_fines"`
	CompletionRate   float64         `json:"completion_rate"`
	OverdueRate      float64         `json:"overdue_rate"`
}

// LoanStatus filters loan listings.
type LoanStatus string

const (
	LoanStatusAll      LoanStatus = ""
	LoanStatusOpen     LoanStatus = "open"
	LoanStatusReturned LoanStatus = "returned"
	LoanStatusOverdue  LoanStatus = "overdue"
)

// LoanFilter selects loans for listing. Zero values mean "any".
type LoanFilter struct {
	Status     LoanStatus
	BorrowerID *uuid.UUID
	ItemID     *uuid.UUID
	Limit      int
	Offset     int
}

// ConservationViolation describes an item whose counter disagrees with its open loans.
type ConservationViolation struct {
	ItemID          uuid.UUID `json:"item_id"`
	CopiesTotal     int       `json:"copies_total"`
	CopiesAvailable int       `json:"copies_available"`
	OpenLoanCount   int       `json:"open_loan_count"`
}

// Expected is the available count implied by the open loans.
func (v ConservationViolation) Expected() int {
	return v.CopiesTotal - v.OpenLoanCount
}
