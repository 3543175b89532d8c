package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// BORROW
// =====================================================
type BorrowRequest struct {
	BorrowerID     string `json:"borrower_id"`
	ItemID         string `json:"item_id"`
	LoanPeriodDays *int   `json:"loan_period_days,omitempty"` // default from policy
}

// Validate validates BorrowRequest
func (req BorrowRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.BorrowerID, validation.Required, is.UUID),
		validation.Field(&req.ItemID, validation.Required, is.UUID),
		validation.Field(&req.LoanPeriodDays, validation.NilOrNotEmpty, validation.Min(1), validation.Max(365)),
	)
}

// =====================================================
// RETURN / RENEW / DELETE
// =====================================================
type ReturnRequest struct {
	// FinePerDay overrides the configured rate for this return only.
	FinePerDay *decimal.Decimal `json:"fine_per_day,omitempty"`
}

// Validate rejects a negative override. The upper bound is configuration and
// is enforced by the policy engine.
func (req ReturnRequest) Validate() error {
	if req.FinePerDay == nil {
		return nil
	}
	return validation.Validate(req.FinePerDay.InexactFloat64(), validation.Min(0.0))
}

type RenewRequest struct {
	ExtensionDays *int `json:"extension_days,omitempty"` // default from policy
}

// Validate validates RenewRequest
func (req RenewRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.ExtensionDays, validation.NilOrNotEmpty, validation.Min(1), validation.Max(90)),
	)
}

// =====================================================
// ITEMS (ledger administration)
// =====================================================
type RegisterItemRequest struct {
	ItemID      string `json:"item_id,omitempty"` // generated when empty
	CopiesTotal int    `json:"copies_total"`
}

// Validate validates RegisterItemRequest
func (req RegisterItemRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.ItemID, is.UUID),
		validation.Field(&req.CopiesTotal, validation.Required, validation.Min(1), validation.Max(100000)),
	)
}

type ResizeItemRequest struct {
	CopiesTotal int `json:"copies_total"`
}

// Validate validates ResizeItemRequest
func (req ResizeItemRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.CopiesTotal, validation.Required, validation.Min(1), validation.Max(100000)),
	)
}

// =====================================================
// LISTING
// =====================================================
type ListLoansRequest struct {
	Status     string `form:"status"`
	BorrowerID string `form:"borrower_id"`
	ItemID     string `form:"item_id"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
}

// Validate validates ListLoansRequest
func (req ListLoansRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Status, validation.In(
			string(LoanStatusOpen),
			string(LoanStatusReturned),
			string(LoanStatusOverdue),
		)),
		validation.Field(&req.BorrowerID, is.UUID),
		validation.Field(&req.ItemID, is.UUID),
		validation.Field(&req.Page, validation.Min(1)),
		validation.Field(&req.Limit, validation.Min(1), validation.Max(100)),
	)
}

// ToFilter converts a validated request into a LoanFilter.
func (req ListLoansRequest) ToFilter() LoanFilter {
	page, limit := req.Page, req.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	f := LoanFilter{
		Status: LoanStatus(req.Status),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if id, err := uuid.Parse(req.BorrowerID); err == nil {
		f.BorrowerID = &id
	}
	if id, err := uuid.Parse(req.ItemID); err == nil {
		f.ItemID = &id
	}
	return f
}

// =====================================================
// RESPONSES
// =====================================================

// LoanResponse adds the derived overdue fields to a Loan.
type LoanResponse struct {
	Loan
	IsOverdue   bool            `json:"is_overdue"`
	DaysOverdue int             `json:"days_overdue"`
	AccruedFine decimal.Decimal `json:"accrued_fine"`
}

type ListLoansResponse struct {
	Loans []LoanResponse `json:"loans"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

type ReconcileResponse struct {
	CheckedAt  time.Time               `json:"checked_at"`
	Violations []ConservationViolation `json:"violations"`
}
