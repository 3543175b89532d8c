// Package policy evaluates borrower-side circulation rules. It holds no
// mutable state: every decision is a function of configuration and the facts
// read from the directory and the ledger.
package policy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"circulation-backend/internal/config"
	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/domains/directory"
)

const day = 24 * time.Hour

// ItemLookup resolves catalog items. Returns an error wrapping
// model.ErrItemNotFound for unknown ids.
type ItemLookup interface {
	GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error)
}

// OpenLoanCounter counts a borrower's open loans.
type OpenLoanCounter interface {
	CountOpenByBorrower(ctx context.Context, borrowerID uuid.UUID) (int, error)
}

type Engine struct {
	cfg       config.CirculationConfig
	borrowers directory.Directory
	items     ItemLookup
	loans     OpenLoanCounter
}

func NewEngine(cfg config.CirculationConfig, borrowers directory.Directory, items ItemLookup, loans OpenLoanCounter) *Engine {
	return &Engine{cfg: cfg, borrowers: borrowers, items: items, loans: loans}
}

// CheckBorrowEligible returns nil when the borrower may take a copy of the
// item, a *model.Denial when a rule refuses it, or a fault.
func (e *Engine) CheckBorrowEligible(ctx context.Context, borrowerID, itemID uuid.UUID) error {
	_, err := e.BorrowLimit(ctx, borrowerID, itemID)
	return err
}

// BorrowLimit runs the eligibility checks and returns the borrower's loan
// limit. The open-loan count it checks is read outside any transaction;
// Borrow re-checks the limit with CheckLoanLimit under a lock.
func (e *Engine) BorrowLimit(ctx context.Context, borrowerID, itemID uuid.UUID) (int, error) {
	borrower, err := e.borrowers.GetBorrower(ctx, borrowerID)
	if err != nil {
		if errors.Is(err, directory.ErrBorrowerNotFound) {
			return 0, model.Deny(model.ReasonBorrowerNotFound, "borrower %s does not exist", borrowerID)
		}
		return 0, err
	}

	if _, err := e.items.GetItem(ctx, itemID); err != nil {
		if errors.Is(err, model.ErrItemNotFound) {
			return 0, model.Deny(model.ReasonItemNotFound, "item %s does not exist", itemID)
		}
		return 0, err
	}

	open, err := e.loans.CountOpenByBorrower(ctx, borrowerID)
	if err != nil {
		return 0, err
	}

	limit := e.MaxConcurrentLoans(borrower)
	if err := CheckLoanLimit(borrowerID, open, limit); err != nil {
		return 0, err
	}
	return limit, nil
}

// CheckLoanLimit denies loan_limit_reached once open has reached limit.
func CheckLoanLimit(borrowerID uuid.UUID, open, limit int) error {
	if open >= limit {
		return model.Deny(model.ReasonLoanLimitReached, "borrower %s has %d of %d loans open", borrowerID, open, limit)
	}
	return nil
}

// MaxConcurrentLoans is the borrower's own limit, or the configured default.
func (e *Engine) MaxConcurrentLoans(b *directory.Borrower) int {
	if b != nil && b.MaxConcurrentLoans > 0 {
		return b.MaxConcurrentLoans
	}
	return e.cfg.DefaultMaxConcurrentLoans
}

// LoanPeriod returns the requested period or the default. Input is assumed
// validated against 1..MaxLoanPeriodDays.
func (e *Engine) LoanPeriod(requestedDays *int) time.Duration {
	days := e.cfg.DefaultLoanPeriodDays
	if requestedDays != nil && *requestedDays > 0 {
		days = min(*requestedDays, e.cfg.MaxLoanPeriodDays)
	}
	return time.Duration(days) * day
}

// RenewalExtension returns the requested extension or the default.
func (e *Engine) RenewalExtension(requestedDays *int) time.Duration {
	days := e.cfg.RenewalExtensionDays
	if requestedDays != nil && *requestedDays > 0 {
		days = *requestedDays
	}
	return time.Duration(days) * day
}

// FinePerDay resolves the rate for one return. Overrides are bounded to
// [0, MaxFinePerDay]; the result is never negative.
func (e *Engine) FinePerDay(override *decimal.Decimal) (decimal.Decimal, error) {
	if override == nil {
		return e.cfg.FinePerDay, nil
	}
	if override.IsNegative() || override.GreaterThan(e.cfg.MaxFinePerDay) {
		return decimal.Zero, model.NewInvalidInputError(errors.New("fine_per_day must be between 0 and " + e.cfg.MaxFinePerDay.StringFixed(2)))
	}
	return *override, nil
}

// Fine is days_overdue x perDay, zero when the loan is not overdue at now.
func Fine(loan *model.Loan, now time.Time, perDay decimal.Decimal) decimal.Decimal {
	days := loan.DaysOverdue(now)
	if days <= 0 || perDay.IsNegative() {
		return decimal.Zero
	}
	return perDay.Mul(decimal.NewFromInt(int64(days))).Round(2)
}

// CheckRenewal applies the renewal gate to an open loan: denied when more
// than RenewalGraceDays overdue, or when MaxRenewals (if set) is used up.
func (e *Engine) CheckRenewal(loan *model.Loan, now time.Time) error {
	if !loan.IsOpen() {
		return model.Deny(model.ReasonAlreadyClosed, "loan %s is already closed", loan.ID)
	}

	if days := loan.DaysOverdue(now); days > e.cfg.RenewalGraceDays {
		return model.Deny(model.ReasonTooOverdue,
			"loan %s is %d days overdue, renewal allowed up to %d", loan.ID, days, e.cfg.RenewalGraceDays)
	}

	if e.cfg.MaxRenewals > 0 && loan.RenewalCount >= e.cfg.MaxRenewals {
		return model.Deny(model.ReasonRenewalLimitReached,
			"loan %s was renewed %d times, limit is %d", loan.ID, loan.RenewalCount, e.cfg.MaxRenewals)
	}
	return nil
}

// Config exposes the policy settings.
func (e *Engine) Config() config.CirculationConfig {
	return e.cfg
}
