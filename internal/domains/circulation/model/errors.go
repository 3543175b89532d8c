package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ===================================
// DENIALS
// ===================================

// ErrDenied matches every *Denial with errors.Is. A denial is an expected
// business outcome: the ledger is unchanged and retrying will not help until
// state changes.
var ErrDenied = errors.New("request denied")

// DenialReason is the machine readable cause of a denial.
type DenialReason string

const (
	ReasonNoCopiesAvailable      DenialReason = "no_copies_available"
	ReasonLoanLimitReached       DenialReason = "loan_limit_reached"
	ReasonBorrowerNotFound       DenialReason = "borrower_not_found"
	ReasonItemNotFound           DenialReason = "item_not_found"
	ReasonAlreadyClosed          DenialReason = "already_closed"
	ReasonTooOverdue             DenialReason = "too_overdue"
	ReasonRenewalLimitReached    DenialReason = "renewal_limit_reached"
	ReasonResizeBelowOutstanding DenialReason = "resize_below_outstanding"
	ReasonLoanStillOpen          DenialReason = "loan_still_open"
)

// Denial carries the reason for a refused operation.
type Denial struct {
	Reason  DenialReason
	Message string
}

func (d *Denial) Error() string {
	if d.Message == "" {
		return fmt.Sprintf("%s: %s", ErrDenied, d.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrDenied, d.Reason, d.Message)
}

func (d *Denial) Is(target error) bool {
	return target == ErrDenied
}

// Deny builds a denial with a formatted message.
func Deny(reason DenialReason, format string, args ...any) *Denial {
	return &Denial{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsDenial extracts the denial from err, if any.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsDenied reports whether err is a denial. With reasons given, the denial
// must match one of them.
func IsDenied(err error, reasons ...DenialReason) bool {
	d, ok := AsDenial(err)
	if !ok {
		return false
	}
	if len(reasons) == 0 {
		return true
	}
	for _, r := range reasons {
		if d.Reason == r {
			return true
		}
	}
	return false
}

// ===================================
// FAULTS
// ===================================

var (
	// ErrItemNotFound is returned when the item has no ledger row
	ErrItemNotFound = errors.New("item not found")

	// ErrItemAlreadyExists is returned when registering a duplicate item
	ErrItemAlreadyExists = errors.New("item already exists")

	// ErrLoanNotFound is returned when the loan record does not exist
	ErrLoanNotFound = errors.New("loan not found")

	// ErrInvariantViolation is returned when a ledger update would leave
	// copies_available outside [0, copies_total]. Never clamped.
	ErrInvariantViolation = errors.New("ledger invariant violation")

	// ErrConcurrentModification is returned when an optimistic guard lost a race.
	// The only fault retried internally.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInvalidInput wraps request validation failures
	ErrInvalidInput = errors.New("invalid input")
)

// ===================================
// ERROR HELPERS
// ===================================

func NewItemNotFoundError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrItemNotFound, id)
}

func NewItemAlreadyExistsError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrItemAlreadyExists, id)
}

func NewLoanNotFoundError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrLoanNotFound, id)
}

// NewInvariantViolationError creates error with ledger state details
func NewInvariantViolationError(itemID uuid.UUID, op string, total, available int) error {
	return fmt.Errorf("%w: %s on item=%s with copies_total=%d copies_available=%d",
		ErrInvariantViolation, op, itemID, total, available)
}

func NewConcurrentModificationError(loanID uuid.UUID) error {
	return fmt.Errorf("%w: loan=%s", ErrConcurrentModification, loanID)
}

func NewInvalidInputError(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrLoanNotFound)
}

func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
