// Package directory is the borrower lookup the circulation core consults for
// existence and per-borrower loan limits. Account management lives elsewhere;
// this package only mirrors the fields circulation needs.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

var (
	ErrBorrowerNotFound = errors.New("borrower not found")
	ErrInvalidBorrower  = errors.New("invalid borrower")
)

func NewBorrowerNotFoundError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrBorrowerNotFound, id)
}

// Borrower is the read-only view circulation has of a patron.
type Borrower struct {
	ID                 uuid.UUID `json:"id"`
	DisplayName        string    `json:"display_name"`
	MaxConcurrentLoans int       `json:"max_concurrent_loans"` // 0 = policy default
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Directory resolves borrowers by id. Implementations return an error
// wrapping ErrBorrowerNotFound for unknown ids.
type Directory interface {
	GetBorrower(ctx context.Context, id uuid.UUID) (*Borrower, error)
}

// Registry is a Directory that can also be written to.
type Registry interface {
	Directory
	UpsertBorrower(ctx context.Context, b *Borrower) error
}

// UpsertBorrowerRequest is the payload of PUT /borrowers/:id.
type UpsertBorrowerRequest struct {
	DisplayName        string `json:"display_name"`
	MaxConcurrentLoans int    `json:"max_concurrent_loans"`
}

// Validate validates UpsertBorrowerRequest
func (req UpsertBorrowerRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.DisplayName, validation.Length(0, 200)),
		validation.Field(&req.MaxConcurrentLoans, validation.Required, validation.Min(1), validation.Max(50)),
	)
}
