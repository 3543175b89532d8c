package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"circulation-backend/internal/domains/circulation/model"
)

func TestDenial(t *testing.T) {
	d := model.Deny(model.ReasonNoCopiesAvailable, "item %s", "x")
	wrapped := fmt.Errorf("borrow: %w", d)

	assert.ErrorIs(t, wrapped, model.ErrDenied)
	assert.True(t, model.IsDenied(wrapped))
	assert.True(t, model.IsDenied(wrapped, model.ReasonLoanLimitReached, model.ReasonNoCopiesAvailable))
	assert.False(t, model.IsDenied(wrapped, model.ReasonTooOverdue))
	assert.Equal(t, "request denied: no_copies_available: item x", d.Error())

	got, ok := model.AsDenial(wrapped)
	assert.True(t, ok)
	assert.Equal(t, model.ReasonNoCopiesAvailable, got.Reason)
}

func TestFaultsAreNotDenials(t *testing.T) {
	id := uuid.New()
	faults := []error{
		model.NewItemNotFoundError(id),
		model.NewLoanNotFoundError(id),
		model.NewInvariantViolationError(id, "release", 2, 2),
		model.NewConcurrentModificationError(id),
		model.NewInvalidInputError(errors.New("bad")),
	}
	for _, err := range faults {
		assert.False(t, model.IsDenied(err), err.Error())
		assert.NotErrorIs(t, err, model.ErrDenied)
	}

	assert.True(t, model.IsInvariantViolation(faults[2]))
	assert.Contains(t, faults[2].Error(), "copies_total=2 copies_available=2")
	assert.True(t, model.IsConcurrentModification(faults[3]))
	assert.True(t, model.IsNotFoundError(faults[0]))
	assert.True(t, model.IsNotFoundError(faults[1]))
	assert.True(t, model.IsValidationError(faults[4]))
}
