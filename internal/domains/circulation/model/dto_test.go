package model_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"circulation-backend/internal/domains/circulation/model"
)

func TestReturnRequest_Validate(t *testing.T) {
	rate := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	assert.NoError(t, model.ReturnRequest{}.Validate())
	assert.NoError(t, model.ReturnRequest{FinePerDay: rate("0")}.Validate())
	// Above the default cap: the engine decides against its configured bound.
	assert.NoError(t, model.ReturnRequest{FinePerDay: rate("150")}.Validate())
	assert.Error(t, model.ReturnRequest{FinePerDay: rate("-0.01")}.Validate())
}
