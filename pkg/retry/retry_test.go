package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circulation-backend/pkg/retry"
)

var (
	errTransient = errors.New("transient")
	errPermanent = errors.New("permanent")
)

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestWithExponentialBackoff_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := retry.WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, retry.If(isTransient), retry.WithBaseDelay(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithExponentialBackoff_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := retry.WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return errPermanent
	}, retry.If(isTransient))

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoff_NothingRetriedByDefault(t *testing.T) {
	calls := 0
	err := retry.WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoff_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := retry.WithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, retry.If(isTransient), retry.WithMaxAttempts(4), retry.WithBaseDelay(0))

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
}

func TestWithExponentialBackoff_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry.WithExponentialBackoff(ctx, func(context.Context) error {
		calls++
		cancel()
		return errTransient
	}, retry.If(isTransient), retry.WithBaseDelay(time.Second))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestOptions_Validate(t *testing.T) {
	noop := func(context.Context) error { return nil }

	assert.ErrorIs(t, retry.WithExponentialBackoff(context.Background(), noop, retry.WithMaxAttempts(0)), retry.ErrInvalidMaxAttempts)
	assert.ErrorIs(t, retry.WithExponentialBackoff(context.Background(), noop, retry.WithBaseDelay(-time.Second)), retry.ErrNegativeBaseDelay)
	assert.ErrorIs(t, retry.WithExponentialBackoff(context.Background(), noop, retry.WithJitterFactor(1.5)), retry.ErrInvalidJitterFactor)
}
