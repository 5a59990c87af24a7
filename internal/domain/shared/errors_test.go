package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{ErrUnknownUser, ErrValidation},
		{ErrUserExists, ErrValidation},
		{ErrInvalidEvent, ErrValidation},
		{ErrNotEligible, ErrEligibility},
		{ErrOutOfStock, ErrEligibility},
		{ErrInsufficientPoints, ErrEligibility},
		{ErrMissionInactive, ErrEligibility},
		{ErrNegativeBalance, ErrConsistency},
		{ErrManyActive, ErrConsistency},
		{ErrLockUnavailable, ErrConsistency},
		{ErrStoreClosed, ErrStorage},
	}

	kinds := []error{ErrValidation, ErrEligibility, ErrConsistency, ErrStorage}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			for _, k := range kinds {
				assert.Equal(t, k == tt.kind, errors.Is(tt.err, k), "kind %v", k)
			}
		})
	}
}

func TestSubKinds(t *testing.T) {
	assert.True(t, IsNotFound(ErrUnknownMission))
	assert.False(t, IsNotFound(ErrMissionExists))
	assert.True(t, IsAlreadyExists(fmt.Errorf("seed: %w", ErrItemExists)))
	assert.ErrorIs(t, ErrInvalidItem, ErrInvalidInput)
}

func TestStorage(t *testing.T) {
	assert.NoError(t, Storage("ledger", "Op", nil))

	io := errors.New("connection reset")
	err := Storage("ledger", "Op", io)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, io)
	assert.True(t, IsRetryable(err))

	// Errors that already carry a kind are returned as is.
	assert.Same(t, ErrOutOfStock, Storage("ledger", "Op", ErrOutOfStock))
	assert.False(t, IsRetryable(ErrOutOfStock))
}

func TestDomainError_Message(t *testing.T) {
	err := WrapError("shop", "Redeem", ErrStorage, "write failed", errors.New("disk full"))
	assert.Equal(t, "shop.Redeem: write failed: disk full", err.Error())
	assert.Equal(t, "user.Find: unknown user", ErrUnknownUser.Error())
}
