package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestServiceError_Is(t *testing.T) {
	err := validationError("work_order.complete", "hours_worked", "отрицательные часы")
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, "work_order.complete: validation error: отрицательные часы", err.Error())

	wrapped := fmt.Errorf("handler: %w", err)
	se, ok := AsServiceError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "hours_worked", se.Field)
	assert.Equal(t, "validation", se.KindName())
}

func TestServiceError_KindName(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{authorizationError("op", "machine"), "authorization"},
		{conflictError("op", "slot", "x"), "conflict"},
		{notFoundError("op", "slot"), "not_found"},
		{insufficientStockError("op", 2, "x"), "insufficient_stock"},
		{persistenceError("op", errors.New("disk full")), "persistence"},
	}
	for _, tt := range tests {
		se, ok := AsServiceError(tt.err)
		require.True(t, ok)
		assert.Equal(t, tt.expected, se.KindName())
	}

	se, _ := AsServiceError(insufficientStockError("op", 2, "x"))
	require.NotNil(t, se.LineItem)
	assert.Equal(t, 2, *se.LineItem)
}

func TestPersistenceError(t *testing.T) {
	assert.NoError(t, persistenceError("op", nil))

	original := conflictError("op", "slot", "x")
	assert.Same(t, original, persistenceError("other", original), "классифицированная ошибка не оборачивается")

	cause := errors.New("connection reset")
	err := persistenceError("op", cause)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)

	err = persistenceError("op", context.Canceled)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLookupError(t *testing.T) {
	assert.ErrorIs(t, lookupError("op", "machine", gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, lookupError("op", "machine", errors.New("boom")), ErrPersistence)
}
