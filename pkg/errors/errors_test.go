package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedConstructors(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
		status    int
	}{
		{"invalid score", NewInvalidScoreError(1.5), IsInvalidScore, http.StatusBadRequest},
		{"self loop", NewSelfLoopError("physics"), IsSelfLoop, http.StatusBadRequest},
		{"connection init", NewConnectionInitError(cause), IsConnectionInit, http.StatusServiceUnavailable},
		{"exhausted", NewOperationExhaustedError("apply_batch", 3, cause), IsOperationExhausted, http.StatusServiceUnavailable},
		{"validation", NewValidationError("bad input"), IsValidation, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.predicate(tt.err))
			assert.True(t, tt.predicate(fmt.Errorf("wrapped: %w", tt.err)))
			assert.Equal(t, tt.status, HTTPStatusOf(tt.err))
		})
	}
}

func TestIsValidation_CoversCallerInputErrors(t *testing.T) {
	assert.True(t, IsValidation(NewInvalidScoreError(-0.1)))
	assert.True(t, IsValidation(NewSelfLoopError("a")))
	assert.False(t, IsValidation(NewOperationExhaustedError("op", 1, nil)))
}

func TestOperationExhaustedError_CarriesCause(t *testing.T) {
	err := NewOperationExhaustedError("apply_batch", 3, context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, err.Details["attempts"])
}

func TestHTTPStatusOf_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusOf(errors.New("boom")))
}

func TestNewUnavailableError(t *testing.T) {
	err := NewUnavailableError("store")
	assert.True(t, IsType(err, ErrorTypeUnavailable))
	assert.False(t, IsValidation(err))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatusOf(err))
	assert.Nil(t, GetAppError(errors.New("plain")))
}
