package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Caller input
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeInvalidScore ErrorType = "INVALID_SCORE"
	ErrorTypeSelfLoop     ErrorType = "SELF_LOOP"

	// Store access
	ErrorTypeUnavailable        ErrorType = "UNAVAILABLE"
	ErrorTypeConnectionInit     ErrorType = "CONNECTION_INIT"
	ErrorTypeOperationExhausted ErrorType = "OPERATION_EXHAUSTED"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(errType ErrorType, status int, message string) *AppError {
	return &AppError{Type: errType, Message: message, HTTPStatus: status}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewInvalidScoreError reports a synergy score outside [0, 1].
func NewInvalidScoreError(score float64) *AppError {
	err := newError(ErrorTypeInvalidScore, http.StatusBadRequest,
		fmt.Sprintf("synergy score %v is outside [0, 1]", score))
	err.Details = map[string]interface{}{"score": score}
	return err
}

// NewSelfLoopError reports an edge whose source and target are the same domain.
func NewSelfLoopError(domain string) *AppError {
	err := newError(ErrorTypeSelfLoop, http.StatusBadRequest,
		fmt.Sprintf("domain %q cannot link to itself", domain))
	err.Details = map[string]interface{}{"domain": domain}
	return err
}

// NewUnavailableError reports a dependency that is not wired or not reachable
func NewUnavailableError(service string) *AppError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("service '%s' is unavailable", service))
}

// NewConnectionInitError reports that the shared store handle could not be created.
// It is never retried by the connection layer.
func NewConnectionInitError(err error) *AppError {
	appErr := newError(ErrorTypeConnectionInit, http.StatusServiceUnavailable,
		"failed to initialize store connection")
	appErr.Cause = err
	return appErr
}

// NewOperationExhaustedError reports a remote operation that kept failing until
// its attempts or deadline ran out. Cause is the last underlying failure.
func NewOperationExhaustedError(operation string, attempts int, err error) *AppError {
	appErr := newError(ErrorTypeOperationExhausted, http.StatusServiceUnavailable,
		fmt.Sprintf("operation '%s' failed after %d attempts", operation, attempts))
	appErr.Cause = err
	appErr.Details = map[string]interface{}{
		"operation": operation,
		"attempts":  attempts,
	}
	return appErr
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsValidation reports caller input errors, including invalid scores and self loops.
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation) || IsInvalidScore(err) || IsSelfLoop(err)
}

// IsInvalidScore checks if an error is an invalid score error
func IsInvalidScore(err error) bool {
	return IsType(err, ErrorTypeInvalidScore)
}

// IsSelfLoop checks if an error is a self loop error
func IsSelfLoop(err error) bool {
	return IsType(err, ErrorTypeSelfLoop)
}

// IsConnectionInit checks if an error is a connection init error
func IsConnectionInit(err error) bool {
	return IsType(err, ErrorTypeConnectionInit)
}

// IsOperationExhausted checks if an error is an operation exhausted error
func IsOperationExhausted(err error) bool {
	return IsType(err, ErrorTypeOperationExhausted)
}

// HTTPStatusOf returns the HTTP status carried by an AppError, or 500.
func HTTPStatusOf(err error) int {
	if appErr := GetAppError(err); appErr != nil && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
