package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	pkgerrors "synergy-backend/pkg/errors"
)

// DefaultMaxBodyBytes bounds JSON request bodies
const DefaultMaxBodyBytes int64 = 1 << 20

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaInfo contains metadata about the response
type MetaInfo struct {
	RequestID string `json:"request_id,omitempty"`
}

// StandardErrorCodes defines common error codes
var StandardErrorCodes = struct {
	ValidationError    string
	BadRequest         string
	NotFound           string
	InternalError      string
	ServiceUnavailable string
}{
	ValidationError:    "VALIDATION_ERROR",
	BadRequest:         "BAD_REQUEST",
	NotFound:           "NOT_FOUND",
	InternalError:      "INTERNAL_ERROR",
	ServiceUnavailable: "SERVICE_UNAVAILABLE",
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	write(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta(r),
	})
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	RespondErrorWithDetails(w, r, status, code, message, nil)
}

// RespondErrorWithDetails sends an error response with additional details
func RespondErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	write(w, status, APIResponse{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: meta(r),
	})
}

// RespondAppError maps err to a status and code. Errors that are not
// AppErrors become a 500 without leaking their message.
func RespondAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		RespondError(w, r, http.StatusInternalServerError, StandardErrorCodes.InternalError, "internal server error")
		return
	}

	code := appErr.Code
	if code == "" {
		code = string(appErr.Type)
	}
	RespondErrorWithDetails(w, r, pkgerrors.HTTPStatusOf(appErr), code, appErr.Message, appErr.Details)
}

// ParseJSONBody parses a JSON request body with a size limit
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func meta(r *http.Request) *MetaInfo {
	if r == nil {
		return nil
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		return &MetaInfo{RequestID: id}
	}
	return nil
}

func write(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
