package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error is a typed application error carrying a machine-readable code and the
// HTTP status it maps to. Services return these; HTTP handlers respond with
// Respond and never inspect codes themselves.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

// Validation reports a malformed or missing request field (HTTP 400).
func Validation(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusBadRequest}
}

// Unauthorized reports a missing or invalid session (HTTP 401).
func Unauthorized(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusUnauthorized}
}

// Forbidden reports an authenticated but unpermitted caller (HTTP 403).
func Forbidden(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusForbidden}
}

// NotFound reports a missing resource (HTTP 404).
func NotFound(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusNotFound}
}

// Conflict reports a state-machine precondition violation (HTTP 409).
func Conflict(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusConflict}
}

// Upstream reports a collaborator failure (HTTP 502).
func Upstream(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusBadGateway}
}

// Internal reports an unexpected server failure (HTTP 500).
func Internal(message string) *Error {
	return &Error{Code: ErrCodeInternalError, Message: message, Status: http.StatusInternalServerError}
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Respond writes err as a JSON error response. Typed errors keep their code
// and status; anything else becomes an opaque internal error.
func Respond(w http.ResponseWriter, err error) {
	var appErr *Error
	if errors.As(err, &appErr) {
		RespondError(w, appErr.Status, appErr.Code, appErr.Message)
		return
	}
	RespondError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// RespondError writes a standardized error response to the HTTP response writer
func RespondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// RespondValidationError writes a validation error response with field information
func RespondValidationError(w http.ResponseWriter, code, message, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: message,
		Field:   field,
	})
}

// RespondInternalError writes an internal server error response
func RespondInternalError(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// RespondNotFound writes a not found error response
func RespondNotFound(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusNotFound, code, message)
}

// RespondUnauthorized writes an unauthorized error response
func RespondUnauthorized(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusUnauthorized, code, message)
}

// RespondForbidden writes a forbidden error response
func RespondForbidden(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusForbidden, code, message)
}

// RespondBadRequest writes a bad request error response
func RespondBadRequest(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusBadRequest, code, message)
}
