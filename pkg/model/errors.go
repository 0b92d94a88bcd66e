package model

import (
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable part of an API error.
type ErrorCode string

const (
	ErrValidation   ErrorCode = "VALIDATION_ERROR"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrConflict     ErrorCode = "CONFLICT"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrForbidden    ErrorCode = "FORBIDDEN"
	ErrTooLarge     ErrorCode = "TOO_LARGE"
	ErrUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrUnavailable  ErrorCode = "UNAVAILABLE"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

var codeStatus = map[ErrorCode]int{
	ErrValidation:   http.StatusBadRequest,
	ErrNotFound:     http.StatusNotFound,
	ErrConflict:     http.StatusConflict,
	ErrUnauthorized: http.StatusUnauthorized,
	ErrForbidden:    http.StatusForbidden,
	ErrTooLarge:     http.StatusRequestEntityTooLarge,
	ErrUpstream:     http.StatusBadGateway,
	ErrUnavailable:  http.StatusServiceUnavailable,
	ErrInternal:     http.StatusInternalServerError,
}

// APIError is the error object of the response envelope.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus is the status code the error is served with. Unknown codes
// map to 500.
func (e *APIError) HTTPStatus() int {
	if s, ok := codeStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// FieldError is a problem with one input field. Field is empty for
// form-level problems.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

func NewUnauthorizedError() *APIError {
	return &APIError{Code: ErrUnauthorized, Message: "authentication required"}
}

func NewConflictError(msg string) *APIError {
	return &APIError{Code: ErrConflict, Message: msg}
}

func NewUnavailableError(msg string) *APIError {
	return &APIError{Code: ErrUnavailable, Message: msg}
}

// NewInternalError hides the cause; log it before responding.
func NewInternalError() *APIError {
	return &APIError{Code: ErrInternal, Message: "internal error"}
}
