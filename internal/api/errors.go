// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/pdptw-visualizer/backend/internal/parser"
	"github.com/pdptw-visualizer/backend/internal/session"
	"github.com/pdptw-visualizer/backend/internal/solver"
	"github.com/pdptw-visualizer/backend/internal/storage"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Status:  http.StatusForbidden,
		Code:    "FORBIDDEN",
		Message: message,
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewUnprocessableError creates a 422 error for input that was read but rejected
func NewUnprocessableError(code, message string, line int) *APIError {
	return &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    code,
		Message: message,
		Line:    line,
	}
}

// NewTooManyRequestsError creates a 429 error
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Status:  http.StatusTooManyRequests,
		Code:    "RATE_LIMITED",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// FromError maps domain errors to API errors. Unknown errors become 500s
// with the given message.
func FromError(message string, err error) *APIError {
	var (
		apiErr    *APIError
		formatErr *parser.FormatError
		indexErr  *parser.IndexError
		stateErr  *parser.IllegalStateError
		emptyErr  *parser.EmptyResultError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &formatErr):
		return NewUnprocessableError("FORMAT_ERROR", formatErr.Error(), formatErr.Line)
	case errors.As(err, &indexErr):
		return NewUnprocessableError("SIZE_MISMATCH", indexErr.Error(), indexErr.Line)
	case errors.As(err, &emptyErr):
		return NewUnprocessableError("EMPTY_SOLUTION", emptyErr.Error(), 0)
	case errors.As(err, &stateErr):
		return NewConflictError(stateErr.Error())
	case errors.Is(err, session.ErrWorkspaceNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, storage.ErrFileNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, storage.ErrFileTooLarge):
		return &APIError{Status: http.StatusRequestEntityTooLarge, Code: "FILE_TOO_LARGE", Message: err.Error()}
	case errors.Is(err, solver.ErrRateLimited):
		return NewTooManyRequestsError(err.Error())
	case errors.Is(err, solver.ErrUnknownPreset), errors.Is(err, solver.ErrInvalidParam):
		return NewBadRequestError(message, err)
	}
	return NewInternalError(message, err)
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
		}
		if isDevelopment() {
			apiErr.Details = err.Error()
		}
	}

	c.JSON(apiErr.Status, apiErr)
}

// isDevelopment reports whether error details may be sent to clients.
func isDevelopment() bool {
	return os.Getenv("APP_ENV") != "production"
}

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
