package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable code returned to API clients
type ErrorCode string

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Status  int       `json:"-"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode lets the error middleware pick the HTTP status.
func (e *AppError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// Is matches on code so callers can use errors.Is with the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Common error codes
const (
	CodeMissingRequiredParams ErrorCode = "missing_required_params"
	CodeInvalidDuration       ErrorCode = "invalid_duration"
	CodeInvalidPrice          ErrorCode = "invalid_price"
	CodeInvalidProvider       ErrorCode = "invalid_provider"
	CodeServiceNotFound       ErrorCode = "service_not_found"
	CodeInvalidStatus         ErrorCode = "invalid_status"
	CodeInvalidTransition     ErrorCode = "invalid_transition"
	CodeInvalidTimeRange      ErrorCode = "invalid_time_range"
	CodeOutsideWorkingHours   ErrorCode = "outside_working_hours"
	CodeSlotUnavailable       ErrorCode = "slot_unavailable"
	CodeBadRequest            ErrorCode = "bad_request"
	CodeUnauthorized          ErrorCode = "unauthorized"
	CodeForbidden             ErrorCode = "forbidden"
	CodeNotFound              ErrorCode = "not_found"
	CodeInternal              ErrorCode = "internal_error"
)

// Sentinels for errors.Is checks
var (
	ErrSlotUnavailable = &AppError{Code: CodeSlotUnavailable, Status: http.StatusBadRequest, Message: "time slot is not available"}
	ErrNotFound        = &AppError{Code: CodeNotFound, Status: http.StatusNotFound, Message: "not found"}
)

// Error constructors
func NewValidation(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Status:  http.StatusBadRequest,
		Message: message,
	}
}

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Status:  http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Err:     err,
	}
}

func SlotUnavailable(message string) *AppError {
	if message == "" {
		message = ErrSlotUnavailable.Message
	}
	return &AppError{
		Code:    CodeSlotUnavailable,
		Status:  http.StatusBadRequest,
		Message: message,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Status:  http.StatusUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Status:  http.StatusForbidden,
		Message: message,
	}
}

// As extracts an *AppError from the chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
