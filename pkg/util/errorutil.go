package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API callers.
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeDeviceUnavailable = "DEVICE_UNAVAILABLE"
	CodeStreamInactive    = "STREAM_INACTIVE"
	CodeBackendError      = "BACKEND_ERROR"
	CodeNetworkOffline    = "NETWORK_OFFLINE"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewPermissionDenied(message string, err error) error {
	return &DomainError{Code: CodePermissionDenied, Message: message, HTTPStatus: http.StatusForbidden, Err: err}
}

func NewDeviceUnavailable(message string, err error) error {
	return &DomainError{Code: CodeDeviceUnavailable, Message: message, HTTPStatus: http.StatusServiceUnavailable, Err: err}
}

func NewStreamInactive(message string) error {
	return NewDomainError(CodeStreamInactive, message, http.StatusConflict, nil)
}

// NewBackendError keeps the hosted service message verbatim.
func NewBackendError(message string, status int) error {
	if status < 400 {
		status = http.StatusBadGateway
	}
	return NewDomainError(CodeBackendError, message, status, nil)
}

func NewNetworkOffline(err error) error {
	return &DomainError{
		Code:       CodeNetworkOffline,
		Message:    "network unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewConflict reports an action that does not apply to the current state.
func NewConflict(message string, err error) error {
	return &DomainError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict, Err: err}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsOffline reports whether err represents lost connectivity.
func IsOffline(err error) bool {
	return HasCode(err, CodeNetworkOffline)
}
