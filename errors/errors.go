package errors

import (
	stderrors "errors"
	"fmt"
)

// As and Is re-export the standard library helpers so callers of this
// package do not need a second errors import.
func As(err error, target any) bool { return stderrors.As(err, target) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

// Stable machine-readable error codes returned to RPC callers. The strings
// match the codes the Pitchly accounts package has always used on the wire.
const (
	CodeLoggedOut            = "logged-out"
	CodeUserNotFound         = "user-not-found"
	CodeRefreshTokenNotFound = "refresh-token-not-found"
	CodeServiceNotConfigured = "service-not-configured"
	CodeRequestFailed        = "request-failed"
	CodeInvalidOptions       = "invalid-options"
	CodeServerError          = "server-error"
)

// ServiceError is a caller-facing error with a stable code, a human message
// and an optional detail payload (e.g. the provider's error body).
type ServiceError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`

	cause error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.cause
}

// CodeOf returns the stable code of err, or CodeServerError for errors that
// are not ServiceErrors.
func CodeOf(err error) string {
	var se *ServiceError
	if As(err, &se) {
		return se.Code
	}
	return CodeServerError
}

func NewLoggedOut() *ServiceError {
	return &ServiceError{
		Code:    CodeLoggedOut,
		Message: "You must be logged in.",
	}
}

func NewUserNotFound() *ServiceError {
	return &ServiceError{
		Code:    CodeUserNotFound,
		Message: "User not found.",
	}
}

func NewRefreshTokenNotFound() *ServiceError {
	return &ServiceError{
		Code:    CodeRefreshTokenNotFound,
		Message: "Refresh token not found.",
	}
}

func NewServiceNotConfigured() *ServiceError {
	return &ServiceError{
		Code:    CodeServiceNotConfigured,
		Message: "Pitchly service not configured.",
	}
}

// NewRequestFailed wraps a failed provider exchange. Detail carries the
// provider's error body when one was parsed.
func NewRequestFailed(detail any, cause error) *ServiceError {
	return &ServiceError{
		Code:    CodeRequestFailed,
		Message: "Unable to exchange refresh token.",
		Detail:  detail,
		cause:   cause,
	}
}

func NewInvalidOptions(description string) *ServiceError {
	return &ServiceError{
		Code:    CodeInvalidOptions,
		Message: description,
	}
}
