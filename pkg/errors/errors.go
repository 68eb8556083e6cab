package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")

	// Domain-specific error kinds (see spec §7 stable error taxonomy).
	ErrTenantUnbound      = errors.New("no tenant bound to request context")
	ErrImmutable          = errors.New("entity is immutable in its current status")
	ErrOverlap            = errors.New("overlapping active record for this vehicle")
	ErrPaymentIncomplete  = errors.New("payment not complete")
	ErrInvalidTransition  = errors.New("invalid lifecycle transition")
	ErrLocked             = errors.New("resource locked by a concurrent operation")
	ErrAccountLocked      = errors.New("account locked out after repeated failed logins")
	ErrCSRFMismatch       = errors.New("csrf token missing or invalid")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Err:        ErrInvalidCredentials,
		Code:       "INVALID_CREDENTIALS",
		Message:    "invalid email or password",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// TenantUnbound is returned when a repository or service call reaches the
// database boundary without a tenant resolved onto the request context.
func TenantUnbound() *AppError {
	return &AppError{
		Err:        ErrTenantUnbound,
		Code:       "TENANT_UNBOUND",
		Message:    "no tenant bound to request",
		StatusCode: http.StatusBadRequest,
	}
}

// Immutable is returned when a mutation targets an entity whose current
// status forbids the requested edit (e.g. editing an active Policy).
func Immutable(message string) *AppError {
	return &AppError{
		Err:        ErrImmutable,
		Code:       "IMMUTABLE",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// Overlap is returned when activation would violate the one-active-record
// temporal invariant for a vehicle (I-POL-1 / I-PERM-1).
func Overlap(message string) *AppError {
	return &AppError{
		Err:        ErrOverlap,
		Code:       "OVERLAP",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// PaymentIncomplete is returned when a Policy activation is attempted while
// outstanding payment obligations remain.
func PaymentIncomplete(message string) *AppError {
	return &AppError{
		Err:        ErrPaymentIncomplete,
		Code:       "PAYMENT_INCOMPLETE",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// InvalidTransition is returned when a requested lifecycle transition is not
// reachable from the entity's current status.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Err:        ErrInvalidTransition,
		Code:       "INVALID_TRANSITION",
		Message:    fmt.Sprintf("cannot transition from %s to %s", from, to),
		StatusCode: http.StatusConflict,
	}
}

// Locked is returned when a concurrent activation holds the serialization
// lock for the same (tenant, vehicle[, permit_type]) key.
func Locked(message string) *AppError {
	return &AppError{
		Err:        ErrLocked,
		Code:       "LOCKED",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// AccountLocked is returned when a login attempt targets an account still
// inside its lockout window from repeated failed attempts.
func AccountLocked() *AppError {
	return &AppError{
		Err:        ErrAccountLocked,
		Code:       "ACCOUNT_LOCKED",
		Message:    "account temporarily locked after repeated failed logins",
		StatusCode: http.StatusUnauthorized,
	}
}

// CSRFMismatch is returned when a state-changing session request arrives
// without a CSRF token matching the one issued alongside the session.
func CSRFMismatch() *AppError {
	return &AppError{
		Err:        ErrCSRFMismatch,
		Code:       "CSRF_MISMATCH",
		Message:    "missing or invalid csrf token",
		StatusCode: http.StatusForbidden,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
