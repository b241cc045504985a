package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Registration domain errors surfaced by the enrollment workflows.
var (
	ErrRegistrationClosed     = New("REGISTRATION_CLOSED", http.StatusUnprocessableEntity, "registration window is closed")
	ErrCourseFull             = New("COURSE_FULL", http.StatusConflict, "course has no remaining seats")
	ErrCreditLimitExceeded    = New("CREDIT_LIMIT_EXCEEDED", http.StatusConflict, "credit limit exceeded")
	ErrScheduleConflict       = New("SCHEDULE_CONFLICT", http.StatusConflict, "schedule conflict with an existing registration")
	ErrSubjectAlreadyApproved = New("SUBJECT_ALREADY_APPROVED", http.StatusConflict, "an approved registration for this subject already exists")
	ErrDuplicateRegistration  = New("DUPLICATE_REGISTRATION", http.StatusConflict, "registration already exists for this course")
	ErrInvalidTransition      = New("INVALID_TRANSITION", http.StatusConflict, "registration status does not allow this transition")
	ErrConcurrencyConflict    = New("CONCURRENCY_CONFLICT", http.StatusConflict, "operation lost a concurrent update, retry once")
	ErrWithdrawalClosed       = New("WITHDRAWAL_CLOSED", http.StatusUnprocessableEntity, "withdrawal deadline has passed")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
