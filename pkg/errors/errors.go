package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies an application error.
type ErrorCode int

const (
	ErrValidation ErrorCode = iota + 1000
	ErrNotFound
	ErrInvalidState
	ErrSnoozeLimit
	ErrUnauthorized
	ErrInternal
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
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

// Error constructors

func Validation(message string, err error) *AppError {
	return &AppError{Code: ErrValidation, Message: message, Err: err}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{Code: ErrNotFound, Message: fmt.Sprintf("%s not found", resource), Err: err}
}

func InvalidState(message string, err error) *AppError {
	return &AppError{Code: ErrInvalidState, Message: message, Err: err}
}

func SnoozeLimit(message string) *AppError {
	return &AppError{Code: ErrSnoozeLimit, Message: message}
}

func Unauthorized(err error) *AppError {
	return &AppError{Code: ErrUnauthorized, Message: "unauthorized", Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Code: ErrInternal, Message: "internal error", Err: err}
}

// Code extracts the ErrorCode from err, or ErrInternal for plain errors.
func Code(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

func IsValidation(err error) bool   { return Code(err) == ErrValidation }
func IsNotFound(err error) bool     { return Code(err) == ErrNotFound }
func IsInvalidState(err error) bool { return Code(err) == ErrInvalidState }
func IsSnoozeLimit(err error) bool  { return Code(err) == ErrSnoozeLimit }
