// Package errors defines the application error taxonomy shared by the
// repositories, services, and HTTP layer.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes an application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a collision with existing data, such as a
	// unique constraint violation.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeForeignKey indicates a foreign key constraint violation.
	ErrCodeForeignKey ErrorCode = "foreign_key"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates the operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError is a structured application error carrying a code, a message, and
// an optional cause. It participates in errors.Is and errors.As through
// Unwrap.
type AppError struct {
	Code    ErrorCode
	Message string
	// Cause is the wrapped underlying error, if any.
	Cause error
	// Field names the offending input field on validation errors.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newf(code ErrorCode, format string, args ...any) *AppError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &AppError{Code: code, Message: msg}
}

// NotFound creates a NotFound error.
func NotFound(message string) *AppError {
	return newf(ErrCodeNotFound, "%s", message)
}

// NotFoundf creates a NotFound error with a formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return newf(ErrCodeNotFound, format, args...)
}

// Conflict creates a Conflict error.
func Conflict(message string) *AppError {
	return newf(ErrCodeConflict, "%s", message)
}

// Conflictf creates a Conflict error with a formatted message.
func Conflictf(format string, args ...any) *AppError {
	return newf(ErrCodeConflict, format, args...)
}

// Validation creates a Validation error.
func Validation(message string) *AppError {
	return newf(ErrCodeValidation, "%s", message)
}

// Validationf creates a Validation error with a formatted message.
func Validationf(format string, args ...any) *AppError {
	return newf(ErrCodeValidation, format, args...)
}

// ValidationField creates a Validation error attributed to a single field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// ForeignKey creates a ForeignKey error.
func ForeignKey(message string) *AppError {
	return newf(ErrCodeForeignKey, "%s", message)
}

// Internal creates an Internal error.
func Internal(message string) *AppError {
	return newf(ErrCodeInternal, "%s", message)
}

// Internalf creates an Internal error with a formatted message.
func Internalf(format string, args ...any) *AppError {
	return newf(ErrCodeInternal, format, args...)
}

// Wrap wraps err in an AppError with the given code and message. Returns nil
// when err is nil so call sites can wrap unconditionally.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps err in an AppError with a formatted message. The message is
// only formatted when err is non-nil.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound reports whether err carries ErrCodeNotFound.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsConflict reports whether err carries ErrCodeConflict.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsValidation reports whether err carries ErrCodeValidation.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsForeignKey reports whether err carries ErrCodeForeignKey.
func IsForeignKey(err error) bool {
	return isCode(err, ErrCodeForeignKey)
}

// IsInternal reports whether err carries ErrCodeInternal.
func IsInternal(err error) bool {
	return isCode(err, ErrCodeInternal)
}

// IsTimeout reports whether err carries ErrCodeTimeout.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// IsCanceled reports whether err carries ErrCodeCanceled.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// GetCode extracts the ErrorCode from err, or returns the empty string when
// err is not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField extracts the offending field name from a validation error, or
// returns the empty string.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
