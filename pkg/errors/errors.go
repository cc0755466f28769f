// Package errors provides structured error types for the receipt export engine.
//
// Every failure of an export call is classified by a [Code]. The code decides
// whether the retry controller may try again and which message the user sees.
// The underlying cause (platform error, stack detail) is kept in
// [Error.Cause] for operators and never rendered to the user.
//
// # Error Codes
//
//   - CAPTURE_FAILED: node missing, images never settled, rasterizer failed (retried)
//   - ENCODE_FAILED: PNG encoding failed (retried)
//   - SHARE_REFUSED: the environment refused sharing up front (not retried)
//   - DELIVERY_FAILED: download or tab injection failed (not retried)
//   - EXPORT_FAILED: capture kept failing until the attempt ceiling
//   - INVALID_INPUT: malformed request
//   - INTERNAL_ERROR: anything else
//
// # Usage
//
//	err := errors.Wrap(errors.ErrCodeCapture, cause, "rasterize receipt")
//	if errors.Retryable(err) {
//	    // try again
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the export taxonomy.
const (
	ErrCodeCapture      Code = "CAPTURE_FAILED"
	ErrCodeEncode       Code = "ENCODE_FAILED"
	ErrCodeShareRefused Code = "SHARE_REFUSED"
	ErrCodeDelivery     Code = "DELIVERY_FAILED"
	ErrCodeExportFailed Code = "EXPORT_FAILED"

	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
)

// genericMessage is shown for errors that carry no code.
const genericMessage = "Something went wrong. Please try again."

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Message safe to show to the user
	Cause   error  // Underlying error (optional, never shown to the user)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// Only the outermost *Error in the chain is consulted, so an EXPORT_FAILED
// wrapping a CAPTURE_FAILED reports EXPORT_FAILED.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Retryable reports whether the retry controller may attempt the operation
// again. Only capture and encode failures qualify.
func Retryable(err error) bool {
	switch GetCode(err) {
	case ErrCodeCapture, ErrCodeEncode:
		return true
	}
	return false
}

// UserMessage returns a message that is safe to show to the user.
// For *Error types it returns the message without code or cause.
// Other errors never leak their text and map to a generic message.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return genericMessage
}
