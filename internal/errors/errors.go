// Package errors defines the application error taxonomy.
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an application-specific error with a machine-readable code.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a new AppError with a formatted message.
func Newf(code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// Error code constants.
const (
	CodeInvalidSelector      = "INVALID_SELECTOR"      // zero or multiple collection selectors given
	CodeDimensionMismatch    = "DIMENSION_MISMATCH"    // vector dimensions disagree, or vectors and metadata rows diverge
	CodeMetricMismatch       = "METRIC_MISMATCH"       // query metric differs from the snapshot's build metric
	CodeModelMismatch        = "MODEL_MISMATCH"        // query embedder model differs from the snapshot's model
	CodeIndexNotFound        = "INDEX_NOT_FOUND"       // vector file absent or no snapshot loaded
	CodeMetadataNotFound     = "METADATA_NOT_FOUND"    // companion metadata file absent
	CodeTransientUpstream    = "TRANSIENT_UPSTREAM"    // retryable upstream failure (rate limit, 5xx, network)
	CodePermanentUnavailable = "PERMANENT_UNAVAILABLE" // per-item terminal (captions disabled, video removed)
	CodeIO                   = "IO_ERROR"              // persist/load failure
	CodeNotFound             = "NOT_FOUND"
	CodeInvalidArg           = "INVALID_ARGUMENT"
	CodeInternal             = "INTERNAL_ERROR"
)

// Is reports whether err carries the given application error code.
func Is(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code returns the application error code for err, or CodeInternal when err
// is not an AppError.
func Code(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	return Is(err, CodeTransientUpstream)
}

// IsPermanent reports whether err is a per-item terminal failure.
func IsPermanent(err error) bool {
	return Is(err, CodePermanentUnavailable)
}
