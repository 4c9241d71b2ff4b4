// Package errors provides centralized error definitions and error handling
// utilities for the inflow codebase. It defines domain-specific errors,
// sentinel errors, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - WatchError: errors raised by directory watchers
//   - ReceiverError: errors related to the DICOM receiver and storescp
//   - DownloadError: errors related to file downloads
//   - ValidationError: invalid configuration or input
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewWatchError("directory unreadable", cause).WithDirectory("/incoming")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrAlreadyWatching) { ... }
//
//	var watchErr *errors.WatchError
//	if errors.As(err, &watchErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Watcher-related sentinel errors
var (
	// ErrAlreadyWatching indicates that Start was called on an active watcher.
	ErrAlreadyWatching = New("already watching")
	// ErrWatchFailed indicates that a watcher gave up after repeated
	// directory read failures and transitioned to idle.
	ErrWatchFailed = New("watch failed")
)

// Receiver-related sentinel errors
var (
	// ErrReceiverRunning indicates that the receiver is already running.
	ErrReceiverRunning = New("receiver already running")
	// ErrStoreSCPNotFound indicates that the storescp executable is not on PATH.
	ErrStoreSCPNotFound = New("storescp executable not found")
	// ErrStoreSCPExited indicates that the storescp process exited unexpectedly.
	ErrStoreSCPExited = New("storescp process exited")
)

// Download-related sentinel errors
var (
	// ErrDownloadCanceled indicates that a download was canceled.
	ErrDownloadCanceled = New("download canceled")
	// ErrContentTooShort indicates that fewer bytes arrived than the
	// Content-Length header announced.
	ErrContentTooShort = New("retrieval incomplete")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// retryableError is implemented by errors that know whether retrying the
// failed operation can succeed.
type retryableError interface {
	IsRetryable() bool
}

// IsRetryable returns whether the operation that produced err is worth
// retrying. Errors that do not implement the classification report false.
func IsRetryable(err error) bool {
	var r retryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// WatchError represents errors raised by directory watchers.
//
// Example:
//
//	err := errors.NewWatchError("poll failed", cause).WithDirectory("/incoming")
//	fmt.Println(err) // "watch error [dir=/incoming]: poll failed: ..."
type WatchError struct {
	baseError
	Directory string
	Failures  int // Consecutive failed poll ticks, zero when not applicable
}

// NewWatchError creates a new WatchError.
func NewWatchError(message string, cause error) *WatchError {
	return &WatchError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			retryable: true,
		},
	}
}

// WithDirectory adds the watched directory to the error context.
func (e *WatchError) WithDirectory(dir string) *WatchError {
	e.Directory = dir
	return e
}

// WithFailures records the consecutive-failure count that triggered the error.
// Once the retry ceiling is exhausted the error is no longer retryable.
func (e *WatchError) WithFailures(n int) *WatchError {
	e.Failures = n
	e.retryable = false
	return e
}

// Error returns the formatted error message.
func (e *WatchError) Error() string {
	var parts []string
	if e.Directory != "" {
		parts = append(parts, fmt.Sprintf("dir=%s", e.Directory))
	}
	if e.Failures > 0 {
		parts = append(parts, fmt.Sprintf("failures=%d", e.Failures))
	}
	if len(parts) > 0 {
		return fmt.Sprintf("watch error [%s]: %s", strings.Join(parts, " "), e.baseError.Error())
	}
	return fmt.Sprintf("watch error: %s", e.baseError.Error())
}

// ReceiverError represents errors related to the DICOM receiver.
type ReceiverError struct {
	baseError
	Port int
}

// NewReceiverError creates a new ReceiverError.
func NewReceiverError(message string, cause error) *ReceiverError {
	return &ReceiverError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithPort adds the incoming port to the error context.
func (e *ReceiverError) WithPort(port int) *ReceiverError {
	e.Port = port
	return e
}

// Error returns the formatted error message.
func (e *ReceiverError) Error() string {
	if e.Port > 0 {
		return fmt.Sprintf("receiver error [port=%d]: %s", e.Port, e.baseError.Error())
	}
	return fmt.Sprintf("receiver error: %s", e.baseError.Error())
}

// DownloadError represents errors related to file downloads.
type DownloadError struct {
	baseError
	URL string
}

// NewDownloadError creates a new DownloadError.
func NewDownloadError(message string, cause error) *DownloadError {
	return &DownloadError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			retryable: true,
		},
	}
}

// WithURL adds the source URL to the error context.
func (e *DownloadError) WithURL(url string) *DownloadError {
	e.URL = url
	return e
}

// Error returns the formatted error message.
func (e *DownloadError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("download error [url=%s]: %s", e.URL, e.baseError.Error())
	}
	return fmt.Sprintf("download error: %s", e.baseError.Error())
}

// ValidationError represents invalid configuration or input.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError for the given field.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message: message,
			cause:   ErrInvalidInput,
		},
		Field: field,
		Value: value,
	}
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [field=%s value=%v]: %s", e.Field, e.Value, e.message)
}

// Is reports whether the target matches this validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput || e.baseError.Is(target)
}
