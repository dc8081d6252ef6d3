// Package errors provides the structured error system for winprojfs with
// error codes, categories, and context.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for bridge operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"

	// Lifecycle errors
	ErrCodeInvalidState       ErrorCode = "INVALID_STATE"
	ErrCodeRegistrationFailed ErrorCode = "REGISTRATION_FAILED"
	ErrCodeFeatureUnavailable ErrorCode = "FEATURE_UNAVAILABLE"

	// Enumeration session errors
	ErrCodeAlreadyActive   ErrorCode = "ALREADY_ACTIVE"
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"

	// Provider errors
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeIoFailure   ErrorCode = "IO_FAILURE"
	ErrCodePathInvalid ErrorCode = "PATH_INVALID"

	// Internal errors
	ErrCodePanicRecovered ErrorCode = "PANIC_RECOVERED"
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryLifecycle     ErrorCategory = "lifecycle"
	CategorySession       ErrorCategory = "session"
	CategoryProvider      ErrorCategory = "provider"
	CategoryInternal      ErrorCategory = "internal"
)

// BridgeError represents a structured error with context and metadata.
type BridgeError struct {
	Code     ErrorCode
	Category ErrorCategory
	Message  string

	// Contextual information
	Component string
	Operation string
	Path      string
	Cause     error
	Timestamp time.Time
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	var sb strings.Builder
	if e.Component != "" {
		sb.WriteString("[")
		sb.WriteString(e.Component)
		if e.Operation != "" {
			sb.WriteString(":")
			sb.WriteString(e.Operation)
		}
		sb.WriteString("] ")
	}
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Path != "" {
		sb.WriteString(" (path=")
		sb.WriteString(e.Path)
		sb.WriteString(")")
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause for error wrapping compatibility.
func (e *BridgeError) Unwrap() error {
	return e.Cause
}

// Is matches two bridge errors by code, so errors.Is works against the
// sentinel produced by New(code, ...).
func (e *BridgeError) Is(target error) bool {
	var be *BridgeError
	if errors.As(target, &be) {
		return e.Code == be.Code
	}
	return false
}

// New creates a new bridge error with the category derived from the code.
func New(code ErrorCode, message string) *BridgeError {
	return &BridgeError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a new bridge error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *BridgeError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new bridge error with an underlying cause.
func Wrap(cause error, code ErrorCode, message string) *BridgeError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// GetCategory determines the category for an error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeConfigLoad:
		return CategoryConfiguration
	case ErrCodeInvalidState, ErrCodeRegistrationFailed, ErrCodeFeatureUnavailable:
		return CategoryLifecycle
	case ErrCodeAlreadyActive, ErrCodeSessionNotFound:
		return CategorySession
	case ErrCodeNotFound, ErrCodeIoFailure, ErrCodePathInvalid:
		return CategoryProvider
	default:
		return CategoryInternal
	}
}

// WithComponent sets the component for an error.
func (e *BridgeError) WithComponent(component string) *BridgeError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error.
func (e *BridgeError) WithOperation(operation string) *BridgeError {
	e.Operation = operation
	return e
}

// WithPath sets the virtual path the error relates to.
func (e *BridgeError) WithPath(path string) *BridgeError {
	e.Path = path
	return e
}

// WithCause sets the underlying cause.
func (e *BridgeError) WithCause(cause error) *BridgeError {
	e.Cause = cause
	return e
}

// CodeOf extracts the error code from err, or INTERNAL_ERROR when err is
// not a bridge error.
func CodeOf(err error) ErrorCode {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrCodeInternalError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var be *BridgeError
	return errors.As(err, &be) && be.Code == code
}

// IsNotFound reports whether err represents a missing virtual entry.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

// IsInvalidState reports whether err represents lifecycle misuse.
func IsInvalidState(err error) bool {
	return HasCode(err, ErrCodeInvalidState)
}

// IsFeatureUnavailable reports whether err indicates the host lacks the
// projection capability.
func IsFeatureUnavailable(err error) bool {
	return HasCode(err, ErrCodeFeatureUnavailable)
}
