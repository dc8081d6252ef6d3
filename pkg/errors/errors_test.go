package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewDerivesCategory(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		category ErrorCategory
	}{
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeInvalidState, CategoryLifecycle},
		{ErrCodeRegistrationFailed, CategoryLifecycle},
		{ErrCodeFeatureUnavailable, CategoryLifecycle},
		{ErrCodeAlreadyActive, CategorySession},
		{ErrCodeNotFound, CategoryProvider},
		{ErrCodeIoFailure, CategoryProvider},
		{ErrCodePanicRecovered, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "test")
			if err.Category != tt.category {
				t.Errorf("category = %s, want %s", err.Category, tt.category)
			}
			if err.Timestamp.IsZero() {
				t.Error("timestamp not set")
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := New(ErrCodeNotFound, "no such entry").
		WithComponent("dispatcher").
		WithOperation("get_placeholder_info").
		WithPath(`sub\a.txt`)

	msg := err.Error()
	for _, want := range []string{"dispatcher", "get_placeholder_info", "NOT_FOUND", "no such entry", `sub\a.txt`} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := Newf(ErrCodeAlreadyActive, "enumeration %s already active", "abc")
	target := New(ErrCodeAlreadyActive, "")

	if !stderrors.Is(err, target) {
		t.Error("errors.Is should match bridge errors by code")
	}
	if stderrors.Is(err, New(ErrCodeNotFound, "")) {
		t.Error("errors.Is must not match different codes")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(cause, ErrCodeIoFailure, "provider read failed")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause not reachable through errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap did not return the cause")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(ErrCodeInvalidState, "")); got != ErrCodeInvalidState {
		t.Errorf("CodeOf = %s, want INVALID_STATE", got)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != ErrCodeInternalError {
		t.Errorf("CodeOf(plain error) = %s, want INTERNAL_ERROR", got)
	}

	// Codes survive wrapping with %w.
	wrapped := fmt.Errorf("context: %w", New(ErrCodeNotFound, "gone"))
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through fmt wrapping")
	}
}

func TestPredicates(t *testing.T) {
	if !IsInvalidState(New(ErrCodeInvalidState, "stop before start")) {
		t.Error("IsInvalidState false negative")
	}
	if IsInvalidState(New(ErrCodeIoFailure, "")) {
		t.Error("IsInvalidState false positive")
	}
	if !IsFeatureUnavailable(New(ErrCodeFeatureUnavailable, "")) {
		t.Error("IsFeatureUnavailable false negative")
	}
}
