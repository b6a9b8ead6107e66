package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestClassifyError verifies behavior for the covered scenario.
func TestClassifyError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		kind      ErrorKind
		code      string
		retryable bool
	}{
		{name: "deadline", err: context.DeadlineExceeded, kind: KindTimeout, code: "timeout_error", retryable: true},
		{name: "cancelled", err: fmt.Errorf("wrap: %w", context.Canceled), kind: KindTimeout, code: "timeout_error", retryable: true},
		{name: "permission", err: ErrPermissionDenied, kind: KindPermissionDenied, code: "permission_denied"},
		{name: "user", err: ErrUserNotFound, kind: KindUserNotFound, code: "user_not_found"},
		{name: "missing", err: ErrNotFound, kind: KindNotFound, code: "not_found"},
		{name: "not active", err: ErrDelegationNotActive, kind: KindDelegationFailed, code: "delegation_not_active"},
		{name: "storage", err: ErrStorageUnavailable, kind: KindStorage, code: "storage_error", retryable: true},
		{name: "disconnected", err: ErrDeliveryDisconnected, kind: KindNetwork, code: "network_error", retryable: true},
		{name: "self delegation", err: ErrSelfDelegation, kind: KindValidation, code: "validation_error"},
		{name: "duplicate delegation", err: ErrDuplicateDelegation, kind: KindValidation, code: "duplicate_delegation"},
		{name: "inactive assignee", err: ErrAssigneeInactive, kind: KindValidation, code: "assignee_inactive"},
		{name: "bad status", err: fmt.Errorf("import: %w", ErrInvalidStatus), kind: KindValidation, code: "validation_error"},
		{name: "bad time", err: fmt.Errorf("prefs: %w", ErrInvalidTimeOfDay), kind: KindValidation, code: "validation_error"},
		{name: "unknown", err: errors.New("boom"), kind: KindUnknown, code: "unknown_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ce := ClassifyError(tc.err)
			if ce.Kind != tc.kind || ce.Code != tc.code {
				t.Fatalf("ClassifyError() = %s/%s, want %s/%s", ce.Kind, ce.Code, tc.kind, tc.code)
			}
			if ce.Retryable() != tc.retryable || IsRetryable(tc.err) != tc.retryable {
				t.Fatalf("retryable = %t, want %t", ce.Retryable(), tc.retryable)
			}
			if !errors.Is(ce, tc.err) {
				t.Fatalf("expected classified error to wrap %v", tc.err)
			}
			if ce.UserMessage == "" || ce.RecoverySuggestion() == "" {
				t.Fatalf("expected user message and suggestion, got %#v", ce)
			}
		})
	}
	if ClassifyError(nil) != nil || IsKind(nil, KindUnknown) || IsRetryable(nil) {
		t.Fatal("expected nil errors to classify as nothing")
	}
}

// TestClassifyErrorKeepsExistingCollaborationError verifies behavior for the covered scenario.
func TestClassifyErrorKeepsExistingCollaborationError(t *testing.T) {
	inner := NewCollaborationError(KindRateLimit, "slow down", nil).WithCode("throttled")
	wrapped := fmt.Errorf("save: %w", inner)
	if got := ClassifyError(wrapped); got != inner {
		t.Fatalf("expected the wrapped error returned as-is, got %#v", got)
	}
	if !IsKind(wrapped, KindRateLimit) || !IsRetryable(wrapped) {
		t.Fatal("expected rate limit to classify as retryable")
	}
	ce, ok := AsCollaborationError(wrapped)
	if !ok || ce.Code != "throttled" {
		t.Fatalf("AsCollaborationError() = %#v, %t", ce, ok)
	}
	if _, ok := AsCollaborationError(errors.New("plain")); ok {
		t.Fatal("expected plain error not to match")
	}
}

// TestCollaborationErrorMessages verifies behavior for the covered scenario.
func TestCollaborationErrorMessages(t *testing.T) {
	cause := errors.New("disk full")
	err := NewCollaborationError(KindStorage, "write notifications", cause)
	if got := err.Error(); got != "storage_error: write notifications: disk full" {
		t.Fatalf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap to expose the cause")
	}
	if err.UserMessage != "Your changes could not be saved." {
		t.Fatalf("unexpected user message %q", err.UserMessage)
	}

	v := NewValidationError("Comment cannot be empty")
	if v.Error() != "validation_error: Comment cannot be empty" || v.UserMessage != "Comment cannot be empty" {
		t.Fatalf("unexpected validation error %#v", v)
	}
	if !strings.Contains(RecoverySuggestion(KindPermissionDenied), "manager") {
		t.Fatalf("unexpected suggestion %q", RecoverySuggestion(KindPermissionDenied))
	}
}
