package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies collaboration failures.
type ErrorKind string

// Error kinds.
const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindUserNotFound     ErrorKind = "user_not_found"
	KindDelegationFailed ErrorKind = "delegation_failed"
	KindValidation       ErrorKind = "validation_error"
	KindNotFound         ErrorKind = "not_found"
	KindStorage          ErrorKind = "storage_error"
	KindNetwork          ErrorKind = "network_error"
	KindTimeout          ErrorKind = "timeout_error"
	KindRateLimit        ErrorKind = "rate_limit_error"
	KindUnknown          ErrorKind = "unknown_error"
)

// Retryable reports whether failures of this kind may succeed on retry.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindStorage, KindNetwork, KindTimeout, KindRateLimit:
		return true
	default:
		return false
	}
}

// CollaborationError carries a machine code, a developer message, and a user-facing message.
type CollaborationError struct {
	Kind        ErrorKind
	Code        string
	Message     string
	UserMessage string
	Err         error
}

// Error implements error with the developer message.
func (e *CollaborationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CollaborationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may succeed on retry.
func (e *CollaborationError) Retryable() bool {
	return e.Kind.Retryable()
}

// RecoverySuggestion returns the suggestion for this error's kind.
func (e *CollaborationError) RecoverySuggestion() string {
	return RecoverySuggestion(e.Kind)
}

// NewCollaborationError builds an error whose code defaults to its kind.
func NewCollaborationError(kind ErrorKind, message string, cause error) *CollaborationError {
	return &CollaborationError{
		Kind:        kind,
		Code:        string(kind),
		Message:     message,
		UserMessage: userMessage(kind),
		Err:         cause,
	}
}

// NewValidationError builds a validation_error whose user message is the validator output.
func NewValidationError(message string) *CollaborationError {
	err := NewCollaborationError(KindValidation, message, nil)
	err.UserMessage = message
	return err
}

// WithCode overrides the machine code.
func (e *CollaborationError) WithCode(code string) *CollaborationError {
	e.Code = code
	return e
}

// AsCollaborationError extracts a CollaborationError from err's chain.
func AsCollaborationError(err error) (*CollaborationError, bool) {
	var ce *CollaborationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// validationCode returns the machine code for validation sentinels that callers branch on.
func validationCode(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateDelegation):
		return "duplicate_delegation"
	case errors.Is(err, ErrAssigneeInactive):
		return "assignee_inactive"
	default:
		return ""
	}
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Kind == kind
}

// IsRetryable reports whether err classifies as a retryable failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Retryable()
}

// ClassifyError maps any error onto the taxonomy.
func ClassifyError(err error) *CollaborationError {
	if err == nil {
		return nil
	}
	if ce, ok := AsCollaborationError(err); ok {
		return ce
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewCollaborationError(KindTimeout, "operation timed out", err)
	case errors.Is(err, context.Canceled):
		return NewCollaborationError(KindTimeout, "operation cancelled", err)
	case errors.Is(err, ErrPermissionDenied):
		return NewCollaborationError(KindPermissionDenied, err.Error(), err)
	case errors.Is(err, ErrUserNotFound):
		return NewCollaborationError(KindUserNotFound, err.Error(), err)
	case errors.Is(err, ErrNotFound):
		return NewCollaborationError(KindNotFound, err.Error(), err)
	case errors.Is(err, ErrDelegationNotActive):
		return NewCollaborationError(KindDelegationFailed, err.Error(), err).WithCode("delegation_not_active")
	case errors.Is(err, ErrStorageUnavailable):
		return NewCollaborationError(KindStorage, err.Error(), err)
	case errors.Is(err, ErrDeliveryDisconnected):
		return NewCollaborationError(KindNetwork, err.Error(), err)
	case validationCode(err) != "":
		ce := NewCollaborationError(KindValidation, err.Error(), err).WithCode(validationCode(err))
		ce.UserMessage = err.Error()
		return ce
	case errors.Is(err, ErrSelfDelegation),
		errors.Is(err, ErrNoteTooLong),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidTaskID),
		errors.Is(err, ErrInvalidPriority),
		errors.Is(err, ErrInvalidNotification),
		errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrInvalidTimeOfDay),
		errors.Is(err, ErrInvalidCommentBody),
		errors.Is(err, ErrInvalidAttachment):
		ce := NewCollaborationError(KindValidation, err.Error(), err)
		ce.UserMessage = err.Error()
		return ce
	default:
		return NewCollaborationError(KindUnknown, err.Error(), err)
	}
}

// userMessage returns the end-user text for a kind.
func userMessage(kind ErrorKind) string {
	switch kind {
	case KindPermissionDenied:
		return "You don't have permission to perform this action."
	case KindUserNotFound:
		return "The selected user could not be found."
	case KindDelegationFailed:
		return "The task delegation could not be completed."
	case KindValidation:
		return "Please check your input and try again."
	case KindNotFound:
		return "The requested item could not be found."
	case KindStorage:
		return "Your changes could not be saved."
	case KindNetwork:
		return "Connection problem. Your changes will be retried."
	case KindTimeout:
		return "The operation took too long to complete."
	case KindRateLimit:
		return "Too many requests. Please wait a moment."
	default:
		return "Something went wrong."
	}
}

// RecoverySuggestion returns UI guidance for recovering from a failure kind.
func RecoverySuggestion(kind ErrorKind) string {
	switch kind {
	case KindPermissionDenied:
		return "Ask a team manager to perform this action or to update your role."
	case KindUserNotFound:
		return "Refresh the team list and pick another team member."
	case KindDelegationFailed:
		return "Reload the task to see its current delegation and try again."
	case KindValidation:
		return "Fix the highlighted fields and submit again."
	case KindNotFound:
		return "The item may have been removed. Refresh and try again."
	case KindStorage:
		return "Free up browser storage or try again in a moment."
	case KindNetwork:
		return "Check your connection; pending changes will be retried automatically."
	case KindTimeout:
		return "Try again; if the problem persists, reload the page."
	case KindRateLimit:
		return "Wait a few seconds before trying again."
	default:
		return "Try again later."
	}
}
