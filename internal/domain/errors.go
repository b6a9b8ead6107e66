package domain

import "errors"

var (
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidName          = errors.New("invalid name")
	ErrInvalidTaskID        = errors.New("invalid task id")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrInvalidStatus        = errors.New("invalid delegation status")
	ErrSelfDelegation       = errors.New("cannot delegate a task to yourself")
	ErrNoteTooLong          = errors.New("delegation note too long")
	ErrAssigneeInactive     = errors.New("assignee is not active")
	ErrDuplicateDelegation  = errors.New("task is already delegated to this user")
	ErrDelegationNotActive  = errors.New("delegation is not active")
	ErrInvalidNotification  = errors.New("invalid notification type")
	ErrInvalidRecipient     = errors.New("invalid notification recipient")
	ErrInvalidTimeOfDay     = errors.New("invalid time of day")
	ErrInvalidCommentBody   = errors.New("invalid comment content")
	ErrInvalidAttachment    = errors.New("invalid attachment")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotFound             = errors.New("not found")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrDeliveryDisconnected = errors.New("delivery channel disconnected")
)
