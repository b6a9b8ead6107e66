package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// NotificationType identifies the kind of notification.
type NotificationType string

// Notification types.
const (
	NotificationTaskDelegated     NotificationType = "task_delegated"
	NotificationTaskCompleted     NotificationType = "task_completed"
	NotificationTaskUpdated       NotificationType = "task_updated"
	NotificationCommentMention    NotificationType = "comment_mention"
	NotificationCommentReply      NotificationType = "comment_reply"
	NotificationDelegationRevoked NotificationType = "delegation_revoked"
)

// NotificationTypes lists every supported type in display order.
var NotificationTypes = []NotificationType{
	NotificationTaskDelegated,
	NotificationTaskCompleted,
	NotificationTaskUpdated,
	NotificationCommentMention,
	NotificationCommentReply,
	NotificationDelegationRevoked,
}

// IsValidNotificationType reports whether t is supported.
func IsValidNotificationType(t NotificationType) bool {
	return slices.Contains(NotificationTypes, t)
}

// Resource types referenced by notifications.
const (
	ResourceTask       = "task"
	ResourceComment    = "comment"
	ResourceDelegation = "delegation"
	ResourceAttachment = "attachment"
)

// Metadata keys understood by the engine.
const (
	MetadataPriority       = "priority"
	MetadataPriorityUrgent = "urgent"
)

// Notification is an alert addressed to exactly one recipient.
type Notification struct {
	ID           string            `json:"id"`
	Type         NotificationType  `json:"type"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	RecipientID  string            `json:"recipientId"`
	SenderID     string            `json:"senderId,omitempty"`
	ResourceID   string            `json:"resourceId,omitempty"`
	ResourceType string            `json:"resourceType,omitempty"`
	IsRead       bool              `json:"isRead"`
	ReadAt       *time.Time        `json:"readAt,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	IsArchived   bool              `json:"isArchived,omitempty"`
	ArchivedAt   *time.Time        `json:"archivedAt,omitempty"`
}

// NotificationInput holds input values for notification creation.
type NotificationInput struct {
	Type          NotificationType
	RecipientID   string
	SenderID      string
	ActorName     string
	ResourceID    string
	ResourceType  string
	ResourceTitle string
	Extra         string
	Metadata      map[string]string
}

// ShouldCreateNotification reports whether a recipient should hear about a sender's action.
func ShouldCreateNotification(recipientID, senderID string) bool {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return false
	}
	return recipientID != strings.TrimSpace(senderID)
}

// NewNotification builds an unread notification from a per-type template.
func NewNotification(id string, in NotificationInput, now time.Time) (Notification, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Notification{}, ErrInvalidID
	}
	if !IsValidNotificationType(in.Type) {
		return Notification{}, ErrInvalidNotification
	}
	in.RecipientID = strings.TrimSpace(in.RecipientID)
	if in.RecipientID == "" {
		return Notification{}, ErrInvalidRecipient
	}
	var metadata map[string]string
	if len(in.Metadata) > 0 {
		metadata = make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			metadata[k] = v
		}
	}
	return Notification{
		ID:           id,
		Type:         in.Type,
		Title:        NotificationTitle(in.Type),
		Message:      NotificationMessage(in.Type, in.ActorName, in.ResourceTitle, in.Extra),
		RecipientID:  in.RecipientID,
		SenderID:     strings.TrimSpace(in.SenderID),
		ResourceID:   strings.TrimSpace(in.ResourceID),
		ResourceType: strings.TrimSpace(in.ResourceType),
		CreatedAt:    now.UTC(),
		Metadata:     metadata,
	}, nil
}

// NotificationTitle returns the short heading for a notification type.
func NotificationTitle(t NotificationType) string {
	switch t {
	case NotificationTaskDelegated:
		return "New Task Assignment"
	case NotificationTaskCompleted:
		return "Task Completed"
	case NotificationTaskUpdated:
		return "Task Updated"
	case NotificationCommentMention:
		return "You were mentioned"
	case NotificationCommentReply:
		return "New Reply"
	case NotificationDelegationRevoked:
		return "Assignment Revoked"
	default:
		return "Notification"
	}
}

// NotificationMessage renders the body text for a notification type.
func NotificationMessage(t NotificationType, actor, title, extra string) string {
	switch t {
	case NotificationTaskDelegated:
		return fmt.Sprintf("%s assigned you a task: \"%s\"", actor, title)
	case NotificationTaskCompleted:
		return fmt.Sprintf("%s completed the task you assigned: \"%s\"", actor, title)
	case NotificationTaskUpdated:
		if strings.TrimSpace(extra) == "" {
			return fmt.Sprintf("%s updated the task: \"%s\"", actor, title)
		}
		return fmt.Sprintf("%s updated the task: \"%s\" - %s", actor, title, extra)
	case NotificationCommentMention:
		return fmt.Sprintf("%s mentioned you in a comment on \"%s\"", actor, title)
	case NotificationCommentReply:
		return fmt.Sprintf("%s replied to your comment on \"%s\"", actor, title)
	case NotificationDelegationRevoked:
		return fmt.Sprintf("%s revoked your assignment for task: \"%s\"", actor, title)
	default:
		return fmt.Sprintf("%s performed an action on \"%s\"", actor, title)
	}
}

// IsUrgent reports whether the notification carries the urgent priority flag.
func (n Notification) IsUrgent() bool {
	return n.Metadata[MetadataPriority] == MetadataPriorityUrgent
}

// BypassesQuietHours reports whether n is delivered even inside quiet hours.
func (n Notification) BypassesQuietHours() bool {
	return n.IsUrgent() || n.Type == NotificationDelegationRevoked
}

// MarkRead flips the notification to read; already-read notifications keep their timestamp.
func (n *Notification) MarkRead(now time.Time) bool {
	if n.IsRead {
		return false
	}
	ts := now.UTC()
	n.IsRead = true
	n.ReadAt = &ts
	return true
}

// MarkUnread flips the notification back to unread.
func (n *Notification) MarkUnread() bool {
	if !n.IsRead {
		return false
	}
	n.IsRead = false
	n.ReadAt = nil
	return true
}

// Archive soft-removes the notification from default views.
func (n *Notification) Archive(now time.Time) bool {
	if n.IsArchived {
		return false
	}
	ts := now.UTC()
	n.IsArchived = true
	n.ArchivedAt = &ts
	return true
}

// Unarchive restores an archived notification.
func (n *Notification) Unarchive() bool {
	if !n.IsArchived {
		return false
	}
	n.IsArchived = false
	n.ArchivedAt = nil
	return true
}

// NotificationStats aggregates read state for one recipient.
type NotificationStats struct {
	Total  int                      `json:"total"`
	Unread int                      `json:"unread"`
	Read   int                      `json:"read"`
	ByType map[NotificationType]int `json:"byType"`
}

// BuildNotificationStats aggregates notifications; unread+read and the per-type sum both equal total.
func BuildNotificationStats(in []Notification) NotificationStats {
	stats := NotificationStats{ByType: map[NotificationType]int{}}
	for _, n := range in {
		stats.Total++
		if n.IsRead {
			stats.Read++
		} else {
			stats.Unread++
		}
		stats.ByType[n.Type]++
	}
	return stats
}
