package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuietHours is a daily HH:MM window; End before Start wraps past midnight.
type QuietHours struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// NotificationPreferences is the per-user delivery configuration.
type NotificationPreferences struct {
	TaskDelegated      bool       `json:"taskDelegated"`
	TaskCompleted      bool       `json:"taskCompleted"`
	TaskUpdated        bool       `json:"taskUpdated"`
	CommentMention     bool       `json:"commentMention"`
	CommentReply       bool       `json:"commentReply"`
	DelegationRevoked  bool       `json:"delegationRevoked"`
	EmailNotifications bool       `json:"emailNotifications"`
	PushNotifications  bool       `json:"pushNotifications"`
	SoundEnabled       bool       `json:"soundEnabled"`
	QuietHours         QuietHours `json:"quietHours"`
}

// DefaultNotificationPreferences enables every type with quiet hours off.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		TaskDelegated:      true,
		TaskCompleted:      true,
		TaskUpdated:        true,
		CommentMention:     true,
		CommentReply:       true,
		DelegationRevoked:  true,
		EmailNotifications: false,
		PushNotifications:  true,
		SoundEnabled:       true,
		QuietHours: QuietHours{
			Enabled:   false,
			StartTime: "22:00",
			EndTime:   "08:00",
		},
	}
}

// MergeNotificationPreferences overlays a partial stored JSON document on defaults.
// Corrupt input yields the defaults.
func MergeNotificationPreferences(raw []byte) NotificationPreferences {
	prefs := DefaultNotificationPreferences()
	if len(raw) == 0 {
		return prefs
	}
	// Unmarshal into the defaults so absent fields keep their default values.
	merged := prefs
	if err := json.Unmarshal(raw, &merged); err != nil {
		return prefs
	}
	if _, _, err := parseTimeOfDay(merged.QuietHours.StartTime); err != nil {
		merged.QuietHours.StartTime = prefs.QuietHours.StartTime
	}
	if _, _, err := parseTimeOfDay(merged.QuietHours.EndTime); err != nil {
		merged.QuietHours.EndTime = prefs.QuietHours.EndTime
	}
	return merged
}

// Allows reports whether the user wants notifications of type t.
func (p NotificationPreferences) Allows(t NotificationType) bool {
	switch t {
	case NotificationTaskDelegated:
		return p.TaskDelegated
	case NotificationTaskCompleted:
		return p.TaskCompleted
	case NotificationTaskUpdated:
		return p.TaskUpdated
	case NotificationCommentMention:
		return p.CommentMention
	case NotificationCommentReply:
		return p.CommentReply
	case NotificationDelegationRevoked:
		return p.DelegationRevoked
	default:
		return true
	}
}

// SetType toggles one notification type.
func (p *NotificationPreferences) SetType(t NotificationType, enabled bool) error {
	switch t {
	case NotificationTaskDelegated:
		p.TaskDelegated = enabled
	case NotificationTaskCompleted:
		p.TaskCompleted = enabled
	case NotificationTaskUpdated:
		p.TaskUpdated = enabled
	case NotificationCommentMention:
		p.CommentMention = enabled
	case NotificationCommentReply:
		p.CommentReply = enabled
	case NotificationDelegationRevoked:
		p.DelegationRevoked = enabled
	default:
		return ErrInvalidNotification
	}
	return nil
}

// Validate checks the quiet-hours window format.
func (p NotificationPreferences) Validate() error {
	if _, _, err := parseTimeOfDay(p.QuietHours.StartTime); err != nil {
		return fmt.Errorf("quiet hours start: %w", err)
	}
	if _, _, err := parseTimeOfDay(p.QuietHours.EndTime); err != nil {
		return fmt.Errorf("quiet hours end: %w", err)
	}
	return nil
}

// InQuietHours reports whether now falls inside the configured window.
func (q QuietHours) InQuietHours(now time.Time) bool {
	if !q.Enabled {
		return false
	}
	startH, startM, err := parseTimeOfDay(q.StartTime)
	if err != nil {
		return false
	}
	endH, endM, err := parseTimeOfDay(q.EndTime)
	if err != nil {
		return false
	}
	current := now.Hour()*60 + now.Minute()
	start := startH*60 + startM
	end := endH*60 + endM
	switch {
	case start == end:
		return false
	case start < end:
		return current >= start && current < end
	default:
		return current >= start || current < end
	}
}

// parseTimeOfDay parses an HH:MM string.
func parseTimeOfDay(v string) (int, int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, 0, ErrInvalidTimeOfDay
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, ErrInvalidTimeOfDay
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 || len(mm) != 2 {
		return 0, 0, ErrInvalidTimeOfDay
	}
	return hour, minute, nil
}
