package app

import (
	"context"
)

// KeyValueStore is the durable per-installation storage the engine persists into.
// Get reports ok=false when the key is absent.
type KeyValueStore interface {
	Get(context.Context, string) ([]byte, bool, error)
	Set(context.Context, string, []byte) error
	Delete(context.Context, string) error
}

// Storage keys shared with the UI collaborator. The exact strings are part of the data format.
const (
	KeyDelegations             = "mauflow_delegations"
	KeyNotifications           = "mauflow_notifications"
	KeyTeamMembers             = "mauflow_team_members"
	KeyComments                = "mauflow_comments"
	KeyTaskAttachments         = "mauflow_task_attachments"
	KeyNotificationPreferences = "mauflow_notification_preferences"
	KeyCurrentUser             = "mauflow_current_user"
	KeyEnhancedTasks           = "mauflow_enhanced_tasks"
	KeyCollaborationState      = "mauflow_collaboration_state"
	KeyDataVersion             = "mauflow_data_version"
)

// PreferencesKey returns the per-user preferences key, or the bare key for an empty user id.
func PreferencesKey(userID string) string {
	if userID == "" {
		return KeyNotificationPreferences
	}
	return KeyNotificationPreferences + "_" + userID
}
