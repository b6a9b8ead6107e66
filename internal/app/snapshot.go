package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/mauflow/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "mauflow.collaboration.v1"

// Snapshot is a portable copy of every collaboration collection.
type Snapshot struct {
	Version       string                  `json:"version"`
	ExportedAt    time.Time               `json:"exportedAt"`
	TeamMembers   []domain.TeamMember     `json:"teamMembers"`
	Delegations   []domain.TaskDelegation `json:"delegations"`
	Notifications []domain.Notification   `json:"notifications"`
	Comments      []domain.TaskComment    `json:"comments,omitempty"`
	Attachments   []domain.TaskAttachment `json:"attachments,omitempty"`
}

// ExportSnapshot reads every collection into a snapshot.
func (e *Engine) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	now := e.clock.Now().UTC()
	snap := Snapshot{
		Version:       SnapshotVersion,
		ExportedAt:    now,
		TeamMembers:   e.Store.TeamMembers(ctx),
		Delegations:   e.Store.Delegations(ctx),
		Notifications: e.Store.Notifications(ctx),
		Comments:      e.Store.Comments(ctx),
		Attachments:   e.Store.Attachments(ctx),
	}
	if err := e.Store.MergeJSON(ctx, KeyCollaborationState, map[string]any{"lastExportAt": now}); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// ImportSnapshot validates snap and replaces every collection with its contents.
func (e *Engine) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		ce := domain.NewCollaborationError(domain.KindValidation, "invalid snapshot", err).WithCode("invalid_snapshot")
		ce.UserMessage = err.Error()
		return ce
	}
	if err := e.Store.SaveTeamMembers(ctx, snap.TeamMembers); err != nil {
		return err
	}
	if err := e.Store.SaveDelegations(ctx, snap.Delegations); err != nil {
		return err
	}
	if err := e.Store.SaveNotifications(ctx, snap.Notifications); err != nil {
		return err
	}
	if err := saveCollection(ctx, e.Store, KeyComments, snap.Comments); err != nil {
		return err
	}
	if err := saveCollection(ctx, e.Store, KeyTaskAttachments, snap.Attachments); err != nil {
		return err
	}
	if err := e.Store.SetDataVersion(ctx, CurrentDataVersion); err != nil {
		return err
	}
	if err := e.Store.MergeJSON(ctx, KeyCollaborationState, map[string]any{"lastImportAt": e.clock.Now().UTC()}); err != nil {
		return err
	}
	e.Comments.Reload(ctx)
	e.Attachments.Reload(ctx)
	return nil
}

// Validate validates the requested operation.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}

	memberIDs := map[string]struct{}{}
	for i, m := range s.TeamMembers {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("teamMembers[%d].id is required", i)
		}
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("teamMembers[%d].name is required", i)
		}
		if _, exists := memberIDs[m.ID]; exists {
			return fmt.Errorf("duplicate team member id: %q", m.ID)
		}
		memberIDs[m.ID] = struct{}{}
	}

	delegationIDs := map[string]struct{}{}
	activeByTask := map[string]string{}
	for i, d := range s.Delegations {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("delegations[%d].id is required", i)
		}
		if strings.TrimSpace(d.TaskID) == "" {
			return fmt.Errorf("delegations[%d].taskId is required", i)
		}
		if _, exists := delegationIDs[d.ID]; exists {
			return fmt.Errorf("duplicate delegation id: %q", d.ID)
		}
		delegationIDs[d.ID] = struct{}{}
		switch d.Status {
		case domain.DelegationActive, domain.DelegationCompleted, domain.DelegationRevoked:
		default:
			return fmt.Errorf("delegations[%d].status %q: %w", i, d.Status, domain.ErrInvalidStatus)
		}
		if d.IsActive() {
			if other, exists := activeByTask[d.TaskID]; exists {
				return fmt.Errorf("task %q has two active delegations: %q and %q", d.TaskID, other, d.ID)
			}
			activeByTask[d.TaskID] = d.ID
		}
	}

	notificationIDs := map[string]struct{}{}
	for i, n := range s.Notifications {
		if strings.TrimSpace(n.ID) == "" {
			return fmt.Errorf("notifications[%d].id is required", i)
		}
		if strings.TrimSpace(n.RecipientID) == "" {
			return fmt.Errorf("notifications[%d].recipientId is required", i)
		}
		if !domain.IsValidNotificationType(n.Type) {
			return fmt.Errorf("notifications[%d].type %q is invalid", i, n.Type)
		}
		if _, exists := notificationIDs[n.ID]; exists {
			return fmt.Errorf("duplicate notification id: %q", n.ID)
		}
		notificationIDs[n.ID] = struct{}{}
	}

	for i, c := range s.Comments {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.TaskID) == "" {
			return fmt.Errorf("comments[%d] id and taskId are required", i)
		}
	}
	for i, a := range s.Attachments {
		if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.TaskID) == "" {
			return fmt.Errorf("attachments[%d] id and taskId are required", i)
		}
	}
	return nil
}
