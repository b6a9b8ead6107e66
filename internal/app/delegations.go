package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hylla/mauflow/internal/clock"
	"github.com/hylla/mauflow/internal/domain"
)

// DelegateTaskInput holds input values for delegate operations.
type DelegateTaskInput struct {
	TaskID     string
	AssigneeID string
	Note       string
	Priority   domain.DelegationPriority
	// TaskTitle overrides the stored task title in notification text.
	TaskTitle string
}

// DelegationResult is the outcome of a successful delegation.
type DelegationResult struct {
	Delegation domain.TaskDelegation
	Warnings   []string
	// Superseded is the previously active delegation this one revoked, if any.
	Superseded *domain.TaskDelegation
}

// DelegationService owns the delegation lifecycle.
type DelegationService struct {
	store         *Store
	dir           *Directory
	notifications *NotificationService
	events        *Events
	retrier       *Retrier
	idGen         IDGenerator
	clock         clock.Clock
	logger        *log.Logger
}

// NewDelegationService constructs a delegation service.
func NewDelegationService(store *Store, dir *Directory, notifications *NotificationService, events *Events, retrier *Retrier, idGen IDGenerator, c clock.Clock, logger *log.Logger) *DelegationService {
	if retrier == nil {
		retrier = NewRetrier(BackoffPolicy{MaxAttempts: 1}, c)
	}
	return &DelegationService{
		store:         store,
		dir:           dir,
		notifications: notifications,
		events:        events,
		retrier:       retrier,
		idGen:         idGen,
		clock:         c,
		logger:        loggerOrDiscard(logger),
	}
}

// DelegateTask hands a task from the acting user to an assignee. A different active
// assignee on the same task is revoked in the same write; the same assignee is rejected.
func (s *DelegationService) DelegateTask(ctx context.Context, in DelegateTaskInput) (DelegationResult, error) {
	actor, err := s.dir.CurrentUser(ctx)
	if err != nil {
		return DelegationResult{}, err
	}
	if !actor.Role.CanDelegate {
		return DelegationResult{}, permissionDenied("you cannot delegate tasks")
	}
	assignee, ok := s.dir.Lookup(ctx, in.AssigneeID)
	if !ok {
		return DelegationResult{}, domain.NewCollaborationError(domain.KindUserNotFound, fmt.Sprintf("assignee %q not found", in.AssigneeID), domain.ErrUserNotFound)
	}
	if !assignee.Role.CanReceiveDelegations && assignee.ID != actor.ID {
		return DelegationResult{}, permissionDenied(assignee.Name + " cannot receive delegated tasks")
	}

	check := domain.ValidateDelegationRequest(domain.DelegationRequest{
		TaskID:    in.TaskID,
		Delegator: actor,
		Assignee:  &assignee,
		Note:      in.Note,
		Existing:  s.store.Delegations(ctx),
	})
	if err := check.Err(); err != nil {
		return DelegationResult{}, err
	}

	now := s.clock.Now()
	delegation, err := domain.NewDelegation(domain.DelegationInput{
		ID:          s.idGen(),
		TaskID:      in.TaskID,
		DelegatorID: actor.ID,
		AssigneeID:  assignee.ID,
		Note:        in.Note,
		Priority:    in.Priority,
	}, now)
	if err != nil {
		return DelegationResult{}, domain.ClassifyError(err)
	}

	var superseded *domain.TaskDelegation
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		superseded = nil
		return s.store.UpdateDelegations(ctx, func(current []domain.TaskDelegation) ([]domain.TaskDelegation, error) {
			for i := range current {
				d := &current[i]
				if d.TaskID != delegation.TaskID || !d.IsActive() {
					continue
				}
				if d.AssigneeID == delegation.AssigneeID {
					ce := domain.NewValidationError(fmt.Sprintf("Task is already delegated to %s", assignee.Name)).WithCode("duplicate_delegation")
					ce.Err = domain.ErrDuplicateDelegation
					return nil, ce
				}
				if err := d.Revoke(now); err != nil {
					return nil, domain.ClassifyError(err)
				}
				prev := *d
				superseded = &prev
			}
			return append([]domain.TaskDelegation{delegation}, current...), nil
		})
	})
	if err != nil {
		return DelegationResult{}, err
	}
	s.logger.Info("task delegated", "delegation_id", delegation.ID, "task_id", delegation.TaskID, "assignee_id", delegation.AssigneeID)

	title := s.store.taskTitle(ctx, delegation.TaskID, in.TaskTitle)
	if superseded != nil {
		s.logger.Info("superseded delegation revoked", "delegation_id", superseded.ID, "task_id", superseded.TaskID)
		s.notify(ctx, domain.NotificationDelegationRevoked, superseded.AssigneeID, actor, *superseded, title)
		s.publish(DelegationEventRevoked, *superseded, actor.ID)
	}
	s.notify(ctx, domain.NotificationTaskDelegated, delegation.AssigneeID, actor, delegation, title)
	s.publish(DelegationEventDelegated, delegation, actor.ID)

	return DelegationResult{
		Delegation: delegation,
		Warnings:   check.Warnings,
		Superseded: superseded,
	}, nil
}

// RevokeDelegation revokes an active delegation on behalf of its delegator or a team manager.
func (s *DelegationService) RevokeDelegation(ctx context.Context, delegationID string) (domain.TaskDelegation, error) {
	actor, err := s.dir.CurrentUser(ctx)
	if err != nil {
		return domain.TaskDelegation{}, err
	}
	updated, err := s.transition(ctx, delegationID, func(d *domain.TaskDelegation, now time.Time) error {
		if !domain.CanRevokeDelegation(actor, *d) {
			return permissionDenied("only the delegator or a team manager can revoke this delegation")
		}
		return d.Revoke(now)
	})
	if err != nil {
		return domain.TaskDelegation{}, err
	}
	s.logger.Info("delegation revoked", "delegation_id", updated.ID, "actor_id", actor.ID)
	s.notify(ctx, domain.NotificationDelegationRevoked, updated.AssigneeID, actor, updated, s.store.taskTitle(ctx, updated.TaskID, ""))
	s.publish(DelegationEventRevoked, updated, actor.ID)
	return updated, nil
}

// CompleteDelegation completes an active delegation on behalf of its assignee or a team manager.
func (s *DelegationService) CompleteDelegation(ctx context.Context, delegationID string) (domain.TaskDelegation, error) {
	actor, err := s.dir.CurrentUser(ctx)
	if err != nil {
		return domain.TaskDelegation{}, err
	}
	updated, err := s.transition(ctx, delegationID, func(d *domain.TaskDelegation, now time.Time) error {
		if !domain.CanCompleteDelegation(actor, *d) {
			return permissionDenied("only the assignee or a team manager can complete this delegation")
		}
		return d.Complete(now)
	})
	if err != nil {
		return domain.TaskDelegation{}, err
	}
	s.logger.Info("delegation completed", "delegation_id", updated.ID, "actor_id", actor.ID)
	s.notify(ctx, domain.NotificationTaskCompleted, updated.DelegatorID, actor, updated, s.store.taskTitle(ctx, updated.TaskID, ""))
	s.publish(DelegationEventCompleted, updated, actor.ID)
	return updated, nil
}

// transition applies fn to the current stored copy of one delegation and persists it.
func (s *DelegationService) transition(ctx context.Context, delegationID string, fn func(*domain.TaskDelegation, time.Time) error) (domain.TaskDelegation, error) {
	var updated domain.TaskDelegation
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		return s.store.UpdateDelegations(ctx, func(current []domain.TaskDelegation) ([]domain.TaskDelegation, error) {
			for i := range current {
				if current[i].ID != delegationID {
					continue
				}
				if err := fn(&current[i], now); err != nil {
					return nil, domain.ClassifyError(err)
				}
				updated = current[i]
				return current, nil
			}
			return nil, delegationNotFound(delegationID)
		})
	})
	if err != nil {
		return domain.TaskDelegation{}, err
	}
	return updated, nil
}

// notify creates a delegation notification. Failures are logged and swallowed.
func (s *DelegationService) notify(ctx context.Context, kind domain.NotificationType, recipientID string, actor domain.User, d domain.TaskDelegation, title string) {
	metadata := map[string]string{"delegationId": d.ID}
	if d.Priority == domain.DelegationPriorityUrgent {
		metadata[domain.MetadataPriority] = domain.MetadataPriorityUrgent
	}
	_, _, err := s.notifications.Create(ctx, domain.NotificationInput{
		Type:          kind,
		RecipientID:   recipientID,
		SenderID:      actor.ID,
		ActorName:     actor.Name,
		ResourceID:    d.TaskID,
		ResourceType:  domain.ResourceTask,
		ResourceTitle: title,
		Metadata:      metadata,
	})
	if err != nil {
		s.logger.Warn("delegation notification failed", "type", kind, "delegation_id", d.ID, "recipient_id", recipientID, "err", err)
	}
}

// publish broadcasts a persisted delegation transition.
func (s *DelegationService) publish(kind DelegationEventKind, d domain.TaskDelegation, actorID string) {
	if s.events == nil {
		return
	}
	s.events.Delegations.Publish(DelegationEvent{
		Kind:       kind,
		Delegation: d,
		ActorID:    actorID,
		Timestamp:  s.clock.Now(),
	})
}

// Get returns one delegation.
func (s *DelegationService) Get(ctx context.Context, delegationID string) (domain.TaskDelegation, error) {
	for _, d := range s.store.Delegations(ctx) {
		if d.ID == delegationID {
			return d, nil
		}
	}
	return domain.TaskDelegation{}, delegationNotFound(delegationID)
}

// List returns delegations matching filter, newest first as stored.
func (s *DelegationService) List(ctx context.Context, filter domain.DelegationFilter) []domain.TaskDelegation {
	return domain.FilterDelegations(s.store.Delegations(ctx), filter)
}

// ListAll returns every delegation.
func (s *DelegationService) ListAll(ctx context.Context) []domain.TaskDelegation {
	return s.store.Delegations(ctx)
}

// ByTask returns every delegation recorded for a task.
func (s *DelegationService) ByTask(ctx context.Context, taskID string) []domain.TaskDelegation {
	return s.List(ctx, domain.DelegationFilter{TaskID: taskID})
}

// ByAssignee returns every delegation assigned to a user.
func (s *DelegationService) ByAssignee(ctx context.Context, assigneeID string) []domain.TaskDelegation {
	return s.List(ctx, domain.DelegationFilter{AssigneeID: assigneeID})
}

// Active returns every active delegation.
func (s *DelegationService) Active(ctx context.Context) []domain.TaskDelegation {
	return s.List(ctx, domain.DelegationFilter{ActiveOnly: true})
}

// ActiveForTask returns the active delegation for a task, if any.
func (s *DelegationService) ActiveForTask(ctx context.Context, taskID string) (domain.TaskDelegation, bool) {
	return domain.ActiveDelegationForTask(s.store.Delegations(ctx), taskID)
}

// MineCreated returns the delegations the acting user handed out.
func (s *DelegationService) MineCreated(ctx context.Context) ([]domain.TaskDelegation, error) {
	actor, err := s.dir.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, domain.DelegationFilter{DelegatorID: actor.ID}), nil
}

// MineAssigned returns the delegations assigned to the acting user.
func (s *DelegationService) MineAssigned(ctx context.Context) ([]domain.TaskDelegation, error) {
	actor, err := s.dir.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, domain.DelegationFilter{AssigneeID: actor.ID}), nil
}

func permissionDenied(message string) *domain.CollaborationError {
	return domain.NewCollaborationError(domain.KindPermissionDenied, message, domain.ErrPermissionDenied)
}

func delegationNotFound(id string) *domain.CollaborationError {
	return domain.NewCollaborationError(domain.KindDelegationFailed, fmt.Sprintf("delegation %q not found", id), domain.ErrNotFound).WithCode("delegation_not_found")
}
