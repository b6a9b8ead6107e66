package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DelegationStatus is the lifecycle state of a delegation.
type DelegationStatus string

// Delegation lifecycle states.
const (
	DelegationActive    DelegationStatus = "active"
	DelegationCompleted DelegationStatus = "completed"
	DelegationRevoked   DelegationStatus = "revoked"
)

// DelegationPriority marks how urgently the assignee should act.
type DelegationPriority string

// Delegation priorities.
const (
	DelegationPriorityNormal DelegationPriority = "normal"
	DelegationPriorityUrgent DelegationPriority = "urgent"
)

// MaxDelegationNoteLength bounds the free-form delegation note.
const MaxDelegationNoteLength = 500

// TaskDelegation records ownership of a task handed from a delegator to an assignee.
type TaskDelegation struct {
	ID          string             `json:"id"`
	TaskID      string             `json:"taskId"`
	DelegatorID string             `json:"delegatorId"`
	AssigneeID  string             `json:"assigneeId"`
	DelegatedAt time.Time          `json:"delegatedAt"`
	Note        string             `json:"note,omitempty"`
	Status      DelegationStatus   `json:"status"`
	Priority    DelegationPriority `json:"priority"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	RevokedAt   *time.Time         `json:"revokedAt,omitempty"`
}

// DelegationInput holds input values for delegation creation.
type DelegationInput struct {
	ID          string
	TaskID      string
	DelegatorID string
	AssigneeID  string
	Note        string
	Priority    DelegationPriority
}

// NewDelegation constructs an active delegation.
func NewDelegation(in DelegationInput, now time.Time) (TaskDelegation, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TaskID = strings.TrimSpace(in.TaskID)
	in.DelegatorID = strings.TrimSpace(in.DelegatorID)
	in.AssigneeID = strings.TrimSpace(in.AssigneeID)
	in.Note = strings.TrimSpace(in.Note)

	if in.ID == "" || in.DelegatorID == "" || in.AssigneeID == "" {
		return TaskDelegation{}, ErrInvalidID
	}
	if in.TaskID == "" {
		return TaskDelegation{}, ErrInvalidTaskID
	}
	if in.DelegatorID == in.AssigneeID {
		return TaskDelegation{}, ErrSelfDelegation
	}
	if utf8.RuneCountInString(in.Note) > MaxDelegationNoteLength {
		return TaskDelegation{}, ErrNoteTooLong
	}
	if in.Priority == "" {
		in.Priority = DelegationPriorityNormal
	}
	if in.Priority != DelegationPriorityNormal && in.Priority != DelegationPriorityUrgent {
		return TaskDelegation{}, ErrInvalidPriority
	}

	return TaskDelegation{
		ID:          in.ID,
		TaskID:      in.TaskID,
		DelegatorID: in.DelegatorID,
		AssigneeID:  in.AssigneeID,
		DelegatedAt: now.UTC(),
		Note:        in.Note,
		Status:      DelegationActive,
		Priority:    in.Priority,
	}, nil
}

// IsActive reports whether the delegation is still in force.
func (d TaskDelegation) IsActive() bool {
	return d.Status == DelegationActive
}

// Complete transitions an active delegation to completed.
func (d *TaskDelegation) Complete(now time.Time) error {
	if d.Status != DelegationActive {
		return ErrDelegationNotActive
	}
	ts := now.UTC()
	d.Status = DelegationCompleted
	d.CompletedAt = &ts
	return nil
}

// Revoke transitions an active delegation to revoked.
func (d *TaskDelegation) Revoke(now time.Time) error {
	if d.Status != DelegationActive {
		return ErrDelegationNotActive
	}
	ts := now.UTC()
	d.Status = DelegationRevoked
	d.RevokedAt = &ts
	return nil
}

// DelegationFilter selects delegations in pure query helpers.
type DelegationFilter struct {
	TaskID      string
	AssigneeID  string
	DelegatorID string
	ActiveOnly  bool
}

// Matches reports whether d satisfies every non-empty filter field.
func (f DelegationFilter) Matches(d TaskDelegation) bool {
	if f.TaskID != "" && d.TaskID != f.TaskID {
		return false
	}
	if f.AssigneeID != "" && d.AssigneeID != f.AssigneeID {
		return false
	}
	if f.DelegatorID != "" && d.DelegatorID != f.DelegatorID {
		return false
	}
	if f.ActiveOnly && !d.IsActive() {
		return false
	}
	return true
}

// FilterDelegations returns the delegations matching f, preserving order.
func FilterDelegations(in []TaskDelegation, f DelegationFilter) []TaskDelegation {
	out := make([]TaskDelegation, 0, len(in))
	for _, d := range in {
		if f.Matches(d) {
			out = append(out, d)
		}
	}
	return out
}

// ActiveDelegationForTask returns the active delegation for a task, if any.
func ActiveDelegationForTask(in []TaskDelegation, taskID string) (TaskDelegation, bool) {
	for _, d := range in {
		if d.TaskID == taskID && d.IsActive() {
			return d, true
		}
	}
	return TaskDelegation{}, false
}
