package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

// TestNewDelegationDefaultsAndNormalization verifies behavior for the covered scenario.
func TestNewDelegationDefaultsAndNormalization(t *testing.T) {
	d, err := NewDelegation(DelegationInput{
		ID:          " d1 ",
		TaskID:      " T1 ",
		DelegatorID: "alice",
		AssigneeID:  " bob ",
		Note:        "  take a look  ",
	}, testNow)
	if err != nil {
		t.Fatalf("NewDelegation() error = %v", err)
	}
	if d.ID != "d1" || d.TaskID != "T1" || d.AssigneeID != "bob" || d.Note != "take a look" {
		t.Fatalf("expected trimmed fields, got %#v", d)
	}
	if d.Status != DelegationActive || d.Priority != DelegationPriorityNormal || !d.IsActive() {
		t.Fatalf("expected active normal delegation, got %#v", d)
	}
	if !d.DelegatedAt.Equal(testNow) {
		t.Fatalf("unexpected delegatedAt %s", d.DelegatedAt)
	}
}

// TestNewDelegationValidation verifies behavior for the covered scenario.
func TestNewDelegationValidation(t *testing.T) {
	base := DelegationInput{ID: "d1", TaskID: "T1", DelegatorID: "alice", AssigneeID: "bob"}
	cases := []struct {
		name string
		mod  func(*DelegationInput)
		want error
	}{
		{name: "missing id", mod: func(in *DelegationInput) { in.ID = " " }, want: ErrInvalidID},
		{name: "missing task", mod: func(in *DelegationInput) { in.TaskID = "" }, want: ErrInvalidTaskID},
		{name: "self", mod: func(in *DelegationInput) { in.AssigneeID = "alice" }, want: ErrSelfDelegation},
		{name: "long note", mod: func(in *DelegationInput) { in.Note = strings.Repeat("n", MaxDelegationNoteLength+1) }, want: ErrNoteTooLong},
		{name: "bad priority", mod: func(in *DelegationInput) { in.Priority = "later" }, want: ErrInvalidPriority},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mod(&in)
			if _, err := NewDelegation(in, testNow); !errors.Is(err, tc.want) {
				t.Fatalf("NewDelegation() error = %v, want %v", err, tc.want)
			}
		})
	}
}

// TestDelegationTransitionsAreOneWay verifies behavior for the covered scenario.
func TestDelegationTransitionsAreOneWay(t *testing.T) {
	d, err := NewDelegation(DelegationInput{ID: "d1", TaskID: "T1", DelegatorID: "alice", AssigneeID: "bob"}, testNow)
	if err != nil {
		t.Fatalf("NewDelegation() error = %v", err)
	}
	later := testNow.Add(time.Hour)
	if err := d.Complete(later); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if d.Status != DelegationCompleted || d.CompletedAt == nil || !d.CompletedAt.Equal(later) {
		t.Fatalf("unexpected completed delegation %#v", d)
	}
	if err := d.Revoke(later); !errors.Is(err, ErrDelegationNotActive) {
		t.Fatalf("Revoke() after complete error = %v", err)
	}
	if err := d.Complete(later); !errors.Is(err, ErrDelegationNotActive) {
		t.Fatalf("second Complete() error = %v", err)
	}

	r, _ := NewDelegation(DelegationInput{ID: "d2", TaskID: "T1", DelegatorID: "alice", AssigneeID: "bob"}, testNow)
	if err := r.Revoke(later); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if r.Status != DelegationRevoked || r.RevokedAt == nil || r.IsActive() {
		t.Fatalf("unexpected revoked delegation %#v", r)
	}
}

// TestFilterDelegations verifies behavior for the covered scenario.
func TestFilterDelegations(t *testing.T) {
	all := []TaskDelegation{
		{ID: "d1", TaskID: "T1", DelegatorID: "alice", AssigneeID: "bob", Status: DelegationRevoked},
		{ID: "d2", TaskID: "T1", DelegatorID: "alice", AssigneeID: "carol", Status: DelegationActive},
		{ID: "d3", TaskID: "T2", DelegatorID: "bob", AssigneeID: "carol", Status: DelegationCompleted},
	}
	cases := []struct {
		name   string
		filter DelegationFilter
		want   []string
	}{
		{name: "none", filter: DelegationFilter{}, want: []string{"d1", "d2", "d3"}},
		{name: "task", filter: DelegationFilter{TaskID: "T1"}, want: []string{"d1", "d2"}},
		{name: "assignee active", filter: DelegationFilter{AssigneeID: "carol", ActiveOnly: true}, want: []string{"d2"}},
		{name: "delegator", filter: DelegationFilter{DelegatorID: "bob"}, want: []string{"d3"}},
		{name: "no match", filter: DelegationFilter{TaskID: "T9"}, want: []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterDelegations(all, tc.filter)
			if len(got) != len(tc.want) {
				t.Fatalf("FilterDelegations() = %#v, want ids %v", got, tc.want)
			}
			for i := range got {
				if got[i].ID != tc.want[i] {
					t.Fatalf("FilterDelegations()[%d] = %s, want %s", i, got[i].ID, tc.want[i])
				}
			}
		})
	}

	if d, ok := ActiveDelegationForTask(all, "T1"); !ok || d.ID != "d2" {
		t.Fatalf("ActiveDelegationForTask(T1) = %#v, %t", d, ok)
	}
	if _, ok := ActiveDelegationForTask(all, "T2"); ok {
		t.Fatal("expected no active delegation for T2")
	}
}
