package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hylla/mauflow/internal/domain"
)

func TestSnapshotRoundTripAcrossEngines(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()
	if _, err := src.engine.Delegations.DelegateTask(as("alice"), DelegateTaskInput{TaskID: "T1", AssigneeID: "bob", Note: "parser"}); err != nil {
		t.Fatalf("DelegateTask() error = %v", err)
	}
	if _, err := src.engine.Comments.Add(as("bob"), AddCommentInput{TaskID: "T1", Content: "on it"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	snap, err := src.engine.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion || !snap.ExportedAt.Equal(testNow) {
		t.Fatalf("unexpected snapshot header %q %v", snap.Version, snap.ExportedAt)
	}
	if len(snap.TeamMembers) != 4 || len(snap.Delegations) != 1 || len(snap.Notifications) != 1 || len(snap.Comments) != 1 {
		t.Fatalf("unexpected snapshot contents %#v", snap)
	}
	var state map[string]any
	if !src.engine.Store.GetJSON(ctx, KeyCollaborationState, &state) || state["lastExportAt"] == nil {
		t.Fatalf("expected lastExportAt recorded, got %#v", state)
	}

	dst := NewEngine(newFakeKV(), ServiceConfig{IDGen: sequentialIDs("dst")})
	t.Cleanup(dst.Close)
	if err := dst.ImportSnapshot(ctx, snap); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	if got, ok := dst.Delegations.ActiveForTask(ctx, "T1"); !ok || got.AssigneeID != "bob" {
		t.Fatalf("expected imported active delegation, got %#v", got)
	}
	if got := dst.Comments.List(ctx, "T1"); len(got) != 1 || got[0].Content != "on it" {
		t.Fatalf("expected imported comment in memory, got %#v", got)
	}
	if got := dst.Store.DataVersion(ctx); got != CurrentDataVersion {
		t.Fatalf("DataVersion() = %d, want %d", got, CurrentDataVersion)
	}
}

func TestImportSnapshotRejectsInvalidContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	active := func(id string) domain.TaskDelegation {
		return domain.TaskDelegation{ID: id, TaskID: "T1", DelegatorID: "alice", AssigneeID: "bob", Status: domain.DelegationActive}
	}
	cases := []struct {
		name string
		snap Snapshot
		want string
	}{
		{name: "version", snap: Snapshot{Version: "other.v9"}, want: "unsupported snapshot version"},
		{name: "two active", snap: Snapshot{Delegations: []domain.TaskDelegation{active("d1"), active("d2")}}, want: "two active delegations"},
		{name: "bad status", snap: Snapshot{Delegations: []domain.TaskDelegation{{ID: "d1", TaskID: "T1", Status: "paused"}}}, want: "status"},
		{name: "bad type", snap: Snapshot{Notifications: []domain.Notification{{ID: "n1", RecipientID: "bob", Type: "poke"}}}, want: "type"},
		{name: "duplicate member", snap: Snapshot{TeamMembers: []domain.TeamMember{
			{User: domain.User{ID: "x", Name: "X"}},
			{User: domain.User{ID: "x", Name: "X again"}},
		}}, want: "duplicate team member"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := env.engine.ImportSnapshot(ctx, tc.snap)
			ce := wantKind(t, err, domain.KindValidation)
			if ce.Code != "invalid_snapshot" || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error %#v (%v)", ce, err)
			}
		})
	}
	err := env.engine.ImportSnapshot(ctx, Snapshot{Delegations: []domain.TaskDelegation{{ID: "d1", TaskID: "T1", Status: "paused"}}})
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected invalid status sentinel, got %v", err)
	}
	if got := env.engine.Store.TeamMembers(ctx); len(got) != 4 {
		t.Fatalf("expected rejected imports to leave storage untouched, got %d members", len(got))
	}
}

func TestEngineOpenStampsDataVersion(t *testing.T) {
	kv := newFakeKV()
	engine := NewEngine(kv, ServiceConfig{IDGen: sequentialIDs("id")})
	t.Cleanup(engine.Close)
	ctx := context.Background()
	if got := engine.Store.DataVersion(ctx); got != 0 {
		t.Fatalf("DataVersion() = %d before Open, want 0", got)
	}
	if err := engine.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := engine.Store.DataVersion(ctx); got != CurrentDataVersion {
		t.Fatalf("DataVersion() = %d, want %d", got, CurrentDataVersion)
	}
	writes := kv.sets(KeyDataVersion)
	engine.Close()
	if err := engine.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := kv.sets(KeyDataVersion); got != writes {
		t.Fatalf("expected current version to be left alone, writes %d -> %d", writes, got)
	}
}
