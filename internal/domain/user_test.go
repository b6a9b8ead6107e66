package domain

import (
	"errors"
	"testing"
)

// TestNewTeamMemberDerivesRoleAndHandle verifies behavior for the covered scenario.
func TestNewTeamMemberDerivesRoleAndHandle(t *testing.T) {
	m, err := NewTeamMember(" bob ", " Bob  Smith ", " bob@example.com ", "MEMBER")
	if err != nil {
		t.Fatalf("NewTeamMember() error = %v", err)
	}
	if m.ID != "bob" || m.Name != "Bob  Smith" || m.Email != "bob@example.com" || !m.IsActive {
		t.Fatalf("unexpected member %#v", m)
	}
	if m.MentionHandle() != "bobsmith" {
		t.Fatalf("MentionHandle() = %q", m.MentionHandle())
	}
	if m.Role.Name != RoleMember || !m.Role.CanDelegate || m.Role.CanManageTeam {
		t.Fatalf("unexpected role %#v", m.Role)
	}
	if !m.HasPermission("delegation", "create") || m.HasPermission("team", "manage") {
		t.Fatalf("unexpected permissions %#v", m.Permissions)
	}

	if _, err := NewTeamMember("", "X", "", RoleMember); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewTeamMember("x", " ", "", RoleMember); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

// TestRoleFor verifies behavior for the covered scenario.
func TestRoleFor(t *testing.T) {
	cases := []struct {
		name                      RoleName
		want                      RoleName
		delegate, receive, manage bool
	}{
		{name: "admin", want: RoleAdmin, delegate: true, receive: true, manage: true},
		{name: " Manager ", want: RoleManager, delegate: true, receive: true, manage: true},
		{name: "viewer", want: RoleViewer},
		{name: "", want: RoleMember, delegate: true, receive: true},
		{name: "owner", want: RoleMember, delegate: true, receive: true},
	}
	for _, tc := range cases {
		r := RoleFor(tc.name)
		if r.Name != tc.want || r.CanDelegate != tc.delegate || r.CanReceiveDelegations != tc.receive || r.CanManageTeam != tc.manage {
			t.Fatalf("RoleFor(%q) = %#v", tc.name, r)
		}
	}
	if perms := DefaultPermissions(RoleFor(RoleViewer)); len(perms) != 2 {
		t.Fatalf("expected read-only viewer permissions, got %#v", perms)
	}
}

// TestMentionHandlePrefersExplicitHandle verifies behavior for the covered scenario.
func TestMentionHandlePrefersExplicitHandle(t *testing.T) {
	u := User{Name: "Alice Jones", Handle: " AJ "}
	if got := u.MentionHandle(); got != "aj" {
		t.Fatalf("MentionHandle() = %q, want aj", got)
	}
	u.Handle = ""
	if got := u.MentionHandle(); got != "alicejones" {
		t.Fatalf("MentionHandle() = %q, want alicejones", got)
	}
}

// TestTeamMemberPresence verifies behavior for the covered scenario.
func TestTeamMemberPresence(t *testing.T) {
	var m TeamMember
	m.SetPresence(true, testNow)
	if !m.IsOnline || m.LastSeen == nil || !m.LastSeen.Equal(testNow) {
		t.Fatalf("unexpected presence %#v", m)
	}
	m.SetPresence(false, testNow)
	if m.IsOnline {
		t.Fatal("expected offline")
	}
}
