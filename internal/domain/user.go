package domain

import (
	"slices"
	"strings"
	"time"
)

// RoleName identifies one of the built-in permission bundles.
type RoleName string

// Built-in role names.
const (
	RoleAdmin   RoleName = "admin"
	RoleManager RoleName = "manager"
	RoleMember  RoleName = "member"
	RoleViewer  RoleName = "viewer"
)

// Role is a permission bundle attached to a user.
type Role struct {
	Name                  RoleName `json:"name"`
	CanDelegate           bool     `json:"canDelegate"`
	CanReceiveDelegations bool     `json:"canReceiveDelegations"`
	CanManageTeam         bool     `json:"canManageTeam"`
}

// Permission grants one action on one resource kind.
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// User is an identity loaded once per session.
type User struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email,omitempty"`
	Handle      string       `json:"handle,omitempty"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions,omitempty"`
	IsActive    bool         `json:"isActive"`
}

// TeamMember is a user projection carrying presence.
type TeamMember struct {
	User
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// RoleFor returns the built-in bundle for name, falling back to member.
func RoleFor(name RoleName) Role {
	switch RoleName(strings.TrimSpace(strings.ToLower(string(name)))) {
	case RoleAdmin:
		return Role{Name: RoleAdmin, CanDelegate: true, CanReceiveDelegations: true, CanManageTeam: true}
	case RoleManager:
		return Role{Name: RoleManager, CanDelegate: true, CanReceiveDelegations: true, CanManageTeam: true}
	case RoleViewer:
		return Role{Name: RoleViewer}
	default:
		return Role{Name: RoleMember, CanDelegate: true, CanReceiveDelegations: true}
	}
}

// DefaultPermissions returns the flat permission list that matches a role.
func DefaultPermissions(role Role) []Permission {
	out := []Permission{
		{Resource: "task", Action: "read"},
		{Resource: "comment", Action: "read"},
	}
	if role.Name == RoleViewer {
		return out
	}
	out = append(out,
		Permission{Resource: "task", Action: "update"},
		Permission{Resource: "comment", Action: "create"},
		Permission{Resource: "attachment", Action: "create"},
	)
	if role.CanDelegate {
		out = append(out, Permission{Resource: "delegation", Action: "create"})
	}
	if role.CanManageTeam {
		out = append(out,
			Permission{Resource: "delegation", Action: "manage"},
			Permission{Resource: "comment", Action: "delete"},
			Permission{Resource: "team", Action: "manage"},
		)
	}
	return out
}

// NewTeamMember constructs a normalized team member with role-derived permissions.
func NewTeamMember(id, name, email string, role RoleName) (TeamMember, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return TeamMember{}, ErrInvalidID
	}
	if name == "" {
		return TeamMember{}, ErrInvalidName
	}
	r := RoleFor(role)
	return TeamMember{
		User: User{
			ID:          id,
			Name:        name,
			Email:       strings.TrimSpace(email),
			Handle:      defaultHandle(name),
			Role:        r,
			Permissions: DefaultPermissions(r),
			IsActive:    true,
		},
	}, nil
}

// HasPermission reports whether the user holds resource/action.
func (u User) HasPermission(resource, action string) bool {
	return slices.ContainsFunc(u.Permissions, func(p Permission) bool {
		return p.Resource == resource && p.Action == action
	})
}

// MentionHandle returns the handle used for @mentions.
func (u User) MentionHandle() string {
	if h := strings.TrimSpace(u.Handle); h != "" {
		return strings.ToLower(h)
	}
	return defaultHandle(u.Name)
}

// SetPresence flips the online flag and stamps lastSeen.
func (m *TeamMember) SetPresence(online bool, now time.Time) {
	ts := now.UTC()
	m.IsOnline = online
	m.LastSeen = &ts
}

// defaultHandle derives a lowercase handle from a display name.
func defaultHandle(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}
