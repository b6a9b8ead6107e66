package app

import (
	"context"
	"strings"

	"github.com/hylla/mauflow/internal/domain"
)

// actorContextKey stores context keys for acting-user ids.
type actorContextKey struct{}

// WithActor attaches the acting user id to ctx.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.TrimSpace(userID))
}

// ActorFromContext returns the acting user id when present.
func ActorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorContextKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Directory resolves users and presence from the stored team member list.
type Directory struct {
	store *Store
}

// NewDirectory constructs a directory over store.
func NewDirectory(store *Store) *Directory {
	return &Directory{store: store}
}

// Members lists every team member.
func (d *Directory) Members(ctx context.Context) []domain.TeamMember {
	return d.store.TeamMembers(ctx)
}

// Lookup returns the member with id.
func (d *Directory) Lookup(ctx context.Context, id string) (domain.TeamMember, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.TeamMember{}, false
	}
	for _, m := range d.store.TeamMembers(ctx) {
		if m.ID == id {
			return m, true
		}
	}
	return domain.TeamMember{}, false
}

// DisplayName returns the member's name, or the id when unknown.
func (d *Directory) DisplayName(ctx context.Context, id string) string {
	if m, ok := d.Lookup(ctx, id); ok {
		return m.Name
	}
	if id == "" {
		return "Someone"
	}
	return id
}

// CurrentUser resolves the acting user from ctx, falling back to the stored session user.
func (d *Directory) CurrentUser(ctx context.Context) (domain.User, error) {
	id, ok := ActorFromContext(ctx)
	if !ok {
		id = d.store.CurrentUserID(ctx)
	}
	if id == "" {
		return domain.User{}, domain.NewCollaborationError(domain.KindUserNotFound, "no acting user", domain.ErrUserNotFound)
	}
	m, found := d.Lookup(ctx, id)
	if !found {
		return domain.User{}, domain.NewCollaborationError(domain.KindUserNotFound, "acting user "+id+" not found", domain.ErrUserNotFound)
	}
	return m.User, nil
}

// Upsert adds or replaces a team member.
func (d *Directory) Upsert(ctx context.Context, member domain.TeamMember) error {
	return d.store.UpdateTeamMembers(ctx, func(current []domain.TeamMember) ([]domain.TeamMember, error) {
		for i := range current {
			if current[i].ID == member.ID {
				current[i] = member
				return current, nil
			}
		}
		return append(current, member), nil
	})
}

// Remove deletes a team member; unknown ids are a no-op.
func (d *Directory) Remove(ctx context.Context, id string) error {
	return d.store.UpdateTeamMembers(ctx, func(current []domain.TeamMember) ([]domain.TeamMember, error) {
		out := current[:0]
		removed := false
		for _, m := range current {
			if m.ID == id {
				removed = true
				continue
			}
			out = append(out, m)
		}
		if !removed {
			return nil, errSkipWrite
		}
		return out, nil
	})
}
