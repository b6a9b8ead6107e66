package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hylla/mauflow/internal/clock"
	"github.com/hylla/mauflow/internal/domain"
)

// DefaultRetentionDays is the age after which notifications are archived or cleared.
const DefaultRetentionDays = 30

// NotificationFilter narrows ListForUser results.
type NotificationFilter struct {
	UnreadOnly       bool
	Types            []domain.NotificationType
	Query            string
	IncludeArchived  bool
	ApplyPreferences bool
	Limit            int
}

// NotificationService owns notification creation, read state, archival, and preference filtering.
// Unknown ids are a no-op on every mutating operation; only storage failures return errors.
type NotificationService struct {
	store  *Store
	dir    *Directory
	events *Events
	idGen  IDGenerator
	clock  clock.Clock
	logger *log.Logger
}

// NewNotificationService constructs a notification service. Every created notification is
// published on events, when events is non-nil.
func NewNotificationService(store *Store, dir *Directory, events *Events, idGen IDGenerator, c clock.Clock, logger *log.Logger) *NotificationService {
	return &NotificationService{
		store:  store,
		dir:    dir,
		events: events,
		idGen:  idGen,
		clock:  c,
		logger: loggerOrDiscard(logger),
	}
}

// build renders one notification, or reports false when the recipient should not hear about it.
func (s *NotificationService) build(ctx context.Context, in domain.NotificationInput, now time.Time) (domain.Notification, bool, error) {
	if !domain.ShouldCreateNotification(in.RecipientID, in.SenderID) {
		return domain.Notification{}, false, nil
	}
	if strings.TrimSpace(in.ActorName) == "" {
		in.ActorName = s.dir.DisplayName(ctx, in.SenderID)
	}
	n, err := domain.NewNotification(s.idGen(), in, now)
	if err != nil {
		return domain.Notification{}, false, domain.ClassifyError(err)
	}
	return n, true, nil
}

// Create builds and persists one notification. It reports false without error when the
// recipient is the sender.
func (s *NotificationService) Create(ctx context.Context, in domain.NotificationInput) (domain.Notification, bool, error) {
	n, ok, err := s.build(ctx, in, s.clock.Now())
	if err != nil || !ok {
		return domain.Notification{}, false, err
	}
	err = s.store.UpdateNotifications(ctx, func(current []domain.Notification) ([]domain.Notification, error) {
		return append([]domain.Notification{n}, current...), nil
	})
	if err != nil {
		return domain.Notification{}, false, err
	}
	s.logger.Debug("notification created", "id", n.ID, "type", n.Type, "recipient_id", n.RecipientID)
	s.publish(n)
	return n, true, nil
}

// CreateBatch builds every input and persists the created notifications in one write.
func (s *NotificationService) CreateBatch(ctx context.Context, ins []domain.NotificationInput) ([]domain.Notification, error) {
	now := s.clock.Now()
	created := make([]domain.Notification, 0, len(ins))
	for _, in := range ins {
		n, ok, err := s.build(ctx, in, now)
		if err != nil {
			return nil, err
		}
		if ok {
			created = append(created, n)
		}
	}
	if len(created) == 0 {
		return created, nil
	}
	err := s.store.UpdateNotifications(ctx, func(current []domain.Notification) ([]domain.Notification, error) {
		out := make([]domain.Notification, 0, len(created)+len(current))
		out = append(out, created...)
		return append(out, current...), nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(created...)
	return created, nil
}

// publish broadcasts persisted notifications to live subscribers.
func (s *NotificationService) publish(list ...domain.Notification) {
	if s.events == nil {
		return
	}
	now := s.clock.Now()
	for _, n := range list {
		s.events.Notifications.Publish(NotificationEvent{Notification: n, Timestamp: now})
	}
}

// FanOut creates one notification per distinct recipient from a single trigger.
func (s *NotificationService) FanOut(ctx context.Context, in domain.NotificationInput, recipients []string) ([]domain.Notification, error) {
	seen := map[string]struct{}{}
	ins := make([]domain.NotificationInput, 0, len(recipients))
	for _, raw := range recipients {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		next := in
		next.RecipientID = id
		ins = append(ins, next)
	}
	return s.CreateBatch(ctx, ins)
}

// Stored returns every stored notification, unfiltered.
func (s *NotificationService) Stored(ctx context.Context) []domain.Notification {
	return s.store.Notifications(ctx)
}

// Save replaces every stored notification.
func (s *NotificationService) Save(ctx context.Context, in []domain.Notification) error {
	return s.store.SaveNotifications(ctx, in)
}

// Get returns one notification.
func (s *NotificationService) Get(ctx context.Context, id string) (domain.Notification, bool) {
	for _, n := range s.store.Notifications(ctx) {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Notification{}, false
}

// ListForUser returns a recipient's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, filter NotificationFilter) []domain.Notification {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]domain.Notification, 0)
	for _, n := range s.store.Notifications(ctx) {
		if n.RecipientID != userID {
			continue
		}
		if n.IsArchived && !filter.IncludeArchived {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, n.Type) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(n.Title), query) && !strings.Contains(strings.ToLower(n.Message), query) {
			continue
		}
		out = append(out, n)
	}
	sortNewestFirst(out)
	if filter.ApplyPreferences {
		out = s.FilterByPreferences(ctx, out, userID)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// ListArchived returns a recipient's archived notifications, newest first.
func (s *NotificationService) ListArchived(ctx context.Context, userID string) []domain.Notification {
	out := make([]domain.Notification, 0)
	for _, n := range s.store.Notifications(ctx) {
		if n.RecipientID == userID && n.IsArchived {
			out = append(out, n)
		}
	}
	sortNewestFirst(out)
	return out
}

// MarkAsRead marks one notification read. Repeated calls leave the first readAt in place.
func (s *NotificationService) MarkAsRead(ctx context.Context, id string) error {
	now := s.clock.Now()
	return s.mutate(ctx, func(n *domain.Notification) bool {
		return n.ID == id && n.MarkRead(now)
	})
}

// MarkAsUnread marks one notification unread.
func (s *NotificationService) MarkAsUnread(ctx context.Context, id string) error {
	return s.mutate(ctx, func(n *domain.Notification) bool {
		return n.ID == id && n.MarkUnread()
	})
}

// BulkMarkAsRead marks every listed notification read in one write and returns how many changed.
func (s *NotificationService) BulkMarkAsRead(ctx context.Context, ids []string) (int, error) {
	want := idSet(ids)
	now := s.clock.Now()
	changed := 0
	err := s.mutate(ctx, func(n *domain.Notification) bool {
		if _, ok := want[n.ID]; !ok {
			return false
		}
		if n.MarkRead(now) {
			changed++
			return true
		}
		return false
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// MarkAllAsRead marks every unread notification of userID read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (int, error) {
	now := s.clock.Now()
	changed := 0
	err := s.mutate(ctx, func(n *domain.Notification) bool {
		if n.RecipientID != userID || n.IsArchived {
			return false
		}
		if n.MarkRead(now) {
			changed++
			return true
		}
		return false
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// Archive soft-removes one notification.
func (s *NotificationService) Archive(ctx context.Context, id string) error {
	now := s.clock.Now()
	return s.mutate(ctx, func(n *domain.Notification) bool {
		return n.ID == id && n.Archive(now)
	})
}

// Unarchive restores one archived notification.
func (s *NotificationService) Unarchive(ctx context.Context, id string) error {
	return s.mutate(ctx, func(n *domain.Notification) bool {
		return n.ID == id && n.Unarchive()
	})
}

// ArchiveOldNotifications archives notifications older than days (default 30).
func (s *NotificationService) ArchiveOldNotifications(ctx context.Context, days int) (int, error) {
	now := s.clock.Now()
	cutoff := retentionCutoff(now, days)
	changed := 0
	err := s.mutate(ctx, func(n *domain.Notification) bool {
		if !n.CreatedAt.Before(cutoff) {
			return false
		}
		if n.Archive(now) {
			changed++
			return true
		}
		return false
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.logger.Info("archived old notifications", "count", changed, "cutoff", cutoff)
	}
	return changed, nil
}

// Delete removes one notification.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	_, err := s.BulkDeleteNotifications(ctx, []string{id})
	return err
}

// BulkDeleteNotifications removes every listed notification in one write.
func (s *NotificationService) BulkDeleteNotifications(ctx context.Context, ids []string) (int, error) {
	want := idSet(ids)
	return s.remove(ctx, func(n domain.Notification) bool {
		_, ok := want[n.ID]
		return ok
	})
}

// ClearOldNotifications hard-deletes notifications older than days (default 30).
func (s *NotificationService) ClearOldNotifications(ctx context.Context, days int) (int, error) {
	cutoff := retentionCutoff(s.clock.Now(), days)
	removed, err := s.remove(ctx, func(n domain.Notification) bool {
		return n.CreatedAt.Before(cutoff)
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("cleared old notifications", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// FilterByPreferences drops disabled types and, inside quiet hours, everything that is
// neither urgent nor a delegation revocation.
func (s *NotificationService) FilterByPreferences(ctx context.Context, in []domain.Notification, userID string) []domain.Notification {
	prefs := s.store.Preferences(ctx, userID)
	return filterByPreferences(in, prefs, s.clock.Now())
}

// filterByPreferences is the pure form of FilterByPreferences.
func filterByPreferences(in []domain.Notification, prefs domain.NotificationPreferences, now time.Time) []domain.Notification {
	quiet := prefs.QuietHours.InQuietHours(now)
	out := make([]domain.Notification, 0, len(in))
	for _, n := range in {
		if !prefs.Allows(n.Type) {
			continue
		}
		if quiet && !n.BypassesQuietHours() {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Stats aggregates read state over a recipient's non-archived notifications.
func (s *NotificationService) Stats(ctx context.Context, userID string) domain.NotificationStats {
	return domain.BuildNotificationStats(s.ListForUser(ctx, userID, NotificationFilter{}))
}

// Preferences returns a user's preferences with defaults applied.
func (s *NotificationService) Preferences(ctx context.Context, userID string) domain.NotificationPreferences {
	return s.store.Preferences(ctx, userID)
}

// UpdatePreferences validates and stores a user's preferences.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, prefs domain.NotificationPreferences) error {
	if err := prefs.Validate(); err != nil {
		return domain.ClassifyError(err)
	}
	return s.store.SavePreferences(ctx, userID, prefs)
}

// mutate applies fn to every stored notification and writes once if anything changed.
func (s *NotificationService) mutate(ctx context.Context, fn func(*domain.Notification) bool) error {
	return s.store.UpdateNotifications(ctx, func(current []domain.Notification) ([]domain.Notification, error) {
		changed := false
		for i := range current {
			if fn(&current[i]) {
				changed = true
			}
		}
		if !changed {
			return nil, errSkipWrite
		}
		return current, nil
	})
}

// remove deletes every stored notification matching drop in one write.
func (s *NotificationService) remove(ctx context.Context, drop func(domain.Notification) bool) (int, error) {
	removed := 0
	err := s.store.UpdateNotifications(ctx, func(current []domain.Notification) ([]domain.Notification, error) {
		out := make([]domain.Notification, 0, len(current))
		for _, n := range current {
			if drop(n) {
				removed++
				continue
			}
			out = append(out, n)
		}
		if removed == 0 {
			return nil, errSkipWrite
		}
		return out, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// retentionCutoff returns now minus days, defaulting to DefaultRetentionDays.
func retentionCutoff(now time.Time, days int) time.Time {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return now.AddDate(0, 0, -days)
}

// sortNewestFirst orders notifications by creation time, newest first, ties by id.
func sortNewestFirst(in []domain.Notification) {
	slices.SortStableFunc(in, func(a, b domain.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// idSet trims ids into a lookup set.
func idSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		if id := strings.TrimSpace(raw); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}
