package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/hylla/mauflow/internal/domain"
)

// errSkipWrite lets an update callback report that nothing changed.
var errSkipWrite = errors.New("skip write")

// Store is the namespaced, typed view over the durable key-value port.
// A nil port behaves like an environment without durable storage: reads
// return defaults and writes are dropped.
type Store struct {
	kv     KeyValueStore
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore constructs a store over kv.
func NewStore(kv KeyValueStore, logger *log.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: loggerOrDiscard(logger),
		locks:  map[string]*sync.Mutex{},
	}
}

// Available reports whether durable storage is attached.
func (s *Store) Available() bool {
	return s != nil && s.kv != nil
}

// lockFor returns the mutex serializing read-merge-write cycles on key.
func (s *Store) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// read returns the raw value for key. Only backend failures are errors.
func (s *Store) read(ctx context.Context, key string) ([]byte, bool, error) {
	if !s.Available() {
		return nil, false, nil
	}
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, false, domain.NewCollaborationError(domain.KindStorage, fmt.Sprintf("read %s", key), err)
	}
	return raw, ok, nil
}

// write stores raw under key.
func (s *Store) write(ctx context.Context, key string, raw []byte) error {
	if !s.Available() {
		s.logger.Debug("durable storage unavailable, dropping write", "key", key)
		return nil
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return domain.NewCollaborationError(domain.KindStorage, fmt.Sprintf("write %s", key), err)
	}
	return nil
}

// GetJSON decodes key into dst and reports whether a valid value was found.
// Missing keys, corrupt JSON, and backend failures all report false.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.read(ctx, key)
	if err != nil {
		s.logger.Warn("storage read failed, using default", "key", key, "err", err)
		return false
	}
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("corrupt stored value, using default", "key", key, "err", err)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return domain.NewCollaborationError(domain.KindStorage, fmt.Sprintf("encode %s", key), err)
	}
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()
	return s.write(ctx, key, raw)
}

// MergeJSON overlays patch onto the JSON object stored under key.
// A missing or corrupt value is treated as an empty object.
func (s *Store) MergeJSON(ctx context.Context, key string, patch map[string]any) error {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	current := map[string]any{}
	raw, ok, err := s.read(ctx, key)
	if err != nil {
		return err
	}
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &current); err != nil {
			s.logger.Warn("corrupt stored object, replacing", "key", key, "err", err)
			current = map[string]any{}
		}
	}
	for k, v := range patch {
		current[k] = v
	}
	encoded, err := json.Marshal(current)
	if err != nil {
		return domain.NewCollaborationError(domain.KindStorage, fmt.Sprintf("encode %s", key), err)
	}
	return s.write(ctx, key, encoded)
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if !s.Available() {
		return nil
	}
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()
	if err := s.kv.Delete(ctx, key); err != nil {
		return domain.NewCollaborationError(domain.KindStorage, fmt.Sprintf("delete %s", key), err)
	}
	return nil
}

// loadCollection returns the list stored under key, or an empty list.
func loadCollection[T any](ctx context.Context, s *Store, key string) []T {
	var out []T
	if !s.GetJSON(ctx, key, &out) || out == nil {
		return []T{}
	}
	return out
}

// saveCollection replaces the list stored under key.
func saveCollection[T any](ctx context.Context, s *Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	return s.SetJSON(ctx, key, items)
}

// updateCollection runs a read-merge-write cycle against the current stored list.
// The key stays locked for the whole cycle so concurrent updates never act on a stale copy.
func updateCollection[T any](ctx context.Context, s *Store, key string, fn func([]T) ([]T, error)) error {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	current := []T{}
	raw, ok, err := s.read(ctx, key)
	if err != nil {
		return err
	}
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &current); err != nil {
			s.logger.Warn("corrupt stored collection, starting empty", "key", key, "err", err)
			current = []T{}
		}
	}
	next, err := fn(current)
	if errors.Is(err, errSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	if next == nil {
		next = []T{}
	}
	encoded, err := json.Marshal(next)
	if err != nil {
		return domain.NewCollaborationError(domain.KindStorage, fmt.Sprintf("encode %s", key), err)
	}
	return s.write(ctx, key, encoded)
}

// Delegations returns every stored delegation.
func (s *Store) Delegations(ctx context.Context) []domain.TaskDelegation {
	return loadCollection[domain.TaskDelegation](ctx, s, KeyDelegations)
}

// SaveDelegations replaces the stored delegations.
func (s *Store) SaveDelegations(ctx context.Context, in []domain.TaskDelegation) error {
	return saveCollection(ctx, s, KeyDelegations, in)
}

// UpdateDelegations runs fn against the current stored delegations.
func (s *Store) UpdateDelegations(ctx context.Context, fn func([]domain.TaskDelegation) ([]domain.TaskDelegation, error)) error {
	return updateCollection(ctx, s, KeyDelegations, fn)
}

// Notifications returns every stored notification.
func (s *Store) Notifications(ctx context.Context) []domain.Notification {
	return loadCollection[domain.Notification](ctx, s, KeyNotifications)
}

// SaveNotifications replaces the stored notifications.
func (s *Store) SaveNotifications(ctx context.Context, in []domain.Notification) error {
	return saveCollection(ctx, s, KeyNotifications, in)
}

// UpdateNotifications runs fn against the current stored notifications.
func (s *Store) UpdateNotifications(ctx context.Context, fn func([]domain.Notification) ([]domain.Notification, error)) error {
	return updateCollection(ctx, s, KeyNotifications, fn)
}

// TeamMembers returns every stored team member.
func (s *Store) TeamMembers(ctx context.Context) []domain.TeamMember {
	return loadCollection[domain.TeamMember](ctx, s, KeyTeamMembers)
}

// SaveTeamMembers replaces the stored team members.
func (s *Store) SaveTeamMembers(ctx context.Context, in []domain.TeamMember) error {
	return saveCollection(ctx, s, KeyTeamMembers, in)
}

// UpdateTeamMembers runs fn against the current stored team members.
func (s *Store) UpdateTeamMembers(ctx context.Context, fn func([]domain.TeamMember) ([]domain.TeamMember, error)) error {
	return updateCollection(ctx, s, KeyTeamMembers, fn)
}

// Comments returns every stored comment.
func (s *Store) Comments(ctx context.Context) []domain.TaskComment {
	return loadCollection[domain.TaskComment](ctx, s, KeyComments)
}

// UpdateComments runs fn against the current stored comments.
func (s *Store) UpdateComments(ctx context.Context, fn func([]domain.TaskComment) ([]domain.TaskComment, error)) error {
	return updateCollection(ctx, s, KeyComments, fn)
}

// Attachments returns every stored attachment.
func (s *Store) Attachments(ctx context.Context) []domain.TaskAttachment {
	return loadCollection[domain.TaskAttachment](ctx, s, KeyTaskAttachments)
}

// UpdateAttachments runs fn against the current stored attachments.
func (s *Store) UpdateAttachments(ctx context.Context, fn func([]domain.TaskAttachment) ([]domain.TaskAttachment, error)) error {
	return updateCollection(ctx, s, KeyTaskAttachments, fn)
}

// Tasks returns the task references kept by the UI collaborator.
func (s *Store) Tasks(ctx context.Context) []TaskRef {
	return loadCollection[TaskRef](ctx, s, KeyEnhancedTasks)
}

// Preferences loads a user's preferences with defaults merged over any partial stored value.
func (s *Store) Preferences(ctx context.Context, userID string) domain.NotificationPreferences {
	raw, ok, err := s.read(ctx, PreferencesKey(userID))
	if err != nil {
		s.logger.Warn("preferences read failed, using defaults", "user_id", userID, "err", err)
		return domain.DefaultNotificationPreferences()
	}
	if !ok {
		return domain.DefaultNotificationPreferences()
	}
	return domain.MergeNotificationPreferences(raw)
}

// SavePreferences stores a user's preferences.
func (s *Store) SavePreferences(ctx context.Context, userID string, prefs domain.NotificationPreferences) error {
	return s.SetJSON(ctx, PreferencesKey(userID), prefs)
}

// CurrentUserID returns the stored session user id.
func (s *Store) CurrentUserID(ctx context.Context) string {
	var id string
	if !s.GetJSON(ctx, KeyCurrentUser, &id) {
		return ""
	}
	return id
}

// SetCurrentUserID stores the session user id.
func (s *Store) SetCurrentUserID(ctx context.Context, id string) error {
	return s.SetJSON(ctx, KeyCurrentUser, id)
}

// DataVersion returns the stored data format version, or 0.
func (s *Store) DataVersion(ctx context.Context) int {
	var v int
	if !s.GetJSON(ctx, KeyDataVersion, &v) {
		return 0
	}
	return v
}

// SetDataVersion stores the data format version.
func (s *Store) SetDataVersion(ctx context.Context, v int) error {
	return s.SetJSON(ctx, KeyDataVersion, v)
}
