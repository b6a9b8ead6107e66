package app

import (
	"slices"
	"sync"
	"time"

	"github.com/hylla/mauflow/internal/domain"
)

// Bus is an in-process broadcast channel: every subscriber sees every published event.
type Bus[T any] struct {
	mu       sync.Mutex
	nextID   int
	handlers []busHandler[T]
}

type busHandler[T any] struct {
	id int
	fn func(T)
}

// NewBus constructs an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers fn and returns a function that removes it. Unsubscribing twice is safe.
func (b *Bus[T]) Subscribe(fn func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, busHandler[T]{id: id, fn: fn})
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.handlers = slices.DeleteFunc(b.handlers, func(h busHandler[T]) bool { return h.id == id })
		})
	}
}

// Publish delivers ev to every current subscriber, outside the lock.
func (b *Bus[T]) Publish(ev T) {
	b.mu.Lock()
	handlers := slices.Clone(b.handlers)
	b.mu.Unlock()
	for _, h := range handlers {
		h.fn(ev)
	}
}

// Len returns the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// NotificationEvent is broadcast after a notification is persisted.
type NotificationEvent struct {
	Notification domain.Notification `json:"notification"`
	Timestamp    time.Time           `json:"timestamp"`
}

// DelegationEventKind names a delegation state transition.
type DelegationEventKind string

// Delegation event kinds.
const (
	DelegationEventDelegated DelegationEventKind = "delegated"
	DelegationEventCompleted DelegationEventKind = "completed"
	DelegationEventRevoked   DelegationEventKind = "revoked"
)

// DelegationEvent is broadcast after a delegation transition is persisted.
type DelegationEvent struct {
	Kind       DelegationEventKind   `json:"kind"`
	Delegation domain.TaskDelegation `json:"delegation"`
	ActorID    string                `json:"actorId"`
	Timestamp  time.Time             `json:"timestamp"`
}

// Events groups the buses the engine publishes on.
type Events struct {
	Notifications *Bus[NotificationEvent]
	Delegations   *Bus[DelegationEvent]
}

// NewEvents constructs empty buses.
func NewEvents() *Events {
	return &Events{
		Notifications: NewBus[NotificationEvent](),
		Delegations:   NewBus[DelegationEvent](),
	}
}
