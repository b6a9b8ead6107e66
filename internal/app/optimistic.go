package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hylla/mauflow/internal/clock"
	"github.com/hylla/mauflow/internal/domain"
)

// OperationType names the kind of mutation a pending operation retries.
type OperationType string

// Operation types.
const (
	OperationAdd    OperationType = "add"
	OperationEdit   OperationType = "edit"
	OperationDelete OperationType = "delete"
)

// PendingOperation is an in-memory record of a failed write awaiting retry.
type PendingOperation struct {
	ID        string
	Type      OperationType
	TargetIDs []string
	Payload   any
	Timestamp time.Time
	Attempts  int
}

// Mutation is one optimistic change: Apply is the pure in-memory transition and Persist
// performs the durable write against the current stored collection.
type Mutation[S any] struct {
	Type      OperationType
	TargetIDs []string
	Payload   any
	Apply     func(S) S
	Persist   func(context.Context) error
}

// MutationOutcome reports how a mutation reached durable storage.
type MutationOutcome struct {
	// Optimistic is true when the first write succeeded and the in-memory change was kept.
	Optimistic bool
	// Attempts counts every durable write attempt, the first one included.
	Attempts int
}

// OptimisticState is the in-memory mirror a coordinator mutates.
type OptimisticState[S any] struct {
	// op serializes the apply/persist/rollback window so rollbacks never clobber another mutation.
	op sync.Mutex
	mu sync.RWMutex
	v  S
}

// NewOptimisticState returns state holding initial.
func NewOptimisticState[S any](initial S) *OptimisticState[S] {
	return &OptimisticState[S]{v: initial}
}

// Get returns the current value.
func (s *OptimisticState[S]) Get() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

// Set replaces the current value.
func (s *OptimisticState[S]) Set(v S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
}

// CoordinatorConfig holds retry and cleanup timing.
type CoordinatorConfig struct {
	MaxRetries    int
	RetryDelay    time.Duration
	PendingTTL    time.Duration
	SweepInterval time.Duration
}

// DefaultCoordinatorConfig returns the default retry and cleanup timing.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxRetries:    3,
		RetryDelay:    time.Second,
		PendingTTL:    60 * time.Second,
		SweepInterval: 30 * time.Second,
	}
}

// Coordinator applies mutations optimistically, rolls back failed writes, and retries them
// commit-first with linearly increasing delay.
type Coordinator struct {
	cfg    CoordinatorConfig
	clock  clock.Clock
	wait   Waiter
	idGen  IDGenerator
	logger *log.Logger

	mu      sync.Mutex
	pending map[string]PendingOperation
	sweep   clock.Timer
}

// NewCoordinator constructs a coordinator. Zero config fields take defaults.
func NewCoordinator(cfg CoordinatorConfig, c clock.Clock, idGen IDGenerator, logger *log.Logger) *Coordinator {
	defaults := DefaultCoordinatorConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaults.PendingTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	return &Coordinator{
		cfg:     cfg,
		clock:   c,
		wait:    clockWaiter(c),
		idGen:   idGen,
		logger:  loggerOrDiscard(logger),
		pending: map[string]PendingOperation{},
	}
}

// SetWaiter replaces how the coordinator waits between retries.
func (c *Coordinator) SetWaiter(w Waiter) {
	if w != nil {
		c.wait = w
	}
}

// RetryDelay returns the wait before retry number attempt (0-based).
func (c *Coordinator) RetryDelay(attempt int) time.Duration {
	return c.cfg.RetryDelay * time.Duration(attempt+1)
}

// Pending returns the tracked pending operations, oldest first.
func (c *Coordinator) Pending() []PendingOperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingOperation, 0, len(c.pending))
	for _, op := range c.pending {
		out = append(out, op)
	}
	slices.SortFunc(out, func(a, b PendingOperation) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}

func (c *Coordinator) track(op PendingOperation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[op.ID] = op
}

func (c *Coordinator) bump(id string, attempts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if op, ok := c.pending[id]; ok {
		op.Attempts = attempts
		c.pending[id] = op
	}
}

func (c *Coordinator) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Start begins the recurring sweep of stale pending operations. Starting twice is a no-op.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sweep != nil {
		return
	}
	c.scheduleSweepLocked()
}

// Stop cancels the sweep.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sweep == nil {
		return
	}
	c.sweep.Stop()
	c.sweep = nil
}

func (c *Coordinator) scheduleSweepLocked() {
	var t clock.Timer
	t = c.clock.AfterFunc(c.cfg.SweepInterval, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.sweep != t {
			return
		}
		c.sweepLocked(c.clock.Now())
		c.scheduleSweepLocked()
	})
	c.sweep = t
}

// SweepPending drops pending operations older than the TTL and returns how many it removed.
func (c *Coordinator) SweepPending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.clock.Now())
}

func (c *Coordinator) sweepLocked(now time.Time) int {
	cutoff := now.Add(-c.cfg.PendingTTL)
	removed := 0
	for id, op := range c.pending {
		if op.Timestamp.Before(cutoff) {
			delete(c.pending, id)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("pruned stale pending operations", "count", removed)
	}
	return removed
}

// RunMutation applies m to state optimistically and persists it. When the first write fails
// the state is rolled back, a pending operation is recorded, and the write is retried up to
// MaxRetries times; a retried write touches state only after it succeeds.
func RunMutation[S any](ctx context.Context, c *Coordinator, state *OptimisticState[S], m Mutation[S]) (MutationOutcome, error) {
	state.op.Lock()
	snapshot := state.Get()
	state.Set(m.Apply(snapshot))
	err := m.Persist(ctx)
	if err == nil {
		state.op.Unlock()
		return MutationOutcome{Optimistic: true, Attempts: 1}, nil
	}
	state.Set(snapshot)
	state.op.Unlock()

	op := PendingOperation{
		ID:        c.idGen(),
		Type:      m.Type,
		TargetIDs: slices.Clone(m.TargetIDs),
		Payload:   m.Payload,
		Timestamp: c.clock.Now(),
		Attempts:  1,
	}
	c.track(op)
	c.logger.Warn("optimistic write failed, rolled back", "type", m.Type, "targets", m.TargetIDs, "err", err)

	attempts := 1
	for retry := 0; retry < c.cfg.MaxRetries; retry++ {
		if waitErr := c.wait(ctx, c.RetryDelay(retry)); waitErr != nil {
			return MutationOutcome{Attempts: attempts}, domain.ClassifyError(waitErr)
		}
		attempts++
		c.bump(op.ID, attempts)

		state.op.Lock()
		err = m.Persist(ctx)
		if err == nil {
			state.Set(m.Apply(state.Get()))
			state.op.Unlock()
			c.forget(op.ID)
			c.logger.Info("pending operation committed", "type", m.Type, "attempts", attempts)
			return MutationOutcome{Attempts: attempts}, nil
		}
		state.op.Unlock()
		c.logger.Warn("pending operation retry failed", "type", m.Type, "attempt", attempts, "err", err)
	}

	last := domain.ClassifyError(err)
	return MutationOutcome{Attempts: attempts}, &domain.CollaborationError{
		Kind:        last.Kind,
		Code:        "retries_exhausted",
		Message:     fmt.Sprintf("%s failed after %d attempts", m.Type, attempts),
		UserMessage: last.UserMessage,
		Err:         err,
	}
}
