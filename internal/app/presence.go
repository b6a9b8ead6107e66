package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hylla/mauflow/internal/clock"
	"github.com/hylla/mauflow/internal/domain"
)

// DefaultPresenceInterval is how often simulated presence toggles a member.
const DefaultPresenceInterval = 30 * time.Second

// PresenceSimulator flips a random team member's online flag on an interval.
type PresenceSimulator struct {
	dir      *Directory
	store    *Store
	clock    clock.Clock
	logger   *log.Logger
	interval time.Duration
	sample   func() float64

	mu    sync.Mutex
	timer clock.Timer
}

// NewPresenceSimulator constructs a stopped presence simulator.
func NewPresenceSimulator(dir *Directory, store *Store, c clock.Clock, interval time.Duration, logger *log.Logger) *PresenceSimulator {
	if interval <= 0 {
		interval = DefaultPresenceInterval
	}
	return &PresenceSimulator{
		dir:      dir,
		store:    store,
		clock:    c,
		logger:   loggerOrDiscard(logger),
		interval: interval,
		sample:   rand.Float64,
	}
}

// SetSampler replaces the random source used to pick members.
func (p *PresenceSimulator) SetSampler(sample func() float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sample != nil {
		p.sample = sample
	}
}

// Start schedules the recurring toggle. Starting twice is a no-op.
func (p *PresenceSimulator) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		return
	}
	p.scheduleLocked()
}

// Stop cancels the recurring toggle.
func (p *PresenceSimulator) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer == nil {
		return
	}
	p.timer.Stop()
	p.timer = nil
}

// Running reports whether the toggle is scheduled.
func (p *PresenceSimulator) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

func (p *PresenceSimulator) scheduleLocked() {
	var t clock.Timer
	t = p.clock.AfterFunc(p.interval, func() {
		p.mu.Lock()
		if p.timer != t {
			p.mu.Unlock()
			return
		}
		sample := p.sample()
		p.scheduleLocked()
		p.mu.Unlock()
		if err := p.Toggle(context.Background(), sample); err != nil {
			p.logger.Warn("presence toggle failed", "err", err)
		}
	})
	p.timer = t
}

// Toggle flips the member picked by sample and stamps lastSeen.
func (p *PresenceSimulator) Toggle(ctx context.Context, sample float64) error {
	now := p.clock.Now()
	return p.store.UpdateTeamMembers(ctx, func(current []domain.TeamMember) ([]domain.TeamMember, error) {
		if len(current) == 0 {
			return nil, errSkipWrite
		}
		m := &current[sampleIndex(sample, len(current))]
		m.SetPresence(!m.IsOnline, now)
		p.logger.Debug("presence toggled", "user_id", m.ID, "online", m.IsOnline)
		return current, nil
	})
}

// SetOnline records an explicit presence change for userID.
func (p *PresenceSimulator) SetOnline(ctx context.Context, userID string, online bool) error {
	now := p.clock.Now()
	return p.store.UpdateTeamMembers(ctx, func(current []domain.TeamMember) ([]domain.TeamMember, error) {
		for i := range current {
			if current[i].ID == userID {
				current[i].SetPresence(online, now)
				return current, nil
			}
		}
		return nil, domain.NewCollaborationError(domain.KindUserNotFound, fmt.Sprintf("team member %q not found", userID), domain.ErrUserNotFound)
	})
}

// Online returns the members currently online.
func (p *PresenceSimulator) Online(ctx context.Context) []domain.TeamMember {
	out := make([]domain.TeamMember, 0)
	for _, m := range p.dir.Members(ctx) {
		if m.IsOnline {
			out = append(out, m)
		}
	}
	return out
}
