package tui

import (
	"context"
	"time"

	"github.com/hylla/mauflow/internal/app"
	"github.com/hylla/mauflow/internal/domain"
)

// Channel is the live delivery feed the inbox follows.
type Channel interface {
	Subscribe(ctx context.Context, userID string, fn func(app.DeliverySnapshot)) func()
	Status() app.ConnectionStatus
	Connect()
	Disconnect()
	StartSimulation(userID string, interval time.Duration) bool
	StopSimulation()
	Simulating() bool
}

// ThreadSource lists the comments shown under a task notification.
type ThreadSource interface {
	List(ctx context.Context, taskID string) []domain.TaskComment
}

// Option configures a Model.
type Option func(*Model)

// WithChannel follows live delivery snapshots and enables connect and simulate keys.
func WithChannel(ch Channel) Option {
	return func(m *Model) {
		m.channel = ch
	}
}

// WithThreads shows task comment threads in the detail view.
func WithThreads(src ThreadSource) Option {
	return func(m *Model) {
		m.threads = src
	}
}

// WithNames resolves user ids to display names.
func WithNames(fn func(string) string) Option {
	return func(m *Model) {
		if fn != nil {
			m.displayName = fn
		}
	}
}

// WithSimulationInterval sets the base interval used by the simulate key.
func WithSimulationInterval(d time.Duration) Option {
	return func(m *Model) {
		m.simInterval = d
	}
}

// WithClock replaces the time source used for relative timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}
