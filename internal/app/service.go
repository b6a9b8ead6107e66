package app

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/hylla/mauflow/internal/clock"
)

// CurrentDataVersion is the storage layout version written by this engine.
const CurrentDataVersion = 1

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// ServiceConfig holds configuration for the collaboration engine.
type ServiceConfig struct {
	Logger           *log.Logger
	Clock            clock.Clock
	IDGen            IDGenerator
	Backoff          BackoffPolicy
	Coordinator      CoordinatorConfig
	Delivery         DeliveryConfig
	PresenceInterval time.Duration
	RetentionDays    int
	// CleanupInterval schedules ArchiveOldNotifications; zero disables the job.
	CleanupInterval time.Duration
}

// Engine wires every collaboration service over one store.
type Engine struct {
	Store         *Store
	Directory     *Directory
	Events        *Events
	Notifications *NotificationService
	Delegations   *DelegationService
	Comments      *CommentService
	Attachments   *AttachmentService
	Delivery      *Delivery
	Presence      *PresenceSimulator
	Coordinator   *Coordinator
	Cleanup       *CleanupJob

	clock  clock.Clock
	logger *log.Logger
}

// NewEngine constructs an engine over kv. A nil kv runs without durable storage.
func NewEngine(kv KeyValueStore, cfg ServiceConfig) *Engine {
	logger := loggerOrDiscard(cfg.Logger)
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = uuid.NewString
	}
	backoff := cfg.Backoff
	if backoff.MaxAttempts == 0 {
		backoff = DefaultBackoffPolicy()
	}
	if cfg.Coordinator == (CoordinatorConfig{}) {
		cfg.Coordinator = DefaultCoordinatorConfig()
	}
	if cfg.Delivery == (DeliveryConfig{}) {
		cfg.Delivery = DefaultDeliveryConfig()
	}

	store := NewStore(kv, logger.WithPrefix("store"))
	dir := NewDirectory(store)
	events := NewEvents()
	retrier := NewRetrier(backoff, c)
	retrier.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("retrying storage write", "attempt", attempt, "delay", delay, "err", err)
	}
	notifications := NewNotificationService(store, dir, events, idGen, c, logger.WithPrefix("notifications"))
	coord := NewCoordinator(cfg.Coordinator, c, idGen, logger.WithPrefix("optimistic"))

	return &Engine{
		Store:         store,
		Directory:     dir,
		Events:        events,
		Notifications: notifications,
		Delegations:   NewDelegationService(store, dir, notifications, events, retrier, idGen, c, logger.WithPrefix("delegations")),
		Comments:      NewCommentService(store, dir, notifications, coord, idGen, c, logger.WithPrefix("comments")),
		Attachments:   NewAttachmentService(store, dir, coord, idGen, c, logger.WithPrefix("attachments")),
		Delivery:      NewDelivery(notifications, dir, store, events, c, cfg.Delivery, logger.WithPrefix("delivery")),
		Presence:      NewPresenceSimulator(dir, store, c, cfg.PresenceInterval, logger.WithPrefix("presence")),
		Coordinator:   coord,
		Cleanup:       NewCleanupJob(notifications, c, cfg.CleanupInterval, cfg.RetentionDays, logger.WithPrefix("cleanup")),
		clock:         c,
		logger:        logger,
	}
}

// Open loads the in-memory mirrors, stamps the data version, and starts background sweeps.
func (e *Engine) Open(ctx context.Context) error {
	if v := e.Store.DataVersion(ctx); v < CurrentDataVersion {
		if err := e.Store.SetDataVersion(ctx, CurrentDataVersion); err != nil {
			return err
		}
		e.logger.Info("storage layout stamped", "from", v, "to", CurrentDataVersion)
	}
	e.Comments.Reload(ctx)
	e.Attachments.Reload(ctx)
	e.Coordinator.Start()
	e.Cleanup.Start()
	return nil
}

// Close stops every timer the engine owns.
func (e *Engine) Close() {
	e.Delivery.Close()
	e.Presence.Stop()
	e.Coordinator.Stop()
	e.Cleanup.Stop()
}
