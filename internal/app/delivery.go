package app

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hylla/mauflow/internal/clock"
	"github.com/hylla/mauflow/internal/domain"
)

// ConnectionStatus is the simulated delivery channel state.
type ConnectionStatus string

// Connection states.
const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// maxOfflineQueue bounds deliveries held while disconnected; the oldest are dropped first.
const maxOfflineQueue = 100

// DeliveryConfig holds timing for simulated delivery.
type DeliveryConfig struct {
	ConnectDelay       time.Duration
	SettleDelay        time.Duration
	SimulationInterval time.Duration
	JitterRatio        float64
}

// DefaultDeliveryConfig returns the default delivery timing.
func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		ConnectDelay:       time.Second,
		SettleDelay:        150 * time.Millisecond,
		SimulationInterval: 30 * time.Second,
		JitterRatio:        0.2,
	}
}

// DeliverySnapshot is what a subscriber sees: the connection state and its current notifications.
type DeliverySnapshot struct {
	Status        ConnectionStatus
	Notifications []domain.Notification
}

type deliverySubscriber struct {
	ctx    context.Context
	userID string
	fn     func(DeliverySnapshot)
}

type queuedDelivery struct {
	kind        domain.NotificationType
	recipientID string
}

// Delivery simulates a push channel: it owns the connection state machine, the offline
// queue, per-user subscribers, and the recurring simulation timer.
type Delivery struct {
	notifications *NotificationService
	dir           *Directory
	store         *Store
	clock         clock.Clock
	logger        *log.Logger
	cfg           DeliveryConfig
	sample        func() float64

	mu          sync.Mutex
	status      ConnectionStatus
	nextID      int
	subscribers map[int]deliverySubscriber
	queue       []queuedDelivery
	timers      map[int]clock.Timer
	connectID   int
	simTimerID  int
	simUserID   string
	simInterval time.Duration
	closed      bool

	unsubscribeBus func()
}

// NewDelivery constructs a disconnected delivery simulator listening on events.
func NewDelivery(notifications *NotificationService, dir *Directory, store *Store, events *Events, c clock.Clock, cfg DeliveryConfig, logger *log.Logger) *Delivery {
	defaults := DefaultDeliveryConfig()
	if cfg.ConnectDelay < 0 {
		cfg.ConnectDelay = 0
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaults.SettleDelay
	}
	if cfg.SimulationInterval <= 0 {
		cfg.SimulationInterval = defaults.SimulationInterval
	}
	d := &Delivery{
		notifications: notifications,
		dir:           dir,
		store:         store,
		clock:         c,
		logger:        loggerOrDiscard(logger),
		cfg:           cfg,
		sample:        rand.Float64,
		status:        StatusDisconnected,
		subscribers:   map[int]deliverySubscriber{},
		timers:        map[int]clock.Timer{},
	}
	d.unsubscribeBus = events.Notifications.Subscribe(d.onNotification)
	return d
}

// SetSampler replaces the random source used for jitter and simulated content.
func (d *Delivery) SetSampler(sample func() float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sample != nil {
		d.sample = sample
	}
}

// Status returns the current connection state.
func (d *Delivery) Status() ConnectionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Connect starts connecting; the channel reports connected after the connect delay and then
// flushes the offline queue. Connecting while connecting or connected is a no-op.
func (d *Delivery) Connect() {
	d.mu.Lock()
	if d.closed || d.status != StatusDisconnected {
		d.mu.Unlock()
		return
	}
	d.status = StatusConnecting
	d.connectID = d.scheduleLocked(d.cfg.ConnectDelay, d.finishConnect)
	d.mu.Unlock()
	d.logger.Debug("delivery connecting")
	d.broadcastStatus()
}

func (d *Delivery) finishConnect() {
	d.mu.Lock()
	if d.closed || d.status != StatusConnecting {
		d.mu.Unlock()
		return
	}
	d.status = StatusConnected
	d.connectID = 0
	queued := d.queue
	d.queue = nil
	d.mu.Unlock()

	d.logger.Info("delivery connected", "queued", len(queued))
	d.broadcastStatus()
	for _, q := range queued {
		d.deliver(context.Background(), q.kind, q.recipientID)
	}
}

// Disconnect drops the channel into offline mode; simulated deliveries queue until Connect.
func (d *Delivery) Disconnect() {
	d.mu.Lock()
	if d.closed || d.status == StatusDisconnected {
		d.mu.Unlock()
		return
	}
	d.stopTimerLocked(d.connectID)
	d.connectID = 0
	d.status = StatusDisconnected
	d.mu.Unlock()
	d.logger.Info("delivery disconnected")
	d.broadcastStatus()
}

// QueueLen returns the number of deliveries held while offline.
func (d *Delivery) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Subscribe registers fn for userID. fn receives the current snapshot immediately and a fresh
// one whenever the status changes or a notification for userID arrives. The subscription ends
// when ctx is done or the returned function is called, whichever comes first.
func (d *Delivery) Subscribe(ctx context.Context, userID string, fn func(DeliverySnapshot)) func() {
	if ctx.Err() != nil {
		return func() {}
	}
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subscribers[id] = deliverySubscriber{ctx: ctx, userID: userID, fn: fn}
	status := d.status
	d.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.subscribers, id)
		})
	}
	stopWatch := context.AfterFunc(ctx, unsubscribe)

	fn(DeliverySnapshot{Status: status, Notifications: d.fetch(ctx, userID)})

	return func() {
		stopWatch()
		unsubscribe()
	}
}

// SimulateRealTimeNotification creates a notification of kind for recipientID after delay and
// broadcasts it. While disconnected the delivery is queued instead.
func (d *Delivery) SimulateRealTimeNotification(kind domain.NotificationType, recipientID string, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.scheduleLocked(delay, func() {
		d.deliver(context.Background(), kind, recipientID)
	})
}

// deliver creates one simulated notification, or queues it while offline. The notification
// service publishes what it creates.
func (d *Delivery) deliver(ctx context.Context, kind domain.NotificationType, recipientID string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.status != StatusConnected {
		d.queue = append(d.queue, queuedDelivery{kind: kind, recipientID: recipientID})
		if over := len(d.queue) - maxOfflineQueue; over > 0 {
			d.queue = d.queue[over:]
		}
		d.mu.Unlock()
		d.logger.Debug("delivery offline, queued notification", "type", kind, "recipient_id", recipientID)
		return
	}
	sample := d.sample
	d.mu.Unlock()

	senderID, actorName := d.simulatedSender(ctx, recipientID, sample)
	_, _, err := d.notifications.Create(ctx, domain.NotificationInput{
		Type:          kind,
		RecipientID:   recipientID,
		SenderID:      senderID,
		ActorName:     actorName,
		ResourceType:  domain.ResourceTask,
		ResourceTitle: d.simulatedTitle(ctx, sample),
	})
	if err != nil {
		d.logger.Warn("simulated notification failed", "type", kind, "recipient_id", recipientID, "err", err)
	}
}

// onNotification refetches for every subscriber whose user received the notification,
// after the settle delay. Subscribers for other users ignore the event.
func (d *Delivery) onNotification(ev NotificationEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for id, sub := range d.subscribers {
		if sub.userID != ev.Notification.RecipientID {
			continue
		}
		subID := id
		d.scheduleLocked(d.cfg.SettleDelay, func() {
			d.refresh(subID)
		})
	}
}

// refresh sends a fresh snapshot to one subscriber, if it is still registered.
func (d *Delivery) refresh(subID int) {
	d.mu.Lock()
	sub, ok := d.subscribers[subID]
	status := d.status
	d.mu.Unlock()
	if !ok || sub.ctx.Err() != nil {
		return
	}
	sub.fn(DeliverySnapshot{Status: status, Notifications: d.fetch(sub.ctx, sub.userID)})
}

// broadcastStatus sends the current snapshot to every subscriber.
func (d *Delivery) broadcastStatus() {
	d.mu.Lock()
	subs := make([]deliverySubscriber, 0, len(d.subscribers))
	for _, sub := range d.subscribers {
		subs = append(subs, sub)
	}
	status := d.status
	d.mu.Unlock()
	for _, sub := range subs {
		if sub.ctx.Err() != nil {
			continue
		}
		sub.fn(DeliverySnapshot{Status: status, Notifications: d.fetch(sub.ctx, sub.userID)})
	}
}

func (d *Delivery) fetch(ctx context.Context, userID string) []domain.Notification {
	return d.notifications.ListForUser(ctx, userID, NotificationFilter{ApplyPreferences: true})
}

// StartSimulation delivers a random notification type to userID on a jittered interval.
// It reports false when a simulation is already running.
func (d *Delivery) StartSimulation(userID string, interval time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.simTimerID != 0 {
		return false
	}
	if interval <= 0 {
		interval = d.cfg.SimulationInterval
	}
	d.simUserID = userID
	d.simInterval = interval
	d.scheduleSimulationLocked()
	d.logger.Info("notification simulation started", "user_id", userID, "interval", interval)
	return true
}

// StopSimulation cancels the recurring simulation timer. Stopping twice is safe.
func (d *Delivery) StopSimulation() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.simTimerID == 0 {
		return
	}
	d.stopTimerLocked(d.simTimerID)
	d.simTimerID = 0
	d.logger.Info("notification simulation stopped", "user_id", d.simUserID)
}

// Simulating reports whether the recurring simulation is running.
func (d *Delivery) Simulating() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.simTimerID != 0
}

func (d *Delivery) scheduleSimulationLocked() {
	wait := jitteredInterval(d.simInterval, d.cfg.JitterRatio, d.sample())
	var id int
	id = d.scheduleLocked(wait, func() {
		d.mu.Lock()
		if d.closed || d.simTimerID != id {
			d.mu.Unlock()
			return
		}
		userID := d.simUserID
		kind := domain.NotificationTypes[sampleIndex(d.sample(), len(domain.NotificationTypes))]
		d.scheduleSimulationLocked()
		d.mu.Unlock()
		d.deliver(context.Background(), kind, userID)
	})
	d.simTimerID = id
}

// Close stops every timer and drops every subscriber. The delivery cannot be reused.
func (d *Delivery) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
	d.subscribers = map[int]deliverySubscriber{}
	d.queue = nil
	d.simTimerID = 0
	d.connectID = 0
	d.status = StatusDisconnected
	unsubscribe := d.unsubscribeBus
	d.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// PendingTimers returns the number of timers the delivery is still holding.
func (d *Delivery) PendingTimers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// scheduleLocked registers fn as a tracked timer and returns its id.
func (d *Delivery) scheduleLocked(delay time.Duration, fn func()) int {
	d.nextID++
	id := d.nextID
	d.timers[id] = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		_, live := d.timers[id]
		delete(d.timers, id)
		d.mu.Unlock()
		if live {
			fn()
		}
	})
	return id
}

func (d *Delivery) stopTimerLocked(id int) {
	if t, ok := d.timers[id]; ok {
		t.Stop()
		delete(d.timers, id)
	}
}

// simulatedSender picks a team member other than the recipient as the simulated actor.
func (d *Delivery) simulatedSender(ctx context.Context, recipientID string, sample func() float64) (string, string) {
	candidates := make([]domain.TeamMember, 0)
	for _, m := range d.dir.Members(ctx) {
		if m.ID != recipientID {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return "system", "Mauflow"
	}
	m := candidates[sampleIndex(sample(), len(candidates))]
	return m.ID, m.Name
}

// simulatedTitle picks a stored task title, or a placeholder when none exist.
func (d *Delivery) simulatedTitle(ctx context.Context, sample func() float64) string {
	tasks := d.store.Tasks(ctx)
	if len(tasks) == 0 {
		return "Sample task"
	}
	t := tasks[sampleIndex(sample(), len(tasks))]
	if t.Title == "" {
		return t.ID
	}
	return t.Title
}

// jitteredInterval spreads base uniformly over [base*(1-ratio), base*(1+ratio)].
func jitteredInterval(base time.Duration, ratio, sample float64) time.Duration {
	if base <= 0 {
		return 0
	}
	ratio = clampUnit(ratio)
	if ratio == 0 {
		return base
	}
	factor := 1 + ((clampUnit(sample)*2)-1)*ratio
	delay := time.Duration(float64(base) * factor)
	if delay < time.Millisecond {
		return time.Millisecond
	}
	return delay
}

// sampleIndex maps a [0,1) sample onto [0,n).
func sampleIndex(sample float64, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(clampUnit(sample) * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
