package app

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hylla/mauflow/internal/clock"
)

// CleanupJob periodically archives aged notifications. It never deletes; hard deletion
// only happens through an explicit ClearOldNotifications call.
type CleanupJob struct {
	notifications *NotificationService
	clock         clock.Clock
	logger        *log.Logger
	interval      time.Duration
	days          int

	mu    sync.Mutex
	timer clock.Timer
}

// NewCleanupJob constructs a stopped cleanup job. A non-positive interval disables it.
func NewCleanupJob(notifications *NotificationService, c clock.Clock, interval time.Duration, days int, logger *log.Logger) *CleanupJob {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return &CleanupJob{
		notifications: notifications,
		clock:         c,
		logger:        loggerOrDiscard(logger),
		interval:      interval,
		days:          days,
	}
}

// Start schedules the job. Starting twice, or with the job disabled, is a no-op.
func (j *CleanupJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.interval <= 0 || j.timer != nil {
		return
	}
	j.scheduleLocked()
}

// Stop cancels the job.
func (j *CleanupJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.timer == nil {
		return
	}
	j.timer.Stop()
	j.timer = nil
}

func (j *CleanupJob) scheduleLocked() {
	var t clock.Timer
	t = j.clock.AfterFunc(j.interval, func() {
		j.mu.Lock()
		if j.timer != t {
			j.mu.Unlock()
			return
		}
		j.scheduleLocked()
		j.mu.Unlock()
		j.RunOnce(context.Background())
	})
	j.timer = t
}

// RunOnce archives notifications older than the retention window. Failures are logged.
func (j *CleanupJob) RunOnce(ctx context.Context) int {
	archived, err := j.notifications.ArchiveOldNotifications(ctx, j.days)
	if err != nil {
		j.logger.Warn("archive old notifications failed", "err", err)
		return 0
	}
	if archived > 0 {
		j.logger.Info("archived old notifications", "count", archived, "days", j.days)
	}
	return archived
}
