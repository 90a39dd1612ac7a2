// Package maintenance runs periodic cleanup jobs: expired refresh tokens and
// delivered notifications past their retention.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/statuspage/internal/config"
	"github.com/robfig/cron/v3"
)

// SessionPruner removes expired refresh tokens.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// QueuePruner removes sent notifications older than a cutoff.
type QueuePruner interface {
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler runs cleanup jobs on cron schedules.
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionPruner
	queue    QueuePruner
	config   config.MaintenanceConfig
	now      func() time.Time
	timeout  time.Duration
}

// NewScheduler registers the cleanup jobs. queue may be nil when
// notifications are disabled.
func NewScheduler(cfg config.MaintenanceConfig, sessions SessionPruner, queue QueuePruner) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		sessions: sessions,
		queue:    queue,
		config:   cfg,
		now:      time.Now,
		timeout:  time.Minute,
	}

	if sessions != nil {
		if _, err := s.cron.AddFunc(cfg.TokenCleanupSchedule, s.job("refresh_tokens", s.PruneSessions)); err != nil {
			return nil, fmt.Errorf("schedule token cleanup %q: %w", cfg.TokenCleanupSchedule, err)
		}
	}
	if queue != nil && cfg.NotificationRetention > 0 {
		if _, err := s.cron.AddFunc(cfg.QueueCleanupSchedule, s.job("notification_queue", s.PruneQueue)); err != nil {
			return nil, fmt.Errorf("schedule queue cleanup %q: %w", cfg.QueueCleanupSchedule, err)
		}
	}

	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	slog.Info("maintenance scheduler started", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("maintenance scheduler stopped")
}

// PruneSessions deletes expired refresh tokens.
func (s *Scheduler) PruneSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx)
}

// PruneQueue deletes notifications sent before the retention window.
func (s *Scheduler) PruneQueue(ctx context.Context) (int64, error) {
	return s.queue.DeleteSentBefore(ctx, s.now().Add(-s.config.NotificationRetention))
}

func (s *Scheduler) job(name string, run func(ctx context.Context) (int64, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		deleted, err := run(ctx)
		if err != nil {
			slog.Error("maintenance job failed", "job", name, "error", err)
			return
		}
		slog.Info("maintenance job finished",
			"job", name,
			"deleted", deleted,
			"duration", time.Since(start),
		)
	}
}
