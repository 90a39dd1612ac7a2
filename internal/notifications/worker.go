package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/bissquit/statuspage/internal/pkg/metrics"
)

// Backoff spaces out redelivery attempts: Initial, then multiplied by
// Multiplier for each further attempt, never more than Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Delay returns the wait before the given retry (1-based).
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(retry-1))
	if d > float64(b.Max) || math.IsInf(d, 0) {
		return b.Max
	}
	return time.Duration(d)
}

// WorkerConfig configures the queue worker.
type WorkerConfig struct {
	BatchSize    int
	PollInterval time.Duration
	Workers      int
	// MaxAttempts applies to rows enqueued without their own limit.
	MaxAttempts int
	Backoff     Backoff
}

// DefaultWorkerConfig returns the worker settings used when config omits them.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:    100,
		PollInterval: 5 * time.Second,
		Workers:      2,
		MaxAttempts:  3,
		Backoff: Backoff{
			Initial:    time.Second,
			Max:        5 * time.Minute,
			Multiplier: 2,
		},
	}
}

// Delivery outcomes, used as metric labels.
const (
	outcomeSent   = "sent"
	outcomeRetry  = "retry"
	outcomeFailed = "failed"
)

// Worker drains the notification queue. Each poller claims its own batch, so
// several can run against one database.
type Worker struct {
	config     WorkerConfig
	repo       Repository
	channels   *Channels
	dispatcher *Dispatcher
	renderer   *Renderer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a worker. Call Start to begin polling.
func NewWorker(config WorkerConfig, repo Repository, channels *Channels, dispatcher *Dispatcher, renderer *Renderer) *Worker {
	return &Worker{
		config:     config,
		repo:       repo,
		channels:   channels,
		dispatcher: dispatcher,
		renderer:   renderer,
	}
}

// Start launches the pollers. They run until Stop is called or ctx ends.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	slog.Info("starting notification worker",
		"workers", w.config.Workers,
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
	)

	for i := range max(w.config.Workers, 1) {
		w.wg.Add(1)
		go w.poll(ctx, slog.With("worker", i))
	}
}

// Stop cancels the pollers and waits for in-flight deliveries to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	slog.Info("notification worker stopped")
}

func (w *Worker) poll(ctx context.Context, logger *slog.Logger) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processBatch(ctx, logger)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, logger *slog.Logger) {
	items, err := w.repo.FetchPendingNotifications(ctx, w.config.BatchSize)
	if err != nil {
		logger.Error("failed to fetch pending notifications", "error", err)
		return
	}
	if len(items) > 0 {
		logger.Debug("delivering notifications", "count", len(items))
	}

	for _, item := range items {
		w.deliver(ctx, logger.With("item_id", item.ID, "channel", item.Channel), item)
	}
}

// deliver sends one queue item and records what happened to it.
func (w *Worker) deliver(ctx context.Context, logger *slog.Logger, item *QueueItem) {
	channel, err := w.channels.Get(item.Channel)
	if err != nil {
		logger.Error("notification channel is no longer configured")
		w.fail(ctx, logger, item, "unknown", fmt.Errorf("%w: %s", err, item.Channel))
		return
	}
	kind := string(channel.Type)

	subject, body, err := w.renderer.Render(channel.Type, item.Payload)
	if err != nil {
		logger.Error("failed to render notification", "error", err)
		w.fail(ctx, logger, item, kind, err)
		return
	}

	start := time.Now()
	if err := w.dispatcher.Deliver(ctx, channel, subject, body); err != nil {
		w.sendFailed(ctx, logger, item, kind, err)
		return
	}
	elapsed := time.Since(start)

	if err := w.repo.MarkAsSent(ctx, item.ID); err != nil {
		logger.Error("failed to mark notification as sent", "error", err)
	}
	metrics.NotificationDeliveries.WithLabelValues(kind, outcomeSent).Inc()
	metrics.NotificationSendDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	logger.Debug("notification sent", "channel_type", kind, "duration", elapsed)
}

func (w *Worker) sendFailed(ctx context.Context, logger *slog.Logger, item *QueueItem, kind string, err error) {
	attempt := item.Attempts + 1
	limit := item.MaxAttempts
	if limit < 1 {
		limit = w.config.MaxAttempts
	}
	logger.Warn("notification delivery failed", "attempt", attempt, "max_attempts", limit, "error", err)

	switch {
	case !isRetryable(err):
		w.fail(ctx, logger, item, kind, err)
	case attempt >= limit:
		w.fail(ctx, logger, item, kind, fmt.Errorf("max attempts exceeded: %w", err))
	default:
		next := time.Now().Add(w.config.Backoff.Delay(attempt))
		if markErr := w.repo.MarkForRetry(ctx, item.ID, err, next); markErr != nil {
			logger.Error("failed to schedule notification retry", "error", markErr)
		}
		metrics.NotificationDeliveries.WithLabelValues(kind, outcomeRetry).Inc()
		logger.Info("notification scheduled for retry", "next_attempt", next)
	}
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, item *QueueItem, kind string, err error) {
	if markErr := w.repo.MarkAsFailed(ctx, item.ID, err); markErr != nil {
		logger.Error("failed to mark notification as failed", "error", markErr)
	}
	metrics.NotificationDeliveries.WithLabelValues(kind, outcomeFailed).Inc()
}

// RecordQueueStats publishes queue depth by status. Missing statuses are
// reported as zero so drained queues do not leave stale gauges behind.
func RecordQueueStats(stats QueueStats) {
	for _, status := range QueueStatuses {
		metrics.NotificationQueueSize.WithLabelValues(string(status)).Set(float64(stats[status]))
	}
}
