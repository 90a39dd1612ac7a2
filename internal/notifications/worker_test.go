package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	channelType ChannelType
	sent        []Notification
	err         error
}

func (f *fakeSender) Type() ChannelType { return f.channelType }

func (f *fakeSender) Send(_ context.Context, n Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func newTestWorker(t *testing.T, repo *mockRepository, sender *fakeSender) *Worker {
	t.Helper()
	renderer, err := NewRenderer()
	require.NoError(t, err)
	config := DefaultWorkerConfig()
	config.Backoff.Initial = time.Minute
	return NewWorker(config, repo, testChannels(t), NewDispatcher(sender), renderer)
}

func queued(id, channel string, attempts int) *QueueItem {
	return &QueueItem{
		ID:          id,
		IncidentID:  "inc-1",
		Channel:     channel,
		MessageType: MessageTypeCreated,
		Payload:     testPayload(MessageTypeCreated),
		Status:      QueueStatusProcessing,
		Attempts:    attempts,
		MaxAttempts: 3,
	}
}

func TestWorker_ProcessBatch_Delivers(t *testing.T) {
	repo := newMockRepository()
	repo.pending = []*QueueItem{queued("q1", "ops-slack", 0)}
	sender := &fakeSender{channelType: ChannelTypeSlack}
	w := newTestWorker(t, repo, sender)

	w.processBatch(context.Background(), slog.Default())

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "https://hooks.slack.com/x", sender.sent[0].To)
	assert.Equal(t, "[Incident] Database connectivity issues", sender.sent[0].Subject)
	assert.Equal(t, []string{"q1"}, repo.sent)
}

func TestWorker_Deliver_Failures(t *testing.T) {
	tests := []struct {
		name        string
		item        *QueueItem
		sendErr     error
		wantFailed  bool
		wantRetried bool
	}{
		{
			name:       "unknown channel",
			item:       queued("q1", "removed", 0),
			wantFailed: true,
		},
		{
			name:       "no sender for channel type",
			item:       queued("q1", "ops-mm", 0),
			wantFailed: true,
		},
		{
			name:        "retryable send error",
			item:        queued("q1", "ops-slack", 0),
			sendErr:     NewRetryableError(errors.New("timeout")),
			wantRetried: true,
		},
		{
			name:       "permanent send error",
			item:       queued("q1", "ops-slack", 0),
			sendErr:    NewNonRetryableError(errors.New("webhook gone")),
			wantFailed: true,
		},
		{
			name:       "attempts exhausted",
			item:       queued("q1", "ops-slack", 2),
			sendErr:    NewRetryableError(errors.New("timeout")),
			wantFailed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			w := newTestWorker(t, repo, &fakeSender{channelType: ChannelTypeSlack, err: tt.sendErr})

			w.deliver(context.Background(), slog.Default(), tt.item)

			_, failed := repo.failed["q1"]
			_, retried := repo.retried["q1"]
			assert.Equal(t, tt.wantFailed, failed)
			assert.Equal(t, tt.wantRetried, retried)
			assert.Empty(t, repo.sent)
		})
	}
}

func TestWorker_RetryIsScheduledWithBackoff(t *testing.T) {
	repo := newMockRepository()
	w := newTestWorker(t, repo, &fakeSender{channelType: ChannelTypeSlack, err: errors.New("connection reset")})

	before := time.Now()
	w.deliver(context.Background(), slog.Default(), queued("q1", "ops-slack", 1))

	next, ok := repo.retried["q1"]
	require.True(t, ok)
	assert.WithinDuration(t, before.Add(2*time.Minute), next, 5*time.Second)
}

func TestWorker_StartStop(t *testing.T) {
	repo := newMockRepository()
	repo.pending = []*QueueItem{queued("q1", "ops-slack", 0)}
	sender := &fakeSender{channelType: ChannelTypeSlack}
	w := newTestWorker(t, repo, sender)
	w.config.PollInterval = 10 * time.Millisecond
	w.config.Workers = 1

	w.Start(context.Background())
	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.sent) == 1
	}, time.Second, 10*time.Millisecond)
	w.Stop()
}

func TestWorker_StopWithoutStart(t *testing.T) {
	w := newTestWorker(t, newMockRepository(), &fakeSender{channelType: ChannelTypeSlack})
	assert.NotPanics(t, w.Stop)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{5000, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("retry %d", tt.retry), func(t *testing.T) {
			assert.Equal(t, tt.want, b.Delay(tt.retry))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"marked transient", NewRetryableError(errors.New("timeout")), true},
		{"marked permanent", NewNonRetryableError(errors.New("gone")), false},
		{"unmarked", errors.New("connection reset"), true},
		{"wrapped permanent", fmt.Errorf("send: %w", NewNonRetryableError(errors.New("gone"))), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestRetryableError_Unwrap(t *testing.T) {
	cause := errors.New("original error")
	err := NewNonRetryableError(cause)

	assert.Equal(t, "original error", err.Error())
	assert.False(t, err.IsRetryable())
	assert.ErrorIs(t, err, cause)
}

func TestDefaultWorkerConfig(t *testing.T) {
	config := DefaultWorkerConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.Equal(t, 2, config.Workers)
	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, Backoff{Initial: time.Second, Max: 5 * time.Minute, Multiplier: 2}, config.Backoff)
}
