package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Deliver(t *testing.T) {
	slackSender := &fakeSender{channelType: ChannelTypeSlack}
	d := NewDispatcher(slackSender)

	err := d.Deliver(context.Background(), Channel{
		Name:       "ops",
		Type:       ChannelTypeSlack,
		WebhookURL: "https://hooks.slack.test/abc",
	}, "subject", "body")
	require.NoError(t, err)

	require.Len(t, slackSender.sent, 1)
	assert.Equal(t, Notification{To: "https://hooks.slack.test/abc", Subject: "subject", Body: "body"}, slackSender.sent[0])
}

func TestDispatcher_Deliver_NoSender(t *testing.T) {
	d := NewDispatcher(&fakeSender{channelType: ChannelTypeSlack})

	err := d.Deliver(context.Background(), Channel{Name: "mm", Type: ChannelTypeMattermost}, "s", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSender))
	assert.False(t, isRetryable(err))
}

func TestQueueStats_MissingStatusIsZero(t *testing.T) {
	stats := QueueStats{QueueStatusPending: 3}
	assert.Equal(t, int64(3), stats[QueueStatusPending])
	assert.Zero(t, stats[QueueStatusFailed])
	assert.Len(t, QueueStatuses, 4)
}
