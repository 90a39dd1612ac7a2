package notifications

import (
	"context"
	"fmt"
)

// Dispatcher hands rendered notifications to the Sender for a channel's type.
type Dispatcher struct {
	senders map[ChannelType]Sender
}

// NewDispatcher registers senders by their Type. A later sender replaces an
// earlier one of the same type.
func NewDispatcher(senders ...Sender) *Dispatcher {
	d := &Dispatcher{senders: make(map[ChannelType]Sender, len(senders))}
	for _, s := range senders {
		d.senders[s.Type()] = s
	}
	return d
}

// Deliver sends subject and body to channel's webhook. A channel type with no
// registered sender is a configuration error and is never retried.
func (d *Dispatcher) Deliver(ctx context.Context, channel Channel, subject, body string) error {
	s, ok := d.senders[channel.Type]
	if !ok {
		return NewNonRetryableError(fmt.Errorf("%w: %s", ErrNoSender, channel.Type))
	}
	return s.Send(ctx, Notification{To: channel.WebhookURL, Subject: subject, Body: body})
}
