package notifications

import (
	"context"
	"fmt"
)

// ChannelType identifies the delivery mechanism of a channel.
type ChannelType string

// Channel types.
const (
	ChannelTypeSlack      ChannelType = "slack"
	ChannelTypeMattermost ChannelType = "mattermost"
)

// IsValid checks if the channel type is supported.
func (t ChannelType) IsValid() bool {
	return t == ChannelTypeSlack || t == ChannelTypeMattermost
}

// Channel is a configured notification destination.
type Channel struct {
	Name       string
	Type       ChannelType
	WebhookURL string
}

// Notification is a rendered message ready for delivery.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers notifications of one channel type.
type Sender interface {
	Type() ChannelType
	Send(ctx context.Context, notification Notification) error
}

// Channels is a registry of configured channels keyed by name.
type Channels struct {
	byName map[string]Channel
	order  []string
}

// NewChannels builds a channel registry, rejecting duplicates and unknown types.
func NewChannels(channels ...Channel) (*Channels, error) {
	c := &Channels{byName: make(map[string]Channel, len(channels))}
	for _, ch := range channels {
		if !ch.Type.IsValid() {
			return nil, fmt.Errorf("channel %q: unsupported type %q", ch.Name, ch.Type)
		}
		if _, ok := c.byName[ch.Name]; ok {
			return nil, fmt.Errorf("channel %q: duplicate name", ch.Name)
		}
		c.byName[ch.Name] = ch
		c.order = append(c.order, ch.Name)
	}
	return c, nil
}

// Get returns a channel by name.
func (c *Channels) Get(name string) (Channel, error) {
	ch, ok := c.byName[name]
	if !ok {
		return Channel{}, ErrChannelNotFound
	}
	return ch, nil
}

// Names returns channel names in configuration order.
func (c *Channels) Names() []string {
	return c.order
}

// Len returns the number of channels.
func (c *Channels) Len() int {
	return len(c.order)
}
