package notify

import (
	"context"
	"fmt"

	"github.com/Steinwealth/UltimaBot/internal/models"
)

// ChannelSubscriber delivers events on a buffered channel for in-process
// consumers. A full buffer counts as a failed send.
type ChannelSubscriber struct {
	name string
	ch   chan models.Event
}

// NewChannelSubscriber creates a channel subscriber with the given buffer.
func NewChannelSubscriber(name string, buffer int) *ChannelSubscriber {
	if buffer <= 0 {
		buffer = 100
	}
	return &ChannelSubscriber{name: name, ch: make(chan models.Event, buffer)}
}

// Name returns the subscriber name.
func (c *ChannelSubscriber) Name() string { return c.name }

// Events returns the receive side of the channel.
func (c *ChannelSubscriber) Events() <-chan models.Event { return c.ch }

// Send delivers ev without blocking.
func (c *ChannelSubscriber) Send(ctx context.Context, ev models.Event) error {
	select {
	case c.ch <- ev:
		return nil
	default:
		return fmt.Errorf("subscriber %s buffer full", c.name)
	}
}
