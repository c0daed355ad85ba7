package messaging

import (
	"context"
	"time"
)

// Publisher sends typed events to one broker channel.
type Publisher struct {
	broker  Broker
	channel string
	now     func() time.Time
}

func NewPublisher(broker Broker, channel string) *Publisher {
	return &Publisher{broker: broker, channel: channel, now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	return p.broker.Publish(ctx, p.channel, Event{
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	})
}

func (p *Publisher) Channel() string {
	return p.channel
}
