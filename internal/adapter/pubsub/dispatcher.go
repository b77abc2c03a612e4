package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/termhub/chat-relay-service/internal/domain/event"
)

// EventDispatcher publishes domain events on the cross-instance channel.
// Delivery is best effort: the bus fans a copy of every published event out
// to every instance's consumer, with no ordering guarantee across processes.
type EventDispatcher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewEventDispatcher(p *Provider, logger *slog.Logger) *EventDispatcher {
	return &EventDispatcher{
		publisher: p.Publisher(),
		logger:    logger,
	}
}

func (d *EventDispatcher) Publish(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}
	exp, ok := ev.(event.Exportable)
	if !ok || exp.GetRoutingKey() == "" {
		return fmt.Errorf("event dispatcher: %s events are not exportable", ev.GetKind())
	}

	payload, err := event.Encode(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := d.publisher.Publish(exp.GetRoutingKey(), msg); err != nil {
		return fmt.Errorf("event dispatcher: publish to %s: %w", exp.GetRoutingKey(), err)
	}
	d.logger.Debug("event_published", "topic", exp.GetRoutingKey(), "kind", ev.GetKind())
	return nil
}
