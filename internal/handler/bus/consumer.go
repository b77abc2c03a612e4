package bus

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/termhub/chat-relay-service/internal/domain/event"
)

// RemoteDeliverer is the local half of the fan-out, fed by the bus.
type RemoteDeliverer interface {
	Remote(ev event.Eventer)
}

// EventConsumer turns bus messages back into domain events and hands them to
// the local fan-out. Everything that fails to decode is acked and dropped:
// a malformed payload is a terminal state, not a retry candidate.
type EventConsumer struct {
	fanout RemoteDeliverer
	logger *slog.Logger
}

func NewEventConsumer(fanout RemoteDeliverer, logger *slog.Logger) *EventConsumer {
	return &EventConsumer{
		fanout: fanout,
		logger: logger,
	}
}

func (c *EventConsumer) OnEvent(msg *message.Message) error {
	ev, err := event.Decode(msg.Payload)
	if err != nil {
		c.logger.Warn("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
		return nil // ACK: poison pill protection
	}

	c.fanout.Remote(ev)
	return nil
}
