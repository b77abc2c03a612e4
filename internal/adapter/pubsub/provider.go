package pubsub

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/termhub/chat-relay-service/config"
)

// Provider owns the concrete pub/sub transport behind the cross-instance
// broadcast channel. With a broker URL it builds an AMQP fan-out where every
// instance consumes from its own queue; without one it degrades to an
// in-process GoChannel, which is fine for a single instance and is the
// documented limitation otherwise.
type Provider struct {
	pub    message.Publisher
	sub    message.Subscriber
	shared bool // pub and sub are the same GoChannel instance
}

func NewProvider(cfg *config.Config, logger *slog.Logger) (*Provider, error) {
	wlog := watermill.NewSlogLogger(logger)

	if cfg.BrokerURL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, wlog)
		logger.Warn("bus_in_process",
			"detail", "no broker_url configured; events will not reach other instances")
		return &Provider{pub: ch, sub: ch, shared: true}, nil
	}

	// One queue per instance so the broker copies every event to every
	// process serving the deployment.
	instanceID := uuid.NewString()[:8]
	amqpCfg := amqp.NewDurablePubSubConfig(
		cfg.BrokerURL,
		amqp.GenerateQueueNameTopicNameWithSuffix("."+instanceID),
	)

	pub, err := amqp.NewPublisher(amqpCfg, wlog)
	if err != nil {
		return nil, fmt.Errorf("pubsub: build publisher: %w", err)
	}
	sub, err := amqp.NewSubscriber(amqpCfg, wlog)
	if err != nil {
		return nil, fmt.Errorf("pubsub: build subscriber: %w", err)
	}

	logger.Info("bus_connected", "instance_id", instanceID)
	return &Provider{pub: pub, sub: sub}, nil
}

func (p *Provider) Publisher() message.Publisher   { return p.pub }
func (p *Provider) Subscriber() message.Subscriber { return p.sub }

func (p *Provider) Close() error {
	if p.shared {
		return p.pub.Close()
	}
	if err := p.pub.Close(); err != nil {
		return err
	}
	return p.sub.Close()
}
