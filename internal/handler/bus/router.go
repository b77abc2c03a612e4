package bus

import (
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/termhub/chat-relay-service/internal/adapter/pubsub"
	"github.com/termhub/chat-relay-service/internal/domain/event"
)

func NewWatermillRouter(logger *slog.Logger) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
}

// RegisterHandlers binds the chat-events consumer to the bus subscriber.
func RegisterHandlers(router *message.Router, provider *pubsub.Provider, consumer *EventConsumer, logger *slog.Logger) {
	router.AddNoPublisherHandler(
		"ON_CHAT_EVENT",
		event.Topic,
		provider.Subscriber(),
		consumer.OnEvent,
	).AddMiddleware(
		middleware.Recoverer,
		LoggingMiddleware(logger),
		NewRetryMiddleware().Middleware,
		middleware.Timeout(10*time.Second),
	)

	logger.Info("BUS_PIPELINE_READY", "topic", event.Topic)
}
