package cmd

import (
	"go.uber.org/fx"

	"github.com/termhub/chat-relay-service/config"
	"github.com/termhub/chat-relay-service/infra/metrics"
	httpserver "github.com/termhub/chat-relay-service/infra/server/http"
	"github.com/termhub/chat-relay-service/internal/adapter/pubsub"
	"github.com/termhub/chat-relay-service/internal/domain/registry"
	"github.com/termhub/chat-relay-service/internal/handler/bus"
	"github.com/termhub/chat-relay-service/internal/handler/httpsrv"
	"github.com/termhub/chat-relay-service/internal/service"
	"github.com/termhub/chat-relay-service/internal/store"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,

			// Interface bindings between layers that must not import each
			// other directly.
			func(d *pubsub.EventDispatcher) service.EventPublisher { return d },
			func(f *service.FanoutService) bus.RemoteDeliverer { return f },
		),
		metrics.Module,
		store.Module,
		pubsub.Module,
		registry.Module,
		service.Module,
		bus.Module,
		httpsrv.Module,
		httpserver.Module,
	)
}
