package service

import (
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		fx.Annotate(
			NewPresenceService,
			fx.As(new(Presencer)),
		),
		NewHistory,
		NewFanoutService,
		func(f *FanoutService) Broadcaster { return f },
		fx.Annotate(
			NewActionService,
			fx.As(new(Dispatcher)),
		),
	),
)
