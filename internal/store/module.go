package store

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/termhub/chat-relay-service/config"
)

var Module = fx.Module("store",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) (KV, error) {
			if cfg.DataDir == "" {
				logger.Warn("store_in_memory",
					"detail", "no data_dir configured; registries are process-local and will not survive restarts")
				return NewMemory(), nil
			}
			p, err := OpenPebble(cfg.DataDir)
			if err != nil {
				return nil, err
			}
			logger.Info("store_opened", "path", cfg.DataDir)
			return NewBreaker(p, logger), nil
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, kv KV) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return kv.Close()
			},
		})
	}),
)
