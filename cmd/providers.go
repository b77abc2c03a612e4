package cmd

import (
	"log/slog"
	"os"
)

func ProvideLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("CHAT_DEBUG") != "" {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With("service", ServiceName)

	slog.SetDefault(logger)
	return logger
}
