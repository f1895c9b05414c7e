package logger

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/config"
)

// Module wires slog logger for dependency injection.
var Module = fx.Provide(provide)

func provide(lc fx.Lifecycle, cfg *config.Config) *slog.Logger {
	l, closer := New(cfg)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return closer.Close()
		},
	})
	return l
}
