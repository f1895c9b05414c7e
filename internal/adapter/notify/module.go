package notify

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/config"
)

// Module exposes the notifier implementation to fx graph.
var Module = fx.Provide(newNotifier)

type notifierParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newNotifier(p notifierParams) (Notifier, error) {
	if p.Config.NotifyWebhookURL == "" {
		return NopNotifier{}, nil
	}
	return NewWebhookClient(p.Config.NotifyWebhookURL, p.Logger)
}
