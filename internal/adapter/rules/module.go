package rules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/config"
)

// Module exposes the pointing-rule provider to fx graph.
var Module = fx.Provide(newProvider)

type providerParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newProvider(p providerParams) (Provider, error) {
	if p.Config.PointingRulesFile == "" {
		p.Logger.Warn("no pointing rules file configured, using default rule")
		fallback := DefaultRule
		return NewStaticProvider(&fallback, nil), nil
	}
	provider, err := Load(p.Config.PointingRulesFile)
	if err != nil {
		return nil, err
	}
	p.Logger.Info("pointing rules loaded", slog.String("file", p.Config.PointingRulesFile))
	return provider, nil
}
