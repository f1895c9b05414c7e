package auth

import (
	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/config"
)

// Module provides token verification for callers authenticated upstream.
var Module = fx.Provide(newTokenStrategy)

type strategyParams struct {
	fx.In

	Config *config.Config
}

func newTokenStrategy(p strategyParams) Strategy {
	return NewJWTStrategy(p.Config.AuthSecret, Options{TTL: p.Config.AuthTokenTTL})
}
