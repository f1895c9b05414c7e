package router

import (
	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/app"
	"github.com/polkiloo/loyaltyledger/internal/server/http/handlers"
)

// Module registers HTTP router construction for fx runtime.
var Module = fx.Provide(
	func(f *app.LedgerFacade) handlers.LoyaltyFacade { return f },
	Setup,
)
