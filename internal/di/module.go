package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/adapter/notify"
	"github.com/polkiloo/loyaltyledger/internal/adapter/rules"
	"github.com/polkiloo/loyaltyledger/internal/app"
	"github.com/polkiloo/loyaltyledger/internal/config"
	"github.com/polkiloo/loyaltyledger/internal/logger"
	"github.com/polkiloo/loyaltyledger/internal/metrics"
	"github.com/polkiloo/loyaltyledger/internal/pkg/auth"
	"github.com/polkiloo/loyaltyledger/internal/pkg/proof"
	"github.com/polkiloo/loyaltyledger/internal/server/http/router"
	"github.com/polkiloo/loyaltyledger/internal/storage"
	"github.com/polkiloo/loyaltyledger/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		metrics.Module,
		auth.Module,
		proof.Module,
		storage.Module,
		rules.Module,
		notify.Module,
		usecase.Module,
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
