package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/adapter/notify"
	"github.com/polkiloo/loyaltyledger/internal/config"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
	"github.com/polkiloo/loyaltyledger/internal/metrics"
	"github.com/polkiloo/loyaltyledger/internal/usecase"
	"github.com/polkiloo/loyaltyledger/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		newLedgerFacade,
		newHTTPServer,
		newDispatcher,
		newExpirySweeper,
	),
	fx.Invoke(registerLifecycle),
)

type facadeParams struct {
	fx.In

	Auth       *usecase.AuthUseCase
	Ledger     *usecase.LedgerUseCase
	Awards     *usecase.AwardUseCase
	Migrations *usecase.MigrationUseCase
	Catalog    *usecase.CatalogUseCase
	Issuance   *usecase.IssuanceUseCase
	Validation *usecase.ValidationUseCase
	Storage    repository.Factory
	Events     *worker.Dispatcher
	Metrics    *metrics.Metrics
	Config     *config.Config
	Logger     *slog.Logger
	Clock      usecase.Clock
}

func newLedgerFacade(p facadeParams) *LedgerFacade {
	return NewLedgerFacade(
		UseCases{
			Auth:       p.Auth,
			Ledger:     p.Ledger,
			Awards:     p.Awards,
			Migrations: p.Migrations,
			Catalog:    p.Catalog,
			Issuance:   p.Issuance,
			Validation: p.Validation,
		},
		p.Storage,
		p.Events,
		p.Metrics,
		RetryPolicy{Attempts: p.Config.RetryAttempts, Backoff: p.Config.RetryBackoff},
		p.Logger,
		p.Clock,
	)
}

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:    p.Config.RunAddress,
		Handler: p.Router,
	}
}

type dispatcherParams struct {
	fx.In

	Notifier notify.Notifier
	Config   *config.Config
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func newDispatcher(p dispatcherParams) *worker.Dispatcher {
	return worker.NewDispatcher(
		p.Notifier,
		p.Config.NotifyWorkers,
		p.Config.NotifyQueueSize,
		p.Metrics,
		p.Logger,
	)
}

type sweeperParams struct {
	fx.In

	Facade *LedgerFacade
	Config *config.Config
	Logger *slog.Logger
}

func newExpirySweeper(p sweeperParams) *worker.ExpirySweeper {
	return worker.NewExpirySweeper(
		p.Facade,
		p.Config.ExpirySweepInterval,
		p.Config.ExpirySweepBatch,
		p.Logger,
	)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Dispatcher *worker.Dispatcher
	Sweeper    *worker.ExpirySweeper
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting loyalty ledger", slog.String("addr", p.Server.Addr))
			p.Dispatcher.Start(context.Background())
			p.Sweeper.Start(context.Background())
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			err := p.Server.Shutdown(shutdownCtx)
			p.Sweeper.Stop()
			p.Dispatcher.Stop()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Logger.Info("loyalty ledger stopped")
			return nil
		},
	})
}
