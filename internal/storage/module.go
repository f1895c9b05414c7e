// Package storage selects the storage driver and exposes domain repositories via fx.
package storage

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/config"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
	"github.com/polkiloo/loyaltyledger/internal/storage/memory"
	"github.com/polkiloo/loyaltyledger/internal/storage/postgres"
)

// Module wires the configured storage driver and repository adapters.
var Module = fx.Options(
	fx.Provide(newFactory),
	fx.Provide(
		func(f repository.Factory) repository.LedgerRepository { return f.Ledger() },
		func(f repository.Factory) repository.PendingCreditRepository { return f.PendingCredits() },
		func(f repository.Factory) repository.RewardRepository { return f.Rewards() },
		func(f repository.Factory) repository.RedemptionRepository { return f.Redemptions() },
	),
	fx.Invoke(registerLifecycle),
)

type factoryParams struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

var openPostgres = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Factory, error) {
	st, err := postgres.New(ctx, cfg.DatabaseURI, logger, postgres.WithTxTimeout(cfg.TxTimeout))
	if err != nil {
		return nil, err
	}
	return st, nil
}

func newFactory(p factoryParams) (repository.Factory, error) {
	if p.Config.DatabaseURI == "" {
		p.Logger.Warn("database uri is empty, using in-memory storage")
		return memory.New(), nil
	}
	return openPostgres(p.Ctx, p.Config, p.Logger)
}

func registerLifecycle(lc fx.Lifecycle, factory repository.Factory) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			factory.Close()
			return nil
		},
	})
}
