package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"go.uber.org/fx/fxtest"

	"github.com/polkiloo/loyaltyledger/internal/config"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
	"github.com/polkiloo/loyaltyledger/internal/storage/memory"
)

type closeSpy struct {
	repository.Factory
	closed bool
}

func (c *closeSpy) Close() { c.closed = true }

func TestNewFactorySelectsMemoryDriver(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	factory, err := newFactory(factoryParams{Ctx: context.Background(), Config: &config.Config{}, Logger: logger})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := factory.(*memory.Storage); !ok {
		t.Fatalf("expected memory storage, got %T", factory)
	}
}

func TestNewFactoryOpensPostgres(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	original := openPostgres
	t.Cleanup(func() { openPostgres = original })

	var gotDSN string
	openPostgres = func(_ context.Context, cfg *config.Config, _ *slog.Logger) (repository.Factory, error) {
		gotDSN = cfg.DatabaseURI
		return nil, errors.New("dial")
	}
	_, err := newFactory(factoryParams{Ctx: context.Background(), Config: &config.Config{DatabaseURI: "postgres://db"}, Logger: logger})
	if err == nil {
		t.Fatal("expected error")
	}
	if gotDSN != "postgres://db" {
		t.Fatalf("unexpected dsn %q", gotDSN)
	}
}

func TestOpenPostgresRejectsBadDSN(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if _, err := openPostgres(context.Background(), &config.Config{DatabaseURI: ":://bad"}, logger); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRegisterLifecycleClosesFactory(t *testing.T) {
	spy := &closeSpy{Factory: memory.New()}
	lc := fxtest.NewLifecycle(t)
	registerLifecycle(lc, spy)

	if err := lc.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := lc.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !spy.closed {
		t.Fatal("expected factory to be closed")
	}
}
