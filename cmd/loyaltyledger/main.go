package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/di"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := fx.New(
		fx.Provide(func() context.Context { return ctx }),
		di.Module(),
	)

	if err := run(ctx, app); err != nil {
		fmt.Fprintf(os.Stderr, "loyaltyledger: %v\n", err)
		stop()
		os.Exit(1)
	}
}
