package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"
)

// run starts the graph and blocks until a signal arrives or a component asks for shutdown.
func run(ctx context.Context, app *fx.App) error {
	if err := app.Err(); err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-app.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop application: %w", err)
	}
	return nil
}
