package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Expirer moves lapsed pending redemptions to expired.
type Expirer interface {
	ExpireStale(ctx context.Context, limit int) (int, error)
}

// ExpirySweeper periodically expires redemptions whose proofs lapsed without validation.
type ExpirySweeper struct {
	expirer  Expirer
	interval time.Duration
	batch    int
	logger   *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewExpirySweeper constructs the sweeper.
func NewExpirySweeper(expirer Expirer, interval time.Duration, batch int, logger *slog.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 1
	}
	return &ExpirySweeper{expirer: expirer, interval: interval, batch: batch, logger: logger}
}

// Start launches the sweep loop.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(runCtx)
}

// Stop waits for the current sweep to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *ExpirySweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep drains full batches until a short one signals nothing is left.
func (s *ExpirySweeper) sweep(ctx context.Context) {
	total := 0
	for ctx.Err() == nil {
		n, err := s.expirer.ExpireStale(ctx, s.batch)
		if err != nil {
			s.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
			break
		}
		total += n
		if n < s.batch {
			break
		}
	}
	if total > 0 {
		s.logger.Info("expired stale redemptions", slog.Int("count", total))
	}
}
