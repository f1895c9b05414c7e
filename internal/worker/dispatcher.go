package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/loyaltyledger/internal/adapter/notify"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/metrics"
)

// Dispatcher delivers ledger events to the notifier from a bounded queue. Delivery is best effort:
// a full queue drops the event and a failed send is not retried beyond one rate-limit wait.
type Dispatcher struct {
	notifier notify.Notifier
	workers  int
	metrics  *metrics.Metrics
	logger   *slog.Logger

	events chan model.Event
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewDispatcher constructs notification worker pool.
func NewDispatcher(notifier notify.Notifier, workers, queueSize int, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		notifier: notifier,
		workers:  workers,
		metrics:  m,
		logger:   logger,
		events:   make(chan model.Event, queueSize),
	}
}

// Publish enqueues an event without blocking the caller.
func (d *Dispatcher) Publish(event model.Event) {
	select {
	case d.events <- event:
	default:
		d.metrics.Notification("dropped")
		d.logger.Warn("notification queue full, dropping event",
			slog.String("kind", string(event.Kind)),
			slog.String("reference", event.Reference))
	}
}

// Start launches delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(runCtx)
	}
}

// Stop cancels in-flight deliveries and waits for workers to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event model.Event) {
	err := d.notifier.Send(ctx, event)
	var limited notify.TooManyRequestsError
	if errors.As(err, &limited) {
		d.logger.Warn("notification rate limited", slog.Duration("retry_after", limited.RetryAfter))
		timer := time.NewTimer(limited.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.metrics.Notification("failed")
			return
		case <-timer.C:
		}
		err = d.notifier.Send(ctx, event)
	}
	if err != nil {
		d.metrics.Notification("failed")
		d.logger.Error("notification failed",
			slog.String("kind", string(event.Kind)),
			slog.String("reference", event.Reference),
			slog.String("error", err.Error()))
		return
	}
	d.metrics.Notification("sent")
}
