package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
	"github.com/polkiloo/loyaltyledger/internal/metrics"
	pkgAuth "github.com/polkiloo/loyaltyledger/internal/pkg/auth"
	"github.com/polkiloo/loyaltyledger/internal/usecase"
)

// Publisher accepts committed ledger events for best-effort delivery.
type Publisher interface {
	Publish(event model.Event)
}

// RetryPolicy bounds retries of units that failed on a concurrency conflict.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// UseCases groups the business services behind the facade.
type UseCases struct {
	Auth       *usecase.AuthUseCase
	Ledger     *usecase.LedgerUseCase
	Awards     *usecase.AwardUseCase
	Migrations *usecase.MigrationUseCase
	Catalog    *usecase.CatalogUseCase
	Issuance   *usecase.IssuanceUseCase
	Validation *usecase.ValidationUseCase
}

// LedgerFacade is the single entry point of transports and workers into the core.
type LedgerFacade struct {
	uc      UseCases
	storage repository.Factory
	events  Publisher
	metrics *metrics.Metrics
	retry   RetryPolicy
	logger  *slog.Logger
	clock   usecase.Clock
}

func NewLedgerFacade(uc UseCases, storage repository.Factory, events Publisher, m *metrics.Metrics, retry RetryPolicy, logger *slog.Logger, clock usecase.Clock) *LedgerFacade {
	if clock == nil {
		clock = usecase.NewClock()
	}
	return &LedgerFacade{uc: uc, storage: storage, events: events, metrics: m, retry: retry, logger: logger, clock: clock}
}

// retryable runs fn again while it fails with ErrConcurrencyConflict; any other error stops at once.
func retryable[T any](ctx context.Context, f *LedgerFacade, op string, fn func() (T, error)) (T, error) {
	var result T
	expo := backoff.NewExponentialBackOff()
	if f.retry.Backoff > 0 {
		expo.InitialInterval = f.retry.Backoff
		expo.MaxInterval = 20 * f.retry.Backoff
	}
	attempts := f.retry.Attempts
	if attempts < 0 {
		attempts = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts)), ctx)

	err := backoff.RetryNotify(func() error {
		value, err := fn()
		if err == nil {
			result = value
			return nil
		}
		if errors.Is(err, domainErrors.ErrConcurrencyConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		f.metrics.Retry(op)
		f.logger.Warn("retrying after conflict",
			slog.String("operation", op),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	})
	f.metrics.Operation(op, err)
	return result, err
}

func (f *LedgerFacade) publish(event model.Event) {
	if f.events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = f.clock()
	}
	f.events.Publish(event)
}

func (f *LedgerFacade) ParseToken(token string) (pkgAuth.Principal, error) {
	return f.uc.Auth.ParseToken(token)
}

func (f *LedgerFacade) HealthCheck(ctx context.Context) error {
	return f.storage.HealthCheck(ctx)
}

func (f *LedgerFacade) Balance(ctx context.Context, customerID, storeID string) (*model.Balance, error) {
	return f.uc.Ledger.Balance(ctx, customerID, storeID)
}

func (f *LedgerFacade) History(ctx context.Context, customerID, storeID string, limit int) ([]model.Transaction, error) {
	return f.uc.Ledger.History(ctx, customerID, storeID, limit)
}

func (f *LedgerFacade) Reconcile(ctx context.Context, customerID, storeID string) (*model.Reconciliation, error) {
	return f.uc.Ledger.Reconcile(ctx, customerID, storeID)
}

func (f *LedgerFacade) Adjust(ctx context.Context, adj usecase.Adjustment) (*model.Balance, error) {
	return retryable(ctx, f, "adjust", func() (*model.Balance, error) {
		return f.uc.Ledger.Adjust(ctx, adj)
	})
}

func (f *LedgerFacade) Award(ctx context.Context, purchase model.Purchase) (*model.AwardResult, error) {
	result, err := retryable(ctx, f, "award", func() (*model.AwardResult, error) {
		return f.uc.Awards.Award(ctx, purchase)
	})
	if err != nil || result.Points == 0 {
		return result, err
	}

	switch {
	case result.Transaction != nil:
		f.metrics.Points("award", result.Points)
		f.publish(model.Event{
			Kind:       model.EventPointsAwarded,
			CustomerID: result.Transaction.Customer(),
			StoreID:    purchase.StoreID,
			Points:     result.Points,
			Reference:  purchase.Reference,
		})
	case result.PendingCredit != nil:
		f.metrics.Points("pending", result.Points)
		f.publish(model.Event{
			Kind:      model.EventCreditPending,
			TaxID:     result.PendingCredit.TaxID,
			StoreID:   purchase.StoreID,
			Points:    result.Points,
			Reference: purchase.Reference,
		})
	}
	return result, nil
}

func (f *LedgerFacade) Migrate(ctx context.Context, taxID, customerID string) (*model.MigrationReport, error) {
	report, err := retryable(ctx, f, "migrate", func() (*model.MigrationReport, error) {
		return f.uc.Migrations.Migrate(ctx, taxID, customerID)
	})
	if err != nil {
		return nil, err
	}
	for _, store := range report.Stores {
		if !store.Success || store.Points == 0 {
			continue
		}
		f.metrics.Points("migrated", store.Points)
		f.publish(model.Event{
			Kind:       model.EventCreditsMigrated,
			CustomerID: customerID,
			TaxID:      report.TaxID,
			StoreID:    store.StoreID,
			Points:     store.Points,
			Data:       map[string]any{"credits": store.Credits},
		})
	}
	return report, nil
}

func (f *LedgerFacade) UpsertReward(ctx context.Context, reward model.Reward) (*model.Reward, error) {
	return f.uc.Catalog.Upsert(ctx, reward)
}

func (f *LedgerFacade) Rewards(ctx context.Context, storeID string) ([]model.Reward, error) {
	return f.uc.Catalog.List(ctx, storeID)
}

func (f *LedgerFacade) IssueRedemption(ctx context.Context, customerID, storeID, rewardID string) (*model.Issuance, error) {
	issuance, err := retryable(ctx, f, "issue", func() (*model.Issuance, error) {
		return f.uc.Issuance.Issue(ctx, customerID, storeID, rewardID)
	})
	if err != nil {
		return nil, err
	}
	f.metrics.Points("reserved", issuance.Redemption.CostPoints)
	f.publish(model.Event{
		Kind:       model.EventRedemptionIssued,
		CustomerID: customerID,
		StoreID:    storeID,
		Points:     issuance.Redemption.CostPoints,
		Reference:  issuance.Redemption.ID.String(),
		Data:       map[string]any{"reward_id": rewardID, "expires_at": issuance.Proof.ExpiresAt},
	})
	return issuance, nil
}

func (f *LedgerFacade) RegenerateProof(ctx context.Context, customerID string, redemptionID uuid.UUID) (*model.Issuance, error) {
	return retryable(ctx, f, "regenerate", func() (*model.Issuance, error) {
		return f.uc.Issuance.Regenerate(ctx, customerID, redemptionID)
	})
}

func (f *LedgerFacade) Redemptions(ctx context.Context, customerID, storeID string) ([]model.Redemption, error) {
	return f.uc.Issuance.Redemptions(ctx, customerID, storeID)
}

func (f *LedgerFacade) Redemption(ctx context.Context, customerID string, redemptionID uuid.UUID) (*model.Issuance, error) {
	return f.uc.Issuance.Current(ctx, customerID, redemptionID)
}

func (f *LedgerFacade) ValidateRedemption(ctx context.Context, req usecase.ValidationRequest) (*model.ValidationResult, error) {
	result, err := retryable(ctx, f, "validate", func() (*model.ValidationResult, error) {
		return f.uc.Validation.Validate(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	f.metrics.Points("redeemed", result.Redemption.CostPoints)
	f.publish(model.Event{
		Kind:       model.EventRedemptionRedeemed,
		CustomerID: result.Redemption.CustomerID,
		StoreID:    result.Redemption.StoreID,
		Points:     result.Redemption.CostPoints,
		Reference:  result.Redemption.ID.String(),
		Data:       map[string]any{"validated_by": req.Metadata.ValidatedBy},
	})
	return result, nil
}

func (f *LedgerFacade) CancelRedemption(ctx context.Context, req usecase.CancelRequest) (*model.Redemption, error) {
	red, err := retryable(ctx, f, "cancel", func() (*model.Redemption, error) {
		return f.uc.Validation.Cancel(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	f.metrics.Points("released", red.CostPoints)
	f.publish(model.Event{
		Kind:       model.EventRedemptionCanceled,
		CustomerID: red.CustomerID,
		StoreID:    red.StoreID,
		Points:     red.CostPoints,
		Reference:  red.ID.String(),
		Data:       map[string]any{"cancelled_by": req.Operator},
	})
	return red, nil
}

func (f *LedgerFacade) ExpireStale(ctx context.Context, limit int) (int, error) {
	n, err := f.uc.Validation.ExpireStale(ctx, limit)
	f.metrics.Operation("expire", err)
	if err == nil {
		f.metrics.Expired(n)
	}
	return n, err
}
