package test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	pkgAuth "github.com/polkiloo/loyaltyledger/internal/pkg/auth"
	"github.com/polkiloo/loyaltyledger/internal/usecase"
)

// FixedTime is the instant returned by stubs that need a timestamp.
var FixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// LoyaltyFacadeStub provides controllable behaviour for every HTTP endpoint. Unset functions
// return small successful defaults.
type LoyaltyFacadeStub struct {
	TokenParserStub

	BalanceFn      func(context.Context, string, string) (*model.Balance, error)
	HistoryFn      func(context.Context, string, string, int) ([]model.Transaction, error)
	AdjustFn       func(context.Context, usecase.Adjustment) (*model.Balance, error)
	ReconcileFn    func(context.Context, string, string) (*model.Reconciliation, error)
	AwardFn        func(context.Context, model.Purchase) (*model.AwardResult, error)
	MigrateFn      func(context.Context, string, string) (*model.MigrationReport, error)
	UpsertRewardFn func(context.Context, model.Reward) (*model.Reward, error)
	RewardsFn      func(context.Context, string) ([]model.Reward, error)
	IssueFn        func(context.Context, string, string, string) (*model.Issuance, error)
	RegenerateFn   func(context.Context, string, uuid.UUID) (*model.Issuance, error)
	RedemptionsFn  func(context.Context, string, string) ([]model.Redemption, error)
	RedemptionFn   func(context.Context, string, uuid.UUID) (*model.Issuance, error)
	ValidateFn     func(context.Context, usecase.ValidationRequest) (*model.ValidationResult, error)
	CancelFn       func(context.Context, usecase.CancelRequest) (*model.Redemption, error)
	HealthFn       func(context.Context) error
}

// ParseToken delegates to the embedded parser or accepts any token as customer-1.
func (s LoyaltyFacadeStub) ParseToken(token string) (pkgAuth.Principal, error) {
	if s.Principals == nil && s.Err == nil {
		return Customer("customer-1"), nil
	}
	return s.TokenParserStub.ParseToken(token)
}

func (s LoyaltyFacadeStub) Balance(ctx context.Context, customerID, storeID string) (*model.Balance, error) {
	if s.BalanceFn != nil {
		return s.BalanceFn(ctx, customerID, storeID)
	}
	return &model.Balance{CustomerID: customerID, StoreID: storeID, Available: 10, Reserved: 5, UpdatedAt: FixedTime}, nil
}

func (s LoyaltyFacadeStub) History(ctx context.Context, customerID, storeID string, limit int) ([]model.Transaction, error) {
	if s.HistoryFn != nil {
		return s.HistoryFn(ctx, customerID, storeID, limit)
	}
	owner := customerID
	return []model.Transaction{{ID: uuid.New(), CustomerID: &owner, StoreID: storeID, Type: model.TransactionAward, Amount: 10, CreatedAt: FixedTime}}, nil
}

func (s LoyaltyFacadeStub) Adjust(ctx context.Context, adj usecase.Adjustment) (*model.Balance, error) {
	if s.AdjustFn != nil {
		return s.AdjustFn(ctx, adj)
	}
	return &model.Balance{CustomerID: adj.CustomerID, StoreID: adj.StoreID, Available: adj.Delta}, nil
}

func (s LoyaltyFacadeStub) Reconcile(ctx context.Context, customerID, storeID string) (*model.Reconciliation, error) {
	if s.ReconcileFn != nil {
		return s.ReconcileFn(ctx, customerID, storeID)
	}
	return &model.Reconciliation{CustomerID: customerID, StoreID: storeID}, nil
}

func (s LoyaltyFacadeStub) Award(ctx context.Context, purchase model.Purchase) (*model.AwardResult, error) {
	if s.AwardFn != nil {
		return s.AwardFn(ctx, purchase)
	}
	return &model.AwardResult{}, nil
}

func (s LoyaltyFacadeStub) Migrate(ctx context.Context, taxID, customerID string) (*model.MigrationReport, error) {
	if s.MigrateFn != nil {
		return s.MigrateFn(ctx, taxID, customerID)
	}
	return &model.MigrationReport{TaxID: taxID, CustomerID: customerID}, nil
}

func (s LoyaltyFacadeStub) UpsertReward(ctx context.Context, reward model.Reward) (*model.Reward, error) {
	if s.UpsertRewardFn != nil {
		return s.UpsertRewardFn(ctx, reward)
	}
	return &reward, nil
}

func (s LoyaltyFacadeStub) Rewards(ctx context.Context, storeID string) ([]model.Reward, error) {
	if s.RewardsFn != nil {
		return s.RewardsFn(ctx, storeID)
	}
	return nil, nil
}

func (s LoyaltyFacadeStub) IssueRedemption(ctx context.Context, customerID, storeID, rewardID string) (*model.Issuance, error) {
	if s.IssueFn != nil {
		return s.IssueFn(ctx, customerID, storeID, rewardID)
	}
	return SampleIssuance(customerID, storeID, rewardID), nil
}

func (s LoyaltyFacadeStub) RegenerateProof(ctx context.Context, customerID string, id uuid.UUID) (*model.Issuance, error) {
	if s.RegenerateFn != nil {
		return s.RegenerateFn(ctx, customerID, id)
	}
	return SampleIssuance(customerID, "store-1", "reward-1"), nil
}

func (s LoyaltyFacadeStub) Redemptions(ctx context.Context, customerID, storeID string) ([]model.Redemption, error) {
	if s.RedemptionsFn != nil {
		return s.RedemptionsFn(ctx, customerID, storeID)
	}
	return nil, nil
}

func (s LoyaltyFacadeStub) Redemption(ctx context.Context, customerID string, id uuid.UUID) (*model.Issuance, error) {
	if s.RedemptionFn != nil {
		return s.RedemptionFn(ctx, customerID, id)
	}
	return nil, domainErrors.ErrNotFound
}

func (s LoyaltyFacadeStub) ValidateRedemption(ctx context.Context, req usecase.ValidationRequest) (*model.ValidationResult, error) {
	if s.ValidateFn != nil {
		return s.ValidateFn(ctx, req)
	}
	issuance := SampleIssuance("customer-1", req.StoreID, "reward-1")
	issuance.Redemption.Complete(FixedTime)
	issuance.Proof.Consume(FixedTime, req.Metadata)
	return &model.ValidationResult{Redemption: issuance.Redemption, Proof: issuance.Proof}, nil
}

func (s LoyaltyFacadeStub) CancelRedemption(ctx context.Context, req usecase.CancelRequest) (*model.Redemption, error) {
	if s.CancelFn != nil {
		return s.CancelFn(ctx, req)
	}
	issuance := SampleIssuance("customer-1", req.StoreID, "reward-1")
	issuance.Redemption.ID = req.RedemptionID
	_ = issuance.Redemption.Cancel(FixedTime)
	return &issuance.Redemption, nil
}

func (s LoyaltyFacadeStub) HealthCheck(ctx context.Context) error {
	if s.HealthFn != nil {
		return s.HealthFn(ctx)
	}
	return nil
}

// SampleIssuance builds a pending redemption with a fresh proof.
func SampleIssuance(customerID, storeID, rewardID string) *model.Issuance {
	id := uuid.New()
	return &model.Issuance{
		Redemption: model.Redemption{
			ID:               id,
			CustomerID:       customerID,
			StoreID:          storeID,
			RewardID:         rewardID,
			CostPoints:       100,
			Status:           model.RedemptionPending,
			ValidationStatus: model.ValidationPending,
			CreatedAt:        FixedTime,
			UpdatedAt:        FixedTime,
		},
		Proof: model.Proof{
			ID:               uuid.New(),
			RedemptionID:     id,
			StoreID:          storeID,
			QRPayload:        "payload",
			VerificationCode: "ABCD-EFGH2345",
			IssuedAt:         FixedTime,
			ExpiresAt:        FixedTime.Add(24 * time.Hour),
		},
	}
}

// NotifierStub records delivered events.
type NotifierStub struct {
	SendFn func(context.Context, model.Event) error

	mu     sync.Mutex
	events []model.Event
}

// Send records the event unless SendFn fails it.
func (s *NotifierStub) Send(ctx context.Context, event model.Event) error {
	if s.SendFn != nil {
		if err := s.SendFn(ctx, event); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of delivered events.
func (s *NotifierStub) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event(nil), s.events...)
}

// PublisherStub collects published events synchronously.
type PublisherStub struct {
	mu     sync.Mutex
	events []model.Event
}

// Publish records the event.
func (p *PublisherStub) Publish(event model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a snapshot of published events.
func (p *PublisherStub) Events() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Event(nil), p.events...)
}

// ExpirerStub returns queued sweep results.
type ExpirerStub struct {
	Results []int
	Err     error

	mu    sync.Mutex
	calls int
}

// ExpireStale returns the next queued result, then zero.
func (s *ExpirerStub) ExpireStale(ctx context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.Err != nil {
		return 0, s.Err
	}
	if len(s.Results) == 0 {
		return 0, nil
	}
	n := s.Results[0]
	s.Results = s.Results[1:]
	return n, nil
}

// Calls reports how many sweeps ran.
func (s *ExpirerStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
