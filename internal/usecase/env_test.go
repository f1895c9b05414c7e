package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/polkiloo/loyaltyledger/internal/adapter/rules"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/pkg/proof"
	"github.com/polkiloo/loyaltyledger/internal/storage/memory"
	testhelpers "github.com/polkiloo/loyaltyledger/internal/test"
	"github.com/polkiloo/loyaltyledger/internal/usecase"
)

const validTaxID = "52998224725"

type env struct {
	storage *memory.Storage
	rules   *rules.StaticProvider
	taxIDs  usecase.TaxIDPolicy
	codec   *proof.Codec
	logger  *slog.Logger
	now     time.Time
}

func newEnv() *env {
	return &env{
		storage: memory.New(),
		rules:   rules.NewStaticProvider(&model.PointingRule{PointsPerUnitMilli: 1000}, nil),
		codec:   proof.NewCodec("test-secret"),
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:     testhelpers.FixedTime,
	}
}

func (e *env) clock() usecase.Clock {
	return func() time.Time { return e.now }
}

func (e *env) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *env) awards() *usecase.AwardUseCase {
	return usecase.NewAwardUseCase(e.storage.Ledger(), e.storage.PendingCredits(), e.rules, e.taxIDs, e.logger, e.clock())
}

func (e *env) issuance() *usecase.IssuanceUseCase {
	return usecase.NewIssuanceUseCase(e.storage.Rewards(), e.storage.Redemptions(), e.codec, proof.NewGenerator(), e.logger, e.clock())
}

func (e *env) validation() *usecase.ValidationUseCase {
	return usecase.NewValidationUseCase(e.storage.Redemptions(), e.codec, e.logger, e.clock())
}

// credit books points for a customer through the award path.
func (e *env) credit(t *testing.T, customerID, storeID string, points int64) {
	t.Helper()
	if _, err := e.awards().Award(context.Background(), model.Purchase{AmountCents: points * 100, StoreID: storeID, CustomerID: customerID}); err != nil {
		t.Fatalf("credit: %v", err)
	}
}

func (e *env) reward(t *testing.T, reward model.Reward) {
	t.Helper()
	if err := e.storage.Rewards().UpsertReward(context.Background(), reward); err != nil {
		t.Fatalf("upsert reward: %v", err)
	}
}

func (e *env) balance(t *testing.T, customerID, storeID string) *model.Balance {
	t.Helper()
	b, err := e.storage.Ledger().GetBalance(context.Background(), customerID, storeID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}
