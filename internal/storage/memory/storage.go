// Package memory is a process-local storage driver used when no database is configured.
// All units run under one mutex, which trivially serializes every (customer, store) pair.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
)

type balanceKey struct {
	customerID string
	storeID    string
}

type codeKey struct {
	storeID string
	code    string
}

// Storage keeps the whole ledger in maps guarded by a single mutex.
type Storage struct {
	mu sync.Mutex

	balances     map[balanceKey]*model.Balance
	transactions []model.Transaction
	pending      []*model.PendingCredit
	links        map[string]model.IdentityLink
	rewards      map[string]model.Reward
	redemptions  map[uuid.UUID]*model.Redemption
	proofs       map[uuid.UUID]*model.Proof
	codes        map[codeKey]uuid.UUID

	now func() time.Time
}

// New creates an empty in-memory storage.
func New() *Storage {
	return &Storage{
		balances:    make(map[balanceKey]*model.Balance),
		links:       make(map[string]model.IdentityLink),
		rewards:     make(map[string]model.Reward),
		redemptions: make(map[uuid.UUID]*model.Redemption),
		proofs:      make(map[uuid.UUID]*model.Proof),
		codes:       make(map[codeKey]uuid.UUID),
		now:         time.Now,
	}
}

type ledgerRepository struct{ storage *Storage }

type pendingCreditRepository struct{ storage *Storage }

type rewardRepository struct{ storage *Storage }

type redemptionRepository struct{ storage *Storage }

func (s *Storage) Ledger() repository.LedgerRepository {
	return &ledgerRepository{storage: s}
}

func (s *Storage) PendingCredits() repository.PendingCreditRepository {
	return &pendingCreditRepository{storage: s}
}

func (s *Storage) Rewards() repository.RewardRepository {
	return &rewardRepository{storage: s}
}

func (s *Storage) Redemptions() repository.RedemptionRepository {
	return &redemptionRepository{storage: s}
}

// HealthCheck always succeeds unless the context is done.
func (s *Storage) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Storage) Close() {}

// balance returns the live balance row, creating it when missing. Callers hold mu.
func (s *Storage) balance(customerID, storeID string) *model.Balance {
	key := balanceKey{customerID: customerID, storeID: storeID}
	b, ok := s.balances[key]
	if !ok {
		b = &model.Balance{CustomerID: customerID, StoreID: storeID, UpdatedAt: s.now()}
		s.balances[key] = b
	}
	return b
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneTransaction(t model.Transaction) model.Transaction {
	t.Metadata = cloneMap(t.Metadata)
	return t
}

func cloneRedemption(r *model.Redemption) model.Redemption {
	out := *r
	out.Metadata = cloneMap(r.Metadata)
	return out
}

func cloneProof(p *model.Proof) model.Proof {
	out := *p
	if p.StoreValidation != nil {
		meta := *p.StoreValidation
		out.StoreValidation = &meta
	}
	return out
}
