package test

import (
	"context"
	"fmt"
	"sync"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
)

// CollidingRedemptions fails the first Collisions proof inserts with ErrAlreadyExists and
// delegates everything else to the wrapped repository.
type CollidingRedemptions struct {
	repository.RedemptionRepository
	Collisions int

	mu    sync.Mutex
	Codes []string
}

func (r *CollidingRedemptions) collide(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Codes = append(r.Codes, code)
	if r.Collisions > 0 {
		r.Collisions--
		return true
	}
	return false
}

// Issue records the minted code and collides while budget remains.
func (r *CollidingRedemptions) Issue(ctx context.Context, issuance model.Issuance) error {
	if r.collide(issuance.Proof.VerificationCode) {
		return fmt.Errorf("%w: idx_proofs_store_code", domainErrors.ErrAlreadyExists)
	}
	return r.RedemptionRepository.Issue(ctx, issuance)
}

// ReplaceProof records the minted code and collides while budget remains.
func (r *CollidingRedemptions) ReplaceProof(ctx context.Context, customerID string, proof model.Proof) (*model.Redemption, error) {
	if r.collide(proof.VerificationCode) {
		return nil, fmt.Errorf("%w: idx_proofs_store_code", domainErrors.ErrAlreadyExists)
	}
	return r.RedemptionRepository.ReplaceProof(ctx, customerID, proof)
}

// ConflictingLedger fails the first Conflicts ApplyDelta calls with ErrConcurrencyConflict.
type ConflictingLedger struct {
	repository.LedgerRepository
	Conflicts int
	Err       error

	mu    sync.Mutex
	Calls int
}

// ApplyDelta fails while the conflict budget remains, or always with Err when set.
func (l *ConflictingLedger) ApplyDelta(ctx context.Context, entry model.Transaction) (*model.Balance, error) {
	l.mu.Lock()
	l.Calls++
	fail := l.Conflicts > 0
	if fail {
		l.Conflicts--
	}
	l.mu.Unlock()

	if l.Err != nil {
		return nil, l.Err
	}
	if fail {
		return nil, fmt.Errorf("%w: serialization failure", domainErrors.ErrConcurrencyConflict)
	}
	return l.LedgerRepository.ApplyDelta(ctx, entry)
}

// FactoryStub reports a configurable health status and otherwise delegates.
type FactoryStub struct {
	repository.Factory
	HealthErr error
}

// HealthCheck returns HealthErr.
func (f FactoryStub) HealthCheck(context.Context) error {
	return f.HealthErr
}
