package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

// RedemptionRepository persists redemptions and their proofs.
type RedemptionRepository interface {
	Issue(ctx context.Context, issuance model.Issuance) error
	Validate(ctx context.Context, lookup model.ProofLookup, attempt model.ValidationAttempt) (*model.ValidationResult, error)
	Cancel(ctx context.Context, redemptionID uuid.UUID, storeID string, at time.Time, meta map[string]any) (*model.Redemption, error)
	ReplaceProof(ctx context.Context, customerID string, proof model.Proof) (*model.Redemption, error)
	GetRedemption(ctx context.Context, id uuid.UUID) (*model.Redemption, error)
	CurrentProof(ctx context.Context, redemptionID uuid.UUID) (*model.Proof, error)
	ListByCustomer(ctx context.Context, customerID, storeID string) ([]model.Redemption, error)
	ExpireStale(ctx context.Context, now time.Time, limit int) (int, error)
}
