package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	pkgAuth "github.com/polkiloo/loyaltyledger/internal/pkg/auth"
	"github.com/polkiloo/loyaltyledger/internal/usecase"
)

// LedgerFacade exposes balances, history and corrections.
type LedgerFacade interface {
	Balance(ctx context.Context, customerID, storeID string) (*model.Balance, error)
	History(ctx context.Context, customerID, storeID string, limit int) ([]model.Transaction, error)
	Adjust(ctx context.Context, adj usecase.Adjustment) (*model.Balance, error)
	Reconcile(ctx context.Context, customerID, storeID string) (*model.Reconciliation, error)
}

// AwardFacade exposes purchase awards and identity migration.
type AwardFacade interface {
	Award(ctx context.Context, purchase model.Purchase) (*model.AwardResult, error)
	Migrate(ctx context.Context, taxID, customerID string) (*model.MigrationReport, error)
}

// CatalogFacade mirrors the reward catalog.
type CatalogFacade interface {
	UpsertReward(ctx context.Context, reward model.Reward) (*model.Reward, error)
	Rewards(ctx context.Context, storeID string) ([]model.Reward, error)
}

// RedemptionFacade covers the customer side of redemptions.
type RedemptionFacade interface {
	IssueRedemption(ctx context.Context, customerID, storeID, rewardID string) (*model.Issuance, error)
	RegenerateProof(ctx context.Context, customerID string, redemptionID uuid.UUID) (*model.Issuance, error)
	Redemptions(ctx context.Context, customerID, storeID string) ([]model.Redemption, error)
	Redemption(ctx context.Context, customerID string, redemptionID uuid.UUID) (*model.Issuance, error)
}

// ValidationFacade covers the store operator side of redemptions.
type ValidationFacade interface {
	ValidateRedemption(ctx context.Context, req usecase.ValidationRequest) (*model.ValidationResult, error)
	CancelRedemption(ctx context.Context, req usecase.CancelRequest) (*model.Redemption, error)
}

// HealthFacade reports dependency health.
type HealthFacade interface {
	HealthCheck(ctx context.Context) error
}

// LoyaltyFacade aggregates the full set of operations used across handlers.
type LoyaltyFacade interface {
	ParseToken(token string) (pkgAuth.Principal, error)
	LedgerFacade
	AwardFacade
	CatalogFacade
	RedemptionFacade
	ValidationFacade
	HealthFacade
}
