package repository

import (
	"context"
	"time"

	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

// PendingCreditRepository stores credits for unregistered purchasers and their migration.
type PendingCreditRepository interface {
	// CreatePendingCredit parks the credit, or books it for the linked customer when the
	// tax ID is already linked at commit time.
	CreatePendingCredit(ctx context.Context, credit model.PendingCredit) (*model.AwardResult, error)
	ListPending(ctx context.Context, taxID string) ([]model.PendingCredit, error)
	PendingStores(ctx context.Context, taxID string) ([]string, error)
	LinkIdentity(ctx context.Context, link model.IdentityLink) error
	MigrateStore(ctx context.Context, taxID, customerID, storeID string, at time.Time) (model.StoreMigration, error)
}
