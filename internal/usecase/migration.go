package usecase

import (
	"context"
	"log/slog"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
)

// MigrationUseCase moves pending credits of a tax ID onto a registered customer.
type MigrationUseCase struct {
	pending repository.PendingCreditRepository
	taxIDs  TaxIDPolicy
	logger  *slog.Logger
	clock   Clock
}

// NewMigrationUseCase constructs MigrationUseCase.
func NewMigrationUseCase(pending repository.PendingCreditRepository, taxIDs TaxIDPolicy, logger *slog.Logger, clock Clock) *MigrationUseCase {
	return &MigrationUseCase{pending: pending, taxIDs: taxIDs, logger: logger, clock: clock}
}

// Migrate links the tax ID to the customer and migrates every store as its own unit.
// Store failures are reported, not returned; running it again only picks up what is left.
func (u *MigrationUseCase) Migrate(ctx context.Context, taxID, customerID string) (*model.MigrationReport, error) {
	if customerID == "" {
		return nil, domainErrors.ErrMissingIdentity
	}
	taxID, err := u.taxIDs.Normalize(taxID)
	if err != nil {
		return nil, err
	}

	now := u.clock()
	if err := u.pending.LinkIdentity(ctx, model.IdentityLink{TaxID: taxID, CustomerID: customerID, LinkedAt: now}); err != nil {
		return nil, err
	}

	stores, err := u.pending.PendingStores(ctx, taxID)
	if err != nil {
		return nil, err
	}

	report := &model.MigrationReport{TaxID: taxID, CustomerID: customerID}
	for _, storeID := range stores {
		outcome, err := u.pending.MigrateStore(ctx, taxID, customerID, storeID, now)
		if err != nil {
			u.logger.Error("store migration failed",
				slog.String("customer_id", customerID),
				slog.String("store_id", storeID),
				slog.String("error", err.Error()))
			outcome.StoreID = storeID
			outcome.Success = false
			outcome.Err = err
		}
		report.Stores = append(report.Stores, outcome)
	}

	u.logger.Info("pending credits migrated",
		slog.String("customer_id", customerID),
		slog.Int("stores", len(report.Stores)),
		slog.Int64("points", report.MigratedPoints()))
	return report, nil
}
