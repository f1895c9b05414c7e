package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/loyaltyledger/internal/adapter/rules"
	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
)

// AwardUseCase converts purchases into points or pending credits.
type AwardUseCase struct {
	ledger  repository.LedgerRepository
	pending repository.PendingCreditRepository
	rules   rules.Provider
	taxIDs  TaxIDPolicy
	logger  *slog.Logger
	clock   Clock
}

// NewAwardUseCase constructs AwardUseCase.
func NewAwardUseCase(ledger repository.LedgerRepository, pending repository.PendingCreditRepository, provider rules.Provider, taxIDs TaxIDPolicy, logger *slog.Logger, clock Clock) *AwardUseCase {
	return &AwardUseCase{ledger: ledger, pending: pending, rules: provider, taxIDs: taxIDs, logger: logger, clock: clock}
}

// Award applies the store's pointing rule. A registered customer is credited directly; a
// bare tax ID is credited to its linked customer or parked as a pending credit.
func (u *AwardUseCase) Award(ctx context.Context, purchase model.Purchase) (*model.AwardResult, error) {
	if purchase.AmountCents <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	if purchase.StoreID == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	if purchase.CustomerID == "" {
		if purchase.TaxID == "" {
			return nil, domainErrors.ErrMissingIdentity
		}
		taxID, err := u.taxIDs.Normalize(purchase.TaxID)
		if err != nil {
			return nil, err
		}
		purchase.TaxID = taxID
	}

	rule, err := u.rules.Rule(ctx, purchase.StoreID)
	if err != nil {
		return nil, err
	}
	points, err := rule.Points(purchase.AmountCents)
	if err != nil {
		return nil, err
	}
	if points == 0 {
		return &model.AwardResult{}, nil
	}

	now := u.clock()
	var expiresAt *time.Time
	if rule.PointsValidityDays > 0 {
		exp := now.AddDate(0, 0, rule.PointsValidityDays)
		expiresAt = &exp
	}
	metadata := map[string]any{"purchase_amount_cents": purchase.AmountCents}

	if purchase.CustomerID == "" {
		return u.creditTaxID(ctx, purchase, points, now, expiresAt, metadata)
	}
	customerID := purchase.CustomerID

	entry := model.Transaction{
		ID:         uuid.New(),
		CustomerID: &customerID,
		StoreID:    purchase.StoreID,
		Type:       model.TransactionAward,
		Amount:     points,
		Reference:  purchase.Reference,
		Metadata:   metadata,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}
	balance, err := u.ledger.ApplyDelta(ctx, entry)
	if err != nil {
		return nil, err
	}
	u.logger.Info("points awarded",
		slog.String("customer_id", customerID),
		slog.String("store_id", purchase.StoreID),
		slog.Int64("points", points))
	return &model.AwardResult{Points: points, Transaction: &entry, Balance: balance}, nil
}

// creditTaxID hands the credit to storage, which books it for the linked customer when the
// tax ID is linked at commit time and parks it otherwise.
func (u *AwardUseCase) creditTaxID(ctx context.Context, purchase model.Purchase, points int64, now time.Time, expiresAt *time.Time, metadata map[string]any) (*model.AwardResult, error) {
	credit := model.PendingCredit{
		ID:        uuid.New(),
		TaxID:     purchase.TaxID,
		StoreID:   purchase.StoreID,
		Amount:    points,
		Reference: purchase.Reference,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		Metadata:  metadata,
	}
	result, err := u.pending.CreatePendingCredit(ctx, credit)
	if err != nil {
		return nil, err
	}
	if result.Transaction != nil {
		u.logger.Info("points awarded to linked customer",
			slog.String("customer_id", result.Transaction.Customer()),
			slog.String("store_id", purchase.StoreID),
			slog.Int64("points", points))
		return result, nil
	}
	u.logger.Info("pending credit recorded",
		slog.String("store_id", purchase.StoreID),
		slog.Int64("points", points))
	return result, nil
}
