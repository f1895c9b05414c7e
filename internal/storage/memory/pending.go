package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

func (r *pendingCreditRepository) CreatePendingCredit(ctx context.Context, credit model.PendingCredit) (*model.AwardResult, error) {
	if credit.Amount <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if credit.ID == uuid.Nil {
		credit.ID = uuid.New()
	}
	if credit.IssuedAt.IsZero() {
		credit.IssuedAt = now
	}

	if link, ok := s.links[credit.TaxID]; ok {
		entry := credit.AwardFor(link.CustomerID)
		b := s.balance(link.CustomerID, credit.StoreID)
		s.transactions = append(s.transactions, cloneTransaction(entry))
		b.Available += credit.Amount
		b.UpdatedAt = now
		out := *b
		return &model.AwardResult{Points: credit.Amount, Transaction: &entry, Balance: &out}, nil
	}

	for _, c := range s.pending {
		if c.ID == credit.ID {
			return nil, domainErrors.ErrAlreadyExists
		}
	}
	stored := credit
	stored.Metadata = cloneMap(credit.Metadata)
	s.pending = append(s.pending, &stored)
	return &model.AwardResult{Points: credit.Amount, PendingCredit: &credit}, nil
}

func (r *pendingCreditRepository) ListPending(ctx context.Context, taxID string) ([]model.PendingCredit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []model.PendingCredit
	for _, c := range s.pending {
		if c.TaxID == taxID && !c.Migrated {
			out := *c
			out.Metadata = cloneMap(c.Metadata)
			result = append(result, out)
		}
	}
	return result, nil
}

func (r *pendingCreditRepository) PendingStores(ctx context.Context, taxID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var stores []string
	for _, c := range s.pending {
		if c.TaxID != taxID || c.Migrated {
			continue
		}
		if _, ok := seen[c.StoreID]; ok {
			continue
		}
		seen[c.StoreID] = struct{}{}
		stores = append(stores, c.StoreID)
	}
	sort.Strings(stores)
	return stores, nil
}

func (r *pendingCreditRepository) LinkIdentity(ctx context.Context, link model.IdentityLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.links[link.TaxID]; ok {
		if existing.CustomerID != link.CustomerID {
			return domainErrors.ErrIdentityConflict
		}
		return nil
	}
	if link.LinkedAt.IsZero() {
		link.LinkedAt = s.now()
	}
	s.links[link.TaxID] = link
	return nil
}

func (r *pendingCreditRepository) MigrateStore(ctx context.Context, taxID, customerID, storeID string, at time.Time) (model.StoreMigration, error) {
	outcome := model.StoreMigration{StoreID: storeID}
	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	var credits []*model.PendingCredit
	for _, c := range s.pending {
		if c.TaxID == taxID && c.StoreID == storeID && !c.Migrated {
			credits = append(credits, c)
		}
	}
	if len(credits) > 0 {
		b := s.balance(customerID, storeID)
		for _, c := range credits {
			owner := customerID
			s.transactions = append(s.transactions, model.Transaction{
				ID:         uuid.New(),
				CustomerID: &owner,
				StoreID:    storeID,
				Type:       model.TransactionAward,
				Amount:     c.Amount,
				Reference:  c.Reference,
				Metadata:   map[string]any{"pending_credit_id": c.ID.String(), "tax_id": taxID},
				CreatedAt:  at,
				ExpiresAt:  c.ExpiresAt,
			})
			migratedAt := at
			c.Migrated = true
			c.MigratedToCustomerID = &owner
			c.MigratedAt = &migratedAt
			outcome.Points += c.Amount
		}
		b.Available += outcome.Points
		b.UpdatedAt = at
	}
	outcome.Credits = len(credits)
	outcome.Success = true
	return outcome, nil
}
