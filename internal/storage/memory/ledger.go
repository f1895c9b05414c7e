package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

func (r *ledgerRepository) GetBalance(ctx context.Context, customerID, storeID string) (*model.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[balanceKey{customerID: customerID, storeID: storeID}]
	if !ok {
		return &model.Balance{CustomerID: customerID, StoreID: storeID}, nil
	}
	out := *b
	return &out, nil
}

func (r *ledgerRepository) ApplyDelta(ctx context.Context, entry model.Transaction) (*model.Balance, error) {
	if entry.CustomerID == nil || entry.Type == model.TransactionRedeem || !entry.Type.Valid() {
		return nil, domainErrors.ErrInvalidRequest
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prepareEntry(&entry, now)
	b := s.balance(*entry.CustomerID, entry.StoreID)
	next := b.Available + entry.AvailableDelta()
	if next < 0 {
		return nil, domainErrors.ErrInsufficientBalance
	}
	s.transactions = append(s.transactions, cloneTransaction(entry))
	b.Available = next
	b.UpdatedAt = now
	out := *b
	return &out, nil
}

func (r *ledgerRepository) Reserve(ctx context.Context, customerID, storeID string, amount int64) (*model.Balance, error) {
	if amount <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	return r.moveReserved(ctx, customerID, storeID, func(b *model.Balance) error {
		if b.Available < amount {
			return domainErrors.ErrInsufficientBalance
		}
		b.Available -= amount
		b.Reserved += amount
		return nil
	})
}

func (r *ledgerRepository) ReleaseReservation(ctx context.Context, customerID, storeID string, amount int64) (*model.Balance, error) {
	if amount <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	return r.moveReserved(ctx, customerID, storeID, func(b *model.Balance) error {
		if b.Reserved < amount {
			return fmt.Errorf("%w: reserved %d, release %d", domainErrors.ErrInsufficientBalance, b.Reserved, amount)
		}
		b.Reserved -= amount
		b.Available += amount
		return nil
	})
}

func (r *ledgerRepository) moveReserved(ctx context.Context, customerID, storeID string, apply func(*model.Balance) error) (*model.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.balance(customerID, storeID)
	next := *b
	if err := apply(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	*b = next
	return &next, nil
}

func (r *ledgerRepository) ConsumeReservation(ctx context.Context, entry model.Transaction) (*model.Balance, error) {
	if entry.CustomerID == nil || entry.Type != model.TransactionRedeem {
		return nil, domainErrors.ErrInvalidRequest
	}
	if entry.Amount <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prepareEntry(&entry, now)
	b, err := s.consumeReserved(entry, now)
	if err != nil {
		return nil, err
	}
	out := *b
	return &out, nil
}

// consumeReserved books a redeem entry against reserved points. Callers hold mu.
func (s *Storage) consumeReserved(entry model.Transaction, now time.Time) (*model.Balance, error) {
	b := s.balance(entry.Customer(), entry.StoreID)
	if b.Reserved < entry.Amount {
		return nil, fmt.Errorf("%w: reserved %d, consume %d", domainErrors.ErrInsufficientBalance, b.Reserved, entry.Amount)
	}
	s.transactions = append(s.transactions, cloneTransaction(entry))
	b.Reserved -= entry.Amount
	b.UpdatedAt = now
	return b, nil
}

func (r *ledgerRepository) SumFor(ctx context.Context, owner model.Owner, storeID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	switch {
	case owner.IsCustomer():
		for _, t := range s.transactions {
			if t.Customer() == owner.CustomerID && t.StoreID == storeID {
				sum += t.Signed()
			}
		}
	case owner.TaxID != "":
		for _, c := range s.pending {
			if c.TaxID == owner.TaxID && c.StoreID == storeID && !c.Migrated {
				sum += c.Amount
			}
		}
	default:
		return 0, domainErrors.ErrMissingIdentity
	}
	return sum, nil
}

func (r *ledgerRepository) ListTransactions(ctx context.Context, customerID, storeID string, limit int) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []model.Transaction
	for _, t := range s.transactions {
		if t.Customer() == customerID && t.StoreID == storeID {
			result = append(result, cloneTransaction(t))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func prepareEntry(entry *model.Transaction, now time.Time) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
}
