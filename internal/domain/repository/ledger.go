package repository

import (
	"context"

	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

// LedgerRepository manages balances together with the transaction log. Every mutating call is
// one atomic unit serialized per (customer, store).
type LedgerRepository interface {
	GetBalance(ctx context.Context, customerID, storeID string) (*model.Balance, error)
	ApplyDelta(ctx context.Context, tx model.Transaction) (*model.Balance, error)
	Reserve(ctx context.Context, customerID, storeID string, amount int64) (*model.Balance, error)
	ReleaseReservation(ctx context.Context, customerID, storeID string, amount int64) (*model.Balance, error)
	ConsumeReservation(ctx context.Context, tx model.Transaction) (*model.Balance, error)
	SumFor(ctx context.Context, owner model.Owner, storeID string) (int64, error)
	ListTransactions(ctx context.Context, customerID, storeID string, limit int) ([]model.Transaction, error)
}
