package usecase

import (
	"context"
	"log/slog"
	"strings"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Adjustment is an operator-driven signed correction.
type Adjustment struct {
	CustomerID string
	StoreID    string
	Delta      int64
	Reason     string
	Operator   string
}

// LedgerUseCase exposes balances, history and corrections.
type LedgerUseCase struct {
	ledger repository.LedgerRepository
	logger *slog.Logger
}

// NewLedgerUseCase constructs LedgerUseCase.
func NewLedgerUseCase(ledger repository.LedgerRepository, logger *slog.Logger) *LedgerUseCase {
	return &LedgerUseCase{ledger: ledger, logger: logger}
}

// Balance returns the balance of a customer at a store; zeros when nothing was booked yet.
func (u *LedgerUseCase) Balance(ctx context.Context, customerID, storeID string) (*model.Balance, error) {
	if customerID == "" || storeID == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	return u.ledger.GetBalance(ctx, customerID, storeID)
}

// History returns most recent transactions first.
func (u *LedgerUseCase) History(ctx context.Context, customerID, storeID string, limit int) ([]model.Transaction, error) {
	if customerID == "" || storeID == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	return u.ledger.ListTransactions(ctx, customerID, storeID, limit)
}

// Adjust books a signed adjustment transaction.
func (u *LedgerUseCase) Adjust(ctx context.Context, adj Adjustment) (*model.Balance, error) {
	if adj.CustomerID == "" || adj.StoreID == "" || strings.TrimSpace(adj.Reason) == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	if adj.Delta == 0 {
		return nil, domainErrors.ErrInvalidAmount
	}

	owner := adj.CustomerID
	balance, err := u.ledger.ApplyDelta(ctx, model.Transaction{
		CustomerID: &owner,
		StoreID:    adj.StoreID,
		Type:       model.TransactionAdjustment,
		Amount:     adj.Delta,
		Reference:  "adjustment",
		Metadata:   map[string]any{"reason": adj.Reason, "operator": adj.Operator},
	})
	if err != nil {
		u.logger.Warn("adjustment rejected",
			slog.String("customer_id", adj.CustomerID),
			slog.String("store_id", adj.StoreID),
			slog.Int64("delta", adj.Delta),
			slog.String("error", err.Error()))
		return nil, err
	}
	return balance, nil
}

// Reconcile compares the transaction log with the cached balance.
func (u *LedgerUseCase) Reconcile(ctx context.Context, customerID, storeID string) (*model.Reconciliation, error) {
	if customerID == "" || storeID == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	sum, err := u.ledger.SumFor(ctx, model.Owner{CustomerID: customerID}, storeID)
	if err != nil {
		return nil, err
	}
	balance, err := u.ledger.GetBalance(ctx, customerID, storeID)
	if err != nil {
		return nil, err
	}
	result := &model.Reconciliation{
		CustomerID: customerID,
		StoreID:    storeID,
		LedgerSum:  sum,
		Available:  balance.Available,
		Reserved:   balance.Reserved,
	}
	if !result.Consistent() {
		u.logger.Error("ledger drift detected",
			slog.String("customer_id", customerID),
			slog.String("store_id", storeID),
			slog.Int64("ledger_sum", sum),
			slog.Int64("balance_total", balance.Total()))
	}
	return result, nil
}
