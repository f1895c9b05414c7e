package model

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a ledger movement.
type TransactionType string

const (
	TransactionAward      TransactionType = "award"
	TransactionRedeem     TransactionType = "redeem"
	TransactionExpire     TransactionType = "expire"
	TransactionAdjustment TransactionType = "adjustment"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionAward, TransactionRedeem, TransactionExpire, TransactionAdjustment:
		return true
	}
	return false
}

// Transaction is an immutable ledger entry. Amount is a magnitude for award, redeem and
// expire entries and a signed delta for adjustments.
type Transaction struct {
	ID         uuid.UUID
	CustomerID *string
	TaxID      *string
	StoreID    string
	Type       TransactionType
	Amount     int64
	Reference  string
	Metadata   map[string]any
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}

// Signed returns the entry's effect on the owner's total balance.
func (t Transaction) Signed() int64 {
	switch t.Type {
	case TransactionRedeem, TransactionExpire:
		return -t.Amount
	default:
		return t.Amount
	}
}

// AvailableDelta returns the change applied to available points when the entry is booked
// through apply_delta. Redeem entries consume reserved points instead.
func (t Transaction) AvailableDelta() int64 {
	if t.Type == TransactionRedeem {
		return 0
	}
	return t.Signed()
}

// Customer returns the customer id or an empty string.
func (t Transaction) Customer() string {
	if t.CustomerID == nil {
		return ""
	}
	return *t.CustomerID
}
