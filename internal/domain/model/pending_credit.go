package model

import (
	"time"

	"github.com/google/uuid"
)

// PendingCredit holds points owed to a purchaser known only by tax ID.
type PendingCredit struct {
	ID                   uuid.UUID
	TaxID                string
	StoreID              string
	Amount               int64
	Reference            string
	IssuedAt             time.Time
	ExpiresAt            *time.Time
	Migrated             bool
	MigratedToCustomerID *string
	MigratedAt           *time.Time
	Metadata             map[string]any
}

// AwardFor converts the credit into an award entry for the customer the tax ID is linked to.
func (c PendingCredit) AwardFor(customerID string) Transaction {
	metadata := make(map[string]any, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		metadata[k] = v
	}
	metadata["tax_id"] = c.TaxID
	return Transaction{
		ID:         uuid.New(),
		CustomerID: &customerID,
		StoreID:    c.StoreID,
		Type:       TransactionAward,
		Amount:     c.Amount,
		Reference:  c.Reference,
		Metadata:   metadata,
		CreatedAt:  c.IssuedAt,
		ExpiresAt:  c.ExpiresAt,
	}
}

// IdentityLink records that a tax ID belongs to a registered customer.
type IdentityLink struct {
	TaxID      string
	CustomerID string
	LinkedAt   time.Time
}

// StoreMigration is the outcome of migrating one store's pending credits.
type StoreMigration struct {
	StoreID string
	Success bool
	Credits int
	Points  int64
	Err     error
}

// MigrationReport aggregates per-store outcomes of a tax ID migration.
type MigrationReport struct {
	TaxID      string
	CustomerID string
	Stores     []StoreMigration
}

// MigratedPoints sums points moved by successful store units.
func (r MigrationReport) MigratedPoints() int64 {
	var total int64
	for _, s := range r.Stores {
		if s.Success {
			total += s.Points
		}
	}
	return total
}

// Failed reports whether any store unit failed.
func (r MigrationReport) Failed() bool {
	for _, s := range r.Stores {
		if !s.Success {
			return true
		}
	}
	return false
}
