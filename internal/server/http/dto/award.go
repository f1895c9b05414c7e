package dto

// AwardRequest is a validated purchase pushed by the intake collaborator.
type AwardRequest struct {
	AmountCents int64  `json:"amount_cents"`
	StoreID     string `json:"store_id"`
	CustomerID  string `json:"customer_id,omitempty"`
	TaxID       string `json:"tax_id,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// Award outcomes.
const (
	AwardCredited = "credited"
	AwardPending  = "pending"
	AwardNone     = "none"
)

// AwardResponse reports where awarded points went.
type AwardResponse struct {
	Points          int64            `json:"points"`
	Status          string           `json:"status"`
	TransactionID   string           `json:"transaction_id,omitempty"`
	PendingCreditID string           `json:"pending_credit_id,omitempty"`
	Balance         *BalanceResponse `json:"balance,omitempty"`
}

// MigrationRequest links a tax ID to a customer and moves its pending credits.
type MigrationRequest struct {
	TaxID      string `json:"tax_id"`
	CustomerID string `json:"customer_id"`
}

// StoreMigrationResponse is the outcome of one store unit.
type StoreMigrationResponse struct {
	StoreID string `json:"store_id"`
	Success bool   `json:"success"`
	Credits int    `json:"credits"`
	Points  int64  `json:"points"`
	Error   string `json:"error,omitempty"`
}

// MigrationResponse aggregates per-store outcomes.
type MigrationResponse struct {
	TaxID          string                   `json:"tax_id"`
	CustomerID     string                   `json:"customer_id"`
	MigratedPoints int64                    `json:"migrated_points"`
	Stores         []StoreMigrationResponse `json:"stores"`
}
