package dto

import "time"

// BalanceResponse represents points held by a customer at a store.
type BalanceResponse struct {
	StoreID   string    `json:"store_id"`
	Available int64     `json:"available"`
	Reserved  int64     `json:"reserved"`
	Total     int64     `json:"total"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// TransactionResponse describes one ledger entry.
type TransactionResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Amount    int64          `json:"amount"`
	Reference string         `json:"reference,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

// AdjustmentRequest describes an operator correction.
type AdjustmentRequest struct {
	CustomerID string `json:"customer_id"`
	Delta      int64  `json:"delta"`
	Reason     string `json:"reason"`
}

// ReconciliationResponse compares the transaction log with the balance.
type ReconciliationResponse struct {
	CustomerID string `json:"customer_id"`
	StoreID    string `json:"store_id"`
	LedgerSum  int64  `json:"ledger_sum"`
	Available  int64  `json:"available"`
	Reserved   int64  `json:"reserved"`
	Consistent bool   `json:"consistent"`
}
