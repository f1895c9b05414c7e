package model

import "time"

// EventKind names notifications emitted after committed ledger mutations.
type EventKind string

const (
	EventPointsAwarded      EventKind = "points.awarded"
	EventCreditPending      EventKind = "points.pending"
	EventCreditsMigrated    EventKind = "points.migrated"
	EventRedemptionIssued   EventKind = "redemption.issued"
	EventRedemptionRedeemed EventKind = "redemption.validated"
	EventRedemptionCanceled EventKind = "redemption.cancelled"
)

// Event is a best-effort notification payload.
type Event struct {
	Kind       EventKind      `json:"kind"`
	CustomerID string         `json:"customer_id,omitempty"`
	TaxID      string         `json:"tax_id,omitempty"`
	StoreID    string         `json:"store_id,omitempty"`
	Points     int64          `json:"points,omitempty"`
	Reference  string         `json:"reference,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
