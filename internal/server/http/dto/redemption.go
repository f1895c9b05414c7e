package dto

import "time"

// IssueRequest asks for a reward to be reserved.
type IssueRequest struct {
	StoreID  string `json:"store_id"`
	RewardID string `json:"reward_id"`
}

// RedemptionResponse describes a redemption.
type RedemptionResponse struct {
	ID               string     `json:"id"`
	CustomerID       string     `json:"customer_id"`
	StoreID          string     `json:"store_id"`
	RewardID         string     `json:"reward_id"`
	CostPoints       int64      `json:"cost_points"`
	Status           string     `json:"status"`
	ValidationStatus string     `json:"validation_status"`
	RedeemedAt       *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ProofResponse carries the two equivalent artifacts presented in store.
type ProofResponse struct {
	QRPayload        string    `json:"qr_payload"`
	VerificationCode string    `json:"verification_code"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// IssuanceResponse is a redemption together with its current proof.
type IssuanceResponse struct {
	Redemption RedemptionResponse `json:"redemption"`
	Proof      ProofResponse      `json:"proof"`
}

// ValidationRequest is an operator presenting either artifact.
type ValidationRequest struct {
	QRPayload string `json:"qr_payload,omitempty"`
	Code      string `json:"code,omitempty"`
	Location  string `json:"location,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// ValidationResponse confirms a consumed proof.
type ValidationResponse struct {
	RedemptionID string    `json:"redemption_id"`
	CustomerID   string    `json:"customer_id"`
	RewardID     string    `json:"reward_id"`
	CostPoints   int64     `json:"cost_points"`
	ValidatedAt  time.Time `json:"validated_at"`
}

// CancelRequest carries an optional cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}
