package dto

// RewardRequest is a catalog entry pushed by the catalog owner.
type RewardRequest struct {
	StoreID                string `json:"store_id"`
	Title                  string `json:"title"`
	CostPoints             int64  `json:"cost_points"`
	Quantity               *int64 `json:"quantity,omitempty"`
	Active                 *bool  `json:"active,omitempty"`
	RedemptionValidityDays int    `json:"redemption_validity_days,omitempty"`
}

// RewardResponse describes a mirrored catalog entry.
type RewardResponse struct {
	ID                     string `json:"id"`
	StoreID                string `json:"store_id"`
	Title                  string `json:"title"`
	CostPoints             int64  `json:"cost_points"`
	Quantity               *int64 `json:"quantity,omitempty"`
	Active                 bool   `json:"active"`
	RedemptionValidityDays int    `json:"redemption_validity_days"`
}
