package model

import (
	"fmt"
	"math"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
)

// DefaultRedemptionValidityDays applies when the catalog leaves validity unset.
const DefaultRedemptionValidityDays = 30

// Reward mirrors a catalog item that customers can redeem points for.
type Reward struct {
	ID                     string
	StoreID                string
	Title                  string
	CostPoints             int64
	Quantity               *int64
	Active                 bool
	RedemptionValidityDays int
}

// CheckAvailable verifies the reward can be issued right now.
func (r Reward) CheckAvailable() error {
	if !r.Active {
		return domainErrors.ErrRewardUnavailable
	}
	if r.Quantity != nil && *r.Quantity <= 0 {
		return domainErrors.ErrRewardUnavailable
	}
	return nil
}

// ValidityDays returns the redemption validity with the default applied.
func (r Reward) ValidityDays() int {
	if r.RedemptionValidityDays <= 0 {
		return DefaultRedemptionValidityDays
	}
	return r.RedemptionValidityDays
}

// PointingRule describes how a store converts purchases into points. Rates are expressed in
// milli-points per currency unit and amounts in cents so that point computation is exact.
type PointingRule struct {
	StoreID            string
	PointsPerUnitMilli int64
	MinPurchaseCents   int64
	PointsValidityDays int
}

// Points computes floor(amount * points_per_unit) when the purchase reaches the minimum.
// Amounts whose product with the rate does not fit in int64 are rejected.
func (r PointingRule) Points(amountCents int64) (int64, error) {
	if amountCents <= 0 || amountCents < r.MinPurchaseCents || r.PointsPerUnitMilli <= 0 {
		return 0, nil
	}
	if amountCents > math.MaxInt64/r.PointsPerUnitMilli {
		return 0, fmt.Errorf("%w: amount %d too large for rate %d", domainErrors.ErrInvalidAmount, amountCents, r.PointsPerUnitMilli)
	}
	return amountCents * r.PointsPerUnitMilli / 100_000, nil
}
