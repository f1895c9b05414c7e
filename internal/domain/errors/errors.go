package errors

import "errors"

// Validation errors: malformed input, never retried.
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingIdentity = errors.New("missing identity")
	ErrInvalidTaxID    = errors.New("invalid tax id")
	ErrInvalidRequest  = errors.New("invalid request")
)

// Business rule rejections.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRewardUnavailable   = errors.New("reward unavailable")
	ErrRewardNotFound      = errors.New("reward not found")
	ErrRuleNotFound        = errors.New("pointing rule not found")
	ErrIdentityConflict    = errors.New("tax id linked to another customer")
)

// Redemption validation rejections.
var (
	ErrStoreMismatch    = errors.New("store mismatch")
	ErrAlreadyUsed      = errors.New("proof already used")
	ErrExpired          = errors.New("proof expired")
	ErrNotFound         = errors.New("not found")
	ErrRedemptionClosed = errors.New("redemption closed")
	ErrProofStillValid  = errors.New("proof still valid")
)

// Infrastructure errors.
var (
	ErrAlreadyExists       = errors.New("already exists")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrPersistence         = errors.New("persistence error")
	ErrInvalidToken        = errors.New("invalid token")
)

// Code returns a stable machine-readable identifier for known errors.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidAmount, "invalid_amount"},
	{ErrMissingIdentity, "missing_identity"},
	{ErrInvalidTaxID, "invalid_tax_id"},
	{ErrInvalidRequest, "invalid_request"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrRewardUnavailable, "reward_unavailable"},
	{ErrRewardNotFound, "reward_not_found"},
	{ErrRuleNotFound, "rule_not_found"},
	{ErrIdentityConflict, "identity_conflict"},
	{ErrStoreMismatch, "store_mismatch"},
	{ErrAlreadyUsed, "already_used"},
	{ErrExpired, "expired"},
	{ErrNotFound, "not_found"},
	{ErrRedemptionClosed, "redemption_closed"},
	{ErrProofStillValid, "proof_still_valid"},
	{ErrAlreadyExists, "already_exists"},
	{ErrConcurrencyConflict, "concurrency_conflict"},
	{ErrPersistence, "persistence"},
	{ErrInvalidToken, "invalid_token"},
}
