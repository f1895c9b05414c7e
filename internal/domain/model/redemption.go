package model

import (
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
)

// RedemptionStatus describes the business lifecycle of a redemption.
type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionCancelled RedemptionStatus = "cancelled"
	RedemptionExpired   RedemptionStatus = "expired"
	RedemptionValidated RedemptionStatus = "validated"
)

// Valid reports whether s is a known redemption status.
func (s RedemptionStatus) Valid() bool {
	switch s {
	case RedemptionPending, RedemptionCompleted, RedemptionCancelled, RedemptionExpired, RedemptionValidated:
		return true
	}
	return false
}

// Closed reports whether no further transition is possible.
func (s RedemptionStatus) Closed() bool {
	return s == RedemptionCompleted || s == RedemptionCancelled || s == RedemptionValidated
}

// ValidationStatus describes the in-store validation state machine.
type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "pending"
	ValidationValidated ValidationStatus = "validated"
	ValidationRejected  ValidationStatus = "rejected"
	ValidationExpired   ValidationStatus = "expired"
)

// Valid reports whether s is a known validation status.
func (s ValidationStatus) Valid() bool {
	switch s {
	case ValidationPending, ValidationValidated, ValidationRejected, ValidationExpired:
		return true
	}
	return false
}

// Terminal reports whether s is a final validation state.
func (s ValidationStatus) Terminal() bool {
	return s != ValidationPending
}

// Redemption is a customer's claim on a reward paid with reserved points.
type Redemption struct {
	ID               uuid.UUID
	CustomerID       string
	StoreID          string
	RewardID         string
	CostPoints       int64
	Status           RedemptionStatus
	ValidationStatus ValidationStatus
	RedeemedAt       *time.Time
	Metadata         map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Complete moves the redemption to its validated terminal state.
func (r *Redemption) Complete(at time.Time) {
	r.Status = RedemptionCompleted
	r.ValidationStatus = ValidationValidated
	r.RedeemedAt = &at
	r.UpdatedAt = at
}

// Expire marks a still pending redemption as expired.
func (r *Redemption) Expire(at time.Time) {
	if r.Status != RedemptionPending {
		return
	}
	r.Status = RedemptionExpired
	r.ValidationStatus = ValidationExpired
	r.UpdatedAt = at
}

// Cancel closes the redemption through the operator path.
func (r *Redemption) Cancel(at time.Time) error {
	if r.Status.Closed() {
		return domainErrors.ErrRedemptionClosed
	}
	if r.ValidationStatus == ValidationPending {
		r.ValidationStatus = ValidationRejected
	}
	r.Status = RedemptionCancelled
	r.UpdatedAt = at
	return nil
}

// Reopen returns an expired redemption to pending once a fresh proof is minted.
func (r *Redemption) Reopen(at time.Time) error {
	if r.Status != RedemptionPending && r.Status != RedemptionExpired {
		return domainErrors.ErrRedemptionClosed
	}
	r.Status = RedemptionPending
	r.ValidationStatus = ValidationPending
	r.UpdatedAt = at
	return nil
}

// ValidationMetadata captures who validated a proof and where.
type ValidationMetadata struct {
	ValidatedBy string `json:"validated_by"`
	Location    string `json:"location,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Proof is the single-use artifact pair presented in store.
type Proof struct {
	ID               uuid.UUID
	RedemptionID     uuid.UUID
	StoreID          string
	QRPayload        string
	VerificationCode string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	IsUsed           bool
	UsedAt           *time.Time
	ValidatedByStore bool
	ValidatedAt      *time.Time
	StoreValidation  *ValidationMetadata
	RevokedAt        *time.Time
}

// Consume marks the proof as used by the presenting store.
func (p *Proof) Consume(at time.Time, meta ValidationMetadata) {
	p.IsUsed = true
	p.UsedAt = &at
	p.ValidatedByStore = true
	p.ValidatedAt = &at
	p.StoreValidation = &meta
}

// Expired reports whether the proof is past its expiry at the given instant.
func (p Proof) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// ProofLookup resolves a proof either by id (decoded from a QR payload) or by code.
type ProofLookup struct {
	ProofID          uuid.UUID
	VerificationCode string
}

// ValidationAttempt is an operator's attempt to consume a proof.
type ValidationAttempt struct {
	StoreID  string
	At       time.Time
	Metadata ValidationMetadata
}

// Verdict is the state-machine decision for a validation attempt.
type Verdict struct {
	Err    error
	Expire bool
}

// Judge applies the validation rules in order: store, usage, closure, supersession, expiry.
func Judge(p Proof, r Redemption, attempt ValidationAttempt) Verdict {
	switch {
	case p.StoreID != attempt.StoreID:
		return Verdict{Err: domainErrors.ErrStoreMismatch}
	case p.IsUsed:
		return Verdict{Err: domainErrors.ErrAlreadyUsed}
	case r.Status.Closed():
		return Verdict{Err: domainErrors.ErrRedemptionClosed}
	case p.RevokedAt != nil:
		return Verdict{Err: domainErrors.ErrExpired}
	case p.Expired(attempt.At):
		return Verdict{Err: domainErrors.ErrExpired, Expire: r.Status == RedemptionPending}
	}
	return Verdict{}
}

// Issuance groups the records created by one redemption issuance.
type Issuance struct {
	Redemption Redemption
	Proof      Proof
}

// ValidationResult is returned after a successful validation.
type ValidationResult struct {
	Redemption Redemption
	Proof      Proof
}
