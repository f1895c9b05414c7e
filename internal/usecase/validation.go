package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
	"github.com/polkiloo/loyaltyledger/internal/pkg/proof"
)

// ValidationRequest is an operator presenting a proof in store.
type ValidationRequest struct {
	StoreID   string
	QRPayload string
	Code      string
	Metadata  model.ValidationMetadata
}

// CancelRequest is an operator cancelling an open redemption.
type CancelRequest struct {
	RedemptionID uuid.UUID
	StoreID      string
	Operator     string
	Reason       string
}

// ValidationUseCase consumes proofs and runs the operator-side redemption paths.
type ValidationUseCase struct {
	redemptions repository.RedemptionRepository
	codec       *proof.Codec
	logger      *slog.Logger
	clock       Clock
}

// NewValidationUseCase constructs ValidationUseCase.
func NewValidationUseCase(redemptions repository.RedemptionRepository, codec *proof.Codec, logger *slog.Logger, clock Clock) *ValidationUseCase {
	return &ValidationUseCase{redemptions: redemptions, codec: codec, logger: logger, clock: clock}
}

// Validate resolves the presented artifact and consumes its proof. The payload is only a lookup
// key: cost and store are always read back from storage.
func (u *ValidationUseCase) Validate(ctx context.Context, req ValidationRequest) (*model.ValidationResult, error) {
	if req.StoreID == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	lookup, err := u.lookup(req)
	if err != nil {
		return nil, err
	}

	result, err := u.redemptions.Validate(ctx, lookup, model.ValidationAttempt{
		StoreID:  req.StoreID,
		At:       u.clock(),
		Metadata: req.Metadata,
	})
	if err != nil {
		u.logger.Warn("validation rejected",
			slog.String("store_id", req.StoreID),
			slog.String("validated_by", req.Metadata.ValidatedBy),
			slog.String("reason", domainErrors.Code(err)))
		return nil, err
	}
	u.logger.Info("redemption validated",
		slog.String("redemption_id", result.Redemption.ID.String()),
		slog.String("store_id", req.StoreID),
		slog.String("validated_by", req.Metadata.ValidatedBy))
	return result, nil
}

func (u *ValidationUseCase) lookup(req ValidationRequest) (model.ProofLookup, error) {
	payload := strings.TrimSpace(req.QRPayload)
	if payload != "" {
		claims, err := u.codec.Decode(payload)
		if err != nil {
			return model.ProofLookup{}, domainErrors.ErrNotFound
		}
		return model.ProofLookup{ProofID: claims.ProofID}, nil
	}

	if strings.TrimSpace(req.Code) == "" {
		return model.ProofLookup{}, domainErrors.ErrInvalidRequest
	}
	code := proof.Normalize(req.Code)
	if !proof.ValidFormat(code) {
		return model.ProofLookup{}, domainErrors.ErrNotFound
	}
	return model.ProofLookup{VerificationCode: code}, nil
}

// Cancel releases the reservation of an open redemption of the operator's store.
func (u *ValidationUseCase) Cancel(ctx context.Context, req CancelRequest) (*model.Redemption, error) {
	if req.RedemptionID == uuid.Nil || req.StoreID == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	meta := map[string]any{"cancelled_by": req.Operator}
	if req.Reason != "" {
		meta["cancel_reason"] = req.Reason
	}
	red, err := u.redemptions.Cancel(ctx, req.RedemptionID, req.StoreID, u.clock(), meta)
	if err != nil {
		return nil, err
	}
	u.logger.Info("redemption cancelled",
		slog.String("redemption_id", red.ID.String()),
		slog.String("store_id", req.StoreID),
		slog.String("operator", req.Operator))
	return red, nil
}

// ExpireStale moves lapsed pending redemptions to expired.
func (u *ValidationUseCase) ExpireStale(ctx context.Context, limit int) (int, error) {
	return u.redemptions.ExpireStale(ctx, u.clock(), limit)
}
