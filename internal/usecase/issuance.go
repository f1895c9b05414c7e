package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
	"github.com/polkiloo/loyaltyledger/internal/pkg/proof"
)

const maxCodeAttempts = 5

// IssuanceUseCase creates redemptions and mints their proofs.
type IssuanceUseCase struct {
	rewards     repository.RewardRepository
	redemptions repository.RedemptionRepository
	codec       *proof.Codec
	codes       *proof.Generator
	logger      *slog.Logger
	clock       Clock
}

// NewIssuanceUseCase constructs IssuanceUseCase.
func NewIssuanceUseCase(
	rewards repository.RewardRepository,
	redemptions repository.RedemptionRepository,
	codec *proof.Codec,
	codes *proof.Generator,
	logger *slog.Logger,
	clock Clock,
) *IssuanceUseCase {
	return &IssuanceUseCase{rewards: rewards, redemptions: redemptions, codec: codec, codes: codes, logger: logger, clock: clock}
}

// Issue reserves the reward cost and returns the redemption with its first proof.
func (u *IssuanceUseCase) Issue(ctx context.Context, customerID, storeID, rewardID string) (*model.Issuance, error) {
	if customerID == "" || storeID == "" || rewardID == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	reward, err := u.rewards.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if reward.StoreID != storeID {
		return nil, domainErrors.ErrRewardNotFound
	}
	if err := reward.CheckAvailable(); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		now := u.clock()
		redemptionID := uuid.New()
		red := model.Redemption{
			ID:               redemptionID,
			CustomerID:       customerID,
			StoreID:          storeID,
			RewardID:         reward.ID,
			CostPoints:       reward.CostPoints,
			Status:           model.RedemptionPending,
			ValidationStatus: model.ValidationPending,
			Metadata:         map[string]any{"reward_title": reward.Title},
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		p, err := u.mint(red, now, reward.ValidityDays())
		if err != nil {
			return nil, err
		}

		err = u.redemptions.Issue(ctx, model.Issuance{Redemption: red, Proof: p})
		if err == nil {
			u.logger.Info("redemption issued",
				slog.String("redemption_id", red.ID.String()),
				slog.String("customer_id", customerID),
				slog.String("store_id", storeID),
				slog.Int64("cost_points", red.CostPoints))
			return &model.Issuance{Redemption: red, Proof: p}, nil
		}
		if !errors.Is(err, domainErrors.ErrAlreadyExists) || attempt >= maxCodeAttempts {
			return nil, err
		}
		u.logger.Warn("verification code collision, retrying", slog.Int("attempt", attempt))
	}
}

// Regenerate replaces an expired, unused proof and reopens the redemption.
func (u *IssuanceUseCase) Regenerate(ctx context.Context, customerID string, redemptionID uuid.UUID) (*model.Issuance, error) {
	if customerID == "" || redemptionID == uuid.Nil {
		return nil, domainErrors.ErrInvalidRequest
	}
	red, err := u.redemptions.GetRedemption(ctx, redemptionID)
	if err != nil {
		return nil, err
	}
	if red.CustomerID != customerID {
		return nil, domainErrors.ErrNotFound
	}
	if red.Status.Closed() {
		return nil, domainErrors.ErrRedemptionClosed
	}

	validity := model.DefaultRedemptionValidityDays
	reward, err := u.rewards.GetReward(ctx, red.RewardID)
	switch {
	case err == nil:
		validity = reward.ValidityDays()
	case !errors.Is(err, domainErrors.ErrRewardNotFound):
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		now := u.clock()
		p, err := u.mint(*red, now, validity)
		if err != nil {
			return nil, err
		}
		updated, err := u.redemptions.ReplaceProof(ctx, customerID, p)
		if err == nil {
			u.logger.Info("proof regenerated", slog.String("redemption_id", red.ID.String()))
			return &model.Issuance{Redemption: *updated, Proof: p}, nil
		}
		if !errors.Is(err, domainErrors.ErrAlreadyExists) || attempt >= maxCodeAttempts {
			return nil, err
		}
	}
}

// Redemptions lists a customer's redemptions, optionally for one store.
func (u *IssuanceUseCase) Redemptions(ctx context.Context, customerID, storeID string) ([]model.Redemption, error) {
	if customerID == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	return u.redemptions.ListByCustomer(ctx, customerID, storeID)
}

// Current returns the redemption with its current proof when it belongs to the customer.
func (u *IssuanceUseCase) Current(ctx context.Context, customerID string, redemptionID uuid.UUID) (*model.Issuance, error) {
	red, err := u.redemptions.GetRedemption(ctx, redemptionID)
	if err != nil {
		return nil, err
	}
	if red.CustomerID != customerID {
		return nil, domainErrors.ErrNotFound
	}
	p, err := u.redemptions.CurrentProof(ctx, redemptionID)
	if err != nil {
		return nil, err
	}
	return &model.Issuance{Redemption: *red, Proof: *p}, nil
}

func (u *IssuanceUseCase) mint(red model.Redemption, now time.Time, validityDays int) (model.Proof, error) {
	code, err := u.codes.Generate(red.StoreID)
	if err != nil {
		return model.Proof{}, err
	}
	p := model.Proof{
		ID:               uuid.New(),
		RedemptionID:     red.ID,
		StoreID:          red.StoreID,
		VerificationCode: code,
		IssuedAt:         now,
		ExpiresAt:        now.AddDate(0, 0, validityDays),
	}
	payload, err := u.codec.Encode(proof.Claims{
		ProofID:      p.ID,
		RedemptionID: red.ID,
		RewardID:     red.RewardID,
		StoreID:      red.StoreID,
		CustomerID:   red.CustomerID,
		Points:       red.CostPoints,
		IssuedAt:     now.Unix(),
		ExpiresAt:    p.ExpiresAt.Unix(),
	})
	if err != nil {
		return model.Proof{}, fmt.Errorf("encode proof: %w", err)
	}
	p.QRPayload = payload
	return p, nil
}
