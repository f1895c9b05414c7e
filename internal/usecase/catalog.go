package usecase

import (
	"context"
	"strings"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
)

// CatalogUseCase mirrors the reward catalog pushed by its owner.
type CatalogUseCase struct {
	rewards repository.RewardRepository
}

// NewCatalogUseCase constructs CatalogUseCase.
func NewCatalogUseCase(rewards repository.RewardRepository) *CatalogUseCase {
	return &CatalogUseCase{rewards: rewards}
}

// Upsert stores the catalog entry.
func (u *CatalogUseCase) Upsert(ctx context.Context, reward model.Reward) (*model.Reward, error) {
	reward.ID = strings.TrimSpace(reward.ID)
	reward.Title = strings.TrimSpace(reward.Title)
	if reward.ID == "" || reward.StoreID == "" || reward.Title == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	if reward.CostPoints <= 0 || (reward.Quantity != nil && *reward.Quantity < 0) || reward.RedemptionValidityDays < 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	reward.RedemptionValidityDays = reward.ValidityDays()
	if err := u.rewards.UpsertReward(ctx, reward); err != nil {
		return nil, err
	}
	return &reward, nil
}

// List returns the rewards of one store.
func (u *CatalogUseCase) List(ctx context.Context, storeID string) ([]model.Reward, error) {
	if storeID == "" {
		return nil, domainErrors.ErrInvalidRequest
	}
	return u.rewards.ListRewards(ctx, storeID)
}
