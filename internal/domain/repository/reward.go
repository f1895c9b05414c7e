package repository

import (
	"context"

	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

// RewardRepository mirrors the reward catalog.
type RewardRepository interface {
	UpsertReward(ctx context.Context, reward model.Reward) error
	GetReward(ctx context.Context, id string) (*model.Reward, error)
	ListRewards(ctx context.Context, storeID string) ([]model.Reward, error)
}
