package memory

import (
	"context"
	"sort"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

func cloneReward(reward model.Reward) model.Reward {
	if reward.Quantity != nil {
		q := *reward.Quantity
		reward.Quantity = &q
	}
	return reward
}

func (r *rewardRepository) UpsertReward(ctx context.Context, reward model.Reward) error {
	if reward.CostPoints <= 0 {
		return domainErrors.ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	reward.RedemptionValidityDays = reward.ValidityDays()
	s.rewards[reward.ID] = cloneReward(reward)
	return nil
}

func (r *rewardRepository) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	reward, ok := s.rewards[id]
	if !ok {
		return nil, domainErrors.ErrRewardNotFound
	}
	out := cloneReward(reward)
	return &out, nil
}

func (r *rewardRepository) ListRewards(ctx context.Context, storeID string) ([]model.Reward, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []model.Reward
	for _, reward := range s.rewards {
		if reward.StoreID == storeID {
			result = append(result, cloneReward(reward))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
