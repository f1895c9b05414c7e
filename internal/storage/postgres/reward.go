package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

const rewardColumns = `id, store_id, title, cost_points, quantity, active, redemption_validity_days`

func (r *rewardRepository) UpsertReward(ctx context.Context, reward model.Reward) error {
	if reward.CostPoints <= 0 {
		return domainErrors.ErrInvalidAmount
	}
	_, err := r.storage.pool.Exec(ctx, `INSERT INTO rewards (`+rewardColumns+`, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET store_id=EXCLUDED.store_id, title=EXCLUDED.title, cost_points=EXCLUDED.cost_points,
            quantity=EXCLUDED.quantity, active=EXCLUDED.active, redemption_validity_days=EXCLUDED.redemption_validity_days,
            updated_at=EXCLUDED.updated_at`,
		reward.ID, reward.StoreID, reward.Title, reward.CostPoints, reward.Quantity, reward.Active, reward.ValidityDays(), r.storage.clock())
	return classify(err)
}

func (r *rewardRepository) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	reward := &model.Reward{}
	err := r.storage.pool.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id=$1`, id).
		Scan(&reward.ID, &reward.StoreID, &reward.Title, &reward.CostPoints, &reward.Quantity, &reward.Active, &reward.RedemptionValidityDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrRewardNotFound
		}
		return nil, classify(err)
	}
	return reward, nil
}

func (r *rewardRepository) ListRewards(ctx context.Context, storeID string) ([]model.Reward, error) {
	rows, err := r.storage.pool.Query(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE store_id=$1 ORDER BY id`, storeID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []model.Reward
	for rows.Next() {
		var reward model.Reward
		if err := rows.Scan(&reward.ID, &reward.StoreID, &reward.Title, &reward.CostPoints, &reward.Quantity,
			&reward.Active, &reward.RedemptionValidityDays); err != nil {
			return nil, err
		}
		result = append(result, reward)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
