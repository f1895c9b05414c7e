package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

func TestRewardRepository(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &rewardRepository{storage: storage}

	qty := int64(3)
	reward := model.Reward{ID: "coffee", StoreID: "s1", Title: "Coffee", CostPoints: 100, Quantity: &qty, Active: true}

	mock.ExpectExec("INSERT INTO rewards").WithArgs("coffee", "s1", "Coffee", int64(100), &qty, true, model.DefaultRedemptionValidityDays, fixedNow).
		WillReturnResult(pgxmockv3.NewResult("INSERT", 1))
	if err := repo.UpsertReward(context.Background(), reward); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.UpsertReward(context.Background(), model.Reward{ID: "free"}); !errors.Is(err, domainErrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	columns := []string{"id", "store_id", "title", "cost_points", "quantity", "active", "redemption_validity_days"}
	mock.ExpectQuery("SELECT id, store_id, title, cost_points, quantity, active, redemption_validity_days FROM rewards WHERE id").
		WithArgs("coffee").WillReturnRows(pgxmockv3.NewRows(columns).AddRow("coffee", "s1", "Coffee", int64(100), &qty, true, 30))
	got, err := repo.GetReward(context.Background(), "coffee")
	if err != nil || got.CostPoints != 100 || got.Quantity == nil || *got.Quantity != 3 {
		t.Fatalf("unexpected reward: %+v err=%v", got, err)
	}

	mock.ExpectQuery("FROM rewards WHERE id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetReward(context.Background(), "missing"); !errors.Is(err, domainErrors.ErrRewardNotFound) {
		t.Fatalf("expected reward not found, got %v", err)
	}

	mock.ExpectQuery("FROM rewards WHERE store_id").WithArgs("s1").WillReturnRows(
		pgxmockv3.NewRows(columns).
			AddRow("coffee", "s1", "Coffee", int64(100), nil, true, 30).
			AddRow("tea", "s1", "Tea", int64(60), nil, false, 7))
	list, err := repo.ListRewards(context.Background(), "s1")
	if err != nil || len(list) != 2 || list[1].Active {
		t.Fatalf("unexpected list: %+v err=%v", list, err)
	}

	mock.ExpectQuery("FROM rewards WHERE store_id").WithArgs("s2").WillReturnError(errors.New("query"))
	if _, err := repo.ListRewards(context.Background(), "s2"); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
