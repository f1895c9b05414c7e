package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

func strPtr(s string) *string { return &s }

func TestLedgerApplyDelta(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &ledgerRepository{storage: storage}

	award := model.Transaction{CustomerID: strPtr("c1"), StoreID: "s1", Type: model.TransactionAward, Amount: 25, Reference: "p1"}

	mock.ExpectBegin()
	expectLock(mock, 50, 10)
	mock.ExpectExec("INSERT INTO point_transactions").WithArgs(
		pgxmockv3.AnyArg(), strPtr("c1"), (*string)(nil), "s1", model.TransactionAward, int64(25), "p1",
		map[string]any{}, fixedNow, pgxmockv3.AnyArg(),
	).WillReturnResult(pgxmockv3.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE balances SET").WithArgs("c1", "s1", int64(75), int64(10), fixedNow).
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	balance, err := repo.ApplyDelta(context.Background(), award)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.Available != 75 || balance.Reserved != 10 {
		t.Fatalf("unexpected balance: %+v", balance)
	}

	debit := model.Transaction{CustomerID: strPtr("c1"), StoreID: "s1", Type: model.TransactionAdjustment, Amount: -80}
	mock.ExpectBegin()
	expectLock(mock, 75, 0)
	mock.ExpectRollback()
	if _, err := repo.ApplyDelta(context.Background(), debit); !errors.Is(err, domainErrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	mock.ExpectBegin()
	expectLock(mock, 75, 0)
	mock.ExpectExec("INSERT INTO point_transactions").WillReturnError(errors.New("insert"))
	mock.ExpectRollback()
	if _, err := repo.ApplyDelta(context.Background(), award); err == nil {
		t.Fatal("expected insert error")
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO balances").WillReturnError(errors.New("lock"))
	mock.ExpectRollback()
	if _, err := repo.ApplyDelta(context.Background(), award); err == nil {
		t.Fatal("expected lock error")
	}

	redeem := model.Transaction{CustomerID: strPtr("c1"), StoreID: "s1", Type: model.TransactionRedeem, Amount: 5}
	if _, err := repo.ApplyDelta(context.Background(), redeem); !errors.Is(err, domainErrors.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if _, err := repo.ApplyDelta(context.Background(), model.Transaction{Type: model.TransactionAward}); !errors.Is(err, domainErrors.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestLedgerReserveAndRelease(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &ledgerRepository{storage: storage}

	mock.ExpectBegin()
	expectLock(mock, 100, 0)
	mock.ExpectExec("UPDATE balances SET").WithArgs("c1", "s1", int64(70), int64(30), fixedNow).
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	balance, err := repo.Reserve(context.Background(), "c1", "s1", 30)
	if err != nil || balance.Available != 70 || balance.Reserved != 30 {
		t.Fatalf("unexpected result: %+v err=%v", balance, err)
	}

	mock.ExpectBegin()
	expectLock(mock, 10, 0)
	mock.ExpectRollback()
	if _, err := repo.Reserve(context.Background(), "c1", "s1", 30); !errors.Is(err, domainErrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	mock.ExpectBegin()
	expectLock(mock, 70, 30)
	mock.ExpectExec("UPDATE balances SET").WithArgs("c1", "s1", int64(100), int64(0), fixedNow).
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	balance, err = repo.ReleaseReservation(context.Background(), "c1", "s1", 30)
	if err != nil || balance.Available != 100 || balance.Reserved != 0 {
		t.Fatalf("unexpected result: %+v err=%v", balance, err)
	}

	mock.ExpectBegin()
	expectLock(mock, 70, 10)
	mock.ExpectRollback()
	if _, err := repo.ReleaseReservation(context.Background(), "c1", "s1", 30); !errors.Is(err, domainErrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient reserved, got %v", err)
	}

	mock.ExpectBegin()
	expectLock(mock, 100, 0)
	mock.ExpectExec("UPDATE balances SET").WillReturnError(errors.New("update"))
	mock.ExpectRollback()
	if _, err := repo.Reserve(context.Background(), "c1", "s1", 30); err == nil {
		t.Fatal("expected update error")
	}

	if _, err := repo.Reserve(context.Background(), "c1", "s1", 0); !errors.Is(err, domainErrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := repo.ReleaseReservation(context.Background(), "c1", "s1", -1); !errors.Is(err, domainErrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestLedgerConsumeReservation(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &ledgerRepository{storage: storage}

	redeem := model.Transaction{CustomerID: strPtr("c1"), StoreID: "s1", Type: model.TransactionRedeem, Amount: 30}

	mock.ExpectBegin()
	expectLock(mock, 70, 30)
	mock.ExpectExec("INSERT INTO point_transactions").WillReturnResult(pgxmockv3.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE balances SET").WithArgs("c1", "s1", int64(70), int64(0), fixedNow).
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	balance, err := repo.ConsumeReservation(context.Background(), redeem)
	if err != nil || balance.Available != 70 || balance.Reserved != 0 {
		t.Fatalf("unexpected result: %+v err=%v", balance, err)
	}

	mock.ExpectBegin()
	expectLock(mock, 70, 10)
	mock.ExpectRollback()
	if _, err := repo.ConsumeReservation(context.Background(), redeem); !errors.Is(err, domainErrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient reserved, got %v", err)
	}

	award := redeem
	award.Type = model.TransactionAward
	if _, err := repo.ConsumeReservation(context.Background(), award); !errors.Is(err, domainErrors.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	zero := redeem
	zero.Amount = 0
	if _, err := repo.ConsumeReservation(context.Background(), zero); !errors.Is(err, domainErrors.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestLedgerGetBalance(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &ledgerRepository{storage: storage}

	mock.ExpectQuery("SELECT available_points, reserved_points, updated_at FROM balances").WithArgs("c1", "s1").WillReturnRows(
		pgxmockv3.NewRows([]string{"available_points", "reserved_points", "updated_at"}).AddRow(int64(40), int64(5), fixedNow))
	balance, err := repo.GetBalance(context.Background(), "c1", "s1")
	if err != nil || balance.Available != 40 || balance.Reserved != 5 || balance.Total() != 45 {
		t.Fatalf("unexpected balance: %+v err=%v", balance, err)
	}

	mock.ExpectQuery("SELECT available_points, reserved_points, updated_at FROM balances").WithArgs("c2", "s1").WillReturnError(pgx.ErrNoRows)
	balance, err = repo.GetBalance(context.Background(), "c2", "s1")
	if err != nil || balance.Available != 0 || balance.CustomerID != "c2" {
		t.Fatalf("expected zero balance, got %+v err=%v", balance, err)
	}

	mock.ExpectQuery("SELECT available_points, reserved_points, updated_at FROM balances").WithArgs("c3", "s1").WillReturnError(errors.New("query"))
	if _, err := repo.GetBalance(context.Background(), "c3", "s1"); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestLedgerSumFor(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &ledgerRepository{storage: storage}

	mock.ExpectQuery("FROM point_transactions WHERE customer_id").WithArgs("c1", "s1").WillReturnRows(
		pgxmockv3.NewRows([]string{"sum"}).AddRow(int64(120)))
	sum, err := repo.SumFor(context.Background(), model.Owner{CustomerID: "c1"}, "s1")
	if err != nil || sum != 120 {
		t.Fatalf("unexpected sum %d err=%v", sum, err)
	}

	mock.ExpectQuery("FROM pending_credits WHERE tax_id").WithArgs("52998224725", "s1").WillReturnRows(
		pgxmockv3.NewRows([]string{"sum"}).AddRow(int64(30)))
	sum, err = repo.SumFor(context.Background(), model.Owner{TaxID: "52998224725"}, "s1")
	if err != nil || sum != 30 {
		t.Fatalf("unexpected sum %d err=%v", sum, err)
	}

	mock.ExpectQuery("FROM point_transactions WHERE customer_id").WithArgs("c2", "s1").WillReturnError(errors.New("query"))
	if _, err := repo.SumFor(context.Background(), model.Owner{CustomerID: "c2"}, "s1"); err == nil {
		t.Fatal("expected error")
	}

	if _, err := repo.SumFor(context.Background(), model.Owner{}, "s1"); !errors.Is(err, domainErrors.ErrMissingIdentity) {
		t.Fatalf("expected missing identity, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestLedgerListTransactions(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &ledgerRepository{storage: storage}

	columns := []string{"id", "customer_id", "tax_id", "store_id", "type", "amount", "reference", "metadata", "created_at", "expires_at"}
	mock.ExpectQuery("SELECT id, customer_id, tax_id, store_id, type").WithArgs("c1", "s1", 10).WillReturnRows(
		pgxmockv3.NewRows(columns).
			AddRow(uuid.New(), strPtr("c1"), nil, "s1", model.TransactionRedeem, int64(30), "r1", map[string]any{}, fixedNow, nil).
			AddRow(uuid.New(), strPtr("c1"), nil, "s1", model.TransactionAward, int64(100), "p1", map[string]any{"k": "v"}, fixedNow, nil),
	)
	list, err := repo.ListTransactions(context.Background(), "c1", "s1", 10)
	if err != nil || len(list) != 2 || list[0].Signed() != -30 {
		t.Fatalf("unexpected list: %+v err=%v", list, err)
	}

	mock.ExpectQuery("SELECT id, customer_id, tax_id, store_id, type").WithArgs("c1", "s1", 10).WillReturnError(errors.New("query"))
	if _, err := repo.ListTransactions(context.Background(), "c1", "s1", 10); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("SELECT id, customer_id, tax_id, store_id, type").WithArgs("c1", "s1", 10).WillReturnRows(
		pgxmockv3.NewRows(columns).AddRow("bad", strPtr("c1"), nil, "s1", model.TransactionAward, int64(1), "", map[string]any{}, fixedNow, nil),
	)
	if _, err := repo.ListTransactions(context.Background(), "c1", "s1", 10); err == nil {
		t.Fatal("expected scan error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestLedgerListTransactionsRowsError(t *testing.T) {
	storage := &Storage{pool: &rowsErrorPool{rows: &errorRows{err: errors.New("rows err")}}}
	repo := &ledgerRepository{storage: storage}

	if _, err := repo.ListTransactions(context.Background(), "c1", "s1", 5); err == nil || err.Error() != "rows err" {
		t.Fatalf("expected rows err, got %v", err)
	}
}
