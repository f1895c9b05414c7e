package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

const transactionColumns = `id, customer_id, tax_id, store_id, type, amount, reference, metadata, created_at, expires_at`

// lockBalance creates the balance row when missing and holds its row lock until the
// surrounding transaction ends.
func lockBalance(ctx context.Context, tx pgx.Tx, customerID, storeID string) (model.Balance, error) {
	balance := model.Balance{CustomerID: customerID, StoreID: storeID}
	err := tx.QueryRow(ctx, `INSERT INTO balances (customer_id, store_id) VALUES ($1, $2)
        ON CONFLICT (customer_id, store_id) DO UPDATE SET customer_id = EXCLUDED.customer_id
        RETURNING available_points, reserved_points, updated_at`, customerID, storeID).
		Scan(&balance.Available, &balance.Reserved, &balance.UpdatedAt)
	if err != nil {
		return balance, err
	}
	return balance, nil
}

func saveBalance(ctx context.Context, tx pgx.Tx, balance *model.Balance, at time.Time) error {
	balance.UpdatedAt = at
	_, err := tx.Exec(ctx, `UPDATE balances SET available_points=$3, reserved_points=$4, updated_at=$5
        WHERE customer_id=$1 AND store_id=$2`,
		balance.CustomerID, balance.StoreID, balance.Available, balance.Reserved, at)
	return err
}

func insertTransaction(ctx context.Context, tx pgx.Tx, entry model.Transaction) error {
	_, err := tx.Exec(ctx, `INSERT INTO point_transactions (`+transactionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.CustomerID, entry.TaxID, entry.StoreID, entry.Type, entry.Amount,
		entry.Reference, jsonMap(entry.Metadata), entry.CreatedAt, entry.ExpiresAt)
	return err
}

func prepareEntry(entry *model.Transaction, now time.Time) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
}

func (r *ledgerRepository) GetBalance(ctx context.Context, customerID, storeID string) (*model.Balance, error) {
	balance := &model.Balance{CustomerID: customerID, StoreID: storeID}
	err := r.storage.pool.QueryRow(ctx, `SELECT available_points, reserved_points, updated_at FROM balances WHERE customer_id=$1 AND store_id=$2`, customerID, storeID).
		Scan(&balance.Available, &balance.Reserved, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return balance, nil
		}
		return nil, classify(err)
	}
	return balance, nil
}

func (r *ledgerRepository) ApplyDelta(ctx context.Context, entry model.Transaction) (*model.Balance, error) {
	if entry.CustomerID == nil || entry.Type == model.TransactionRedeem || !entry.Type.Valid() {
		return nil, domainErrors.ErrInvalidRequest
	}
	now := r.storage.clock()
	prepareEntry(&entry, now)

	var result model.Balance
	err := r.storage.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, *entry.CustomerID, entry.StoreID)
		if err != nil {
			return err
		}
		next := balance.Available + entry.AvailableDelta()
		if next < 0 {
			return domainErrors.ErrInsufficientBalance
		}
		if err := insertTransaction(ctx, tx, entry); err != nil {
			return err
		}
		balance.Available = next
		if err := saveBalance(ctx, tx, &balance, now); err != nil {
			return err
		}
		result = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ledgerRepository) Reserve(ctx context.Context, customerID, storeID string, amount int64) (*model.Balance, error) {
	if amount <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	return r.moveReserved(ctx, customerID, storeID, func(b *model.Balance) error {
		if b.Available < amount {
			return domainErrors.ErrInsufficientBalance
		}
		b.Available -= amount
		b.Reserved += amount
		return nil
	})
}

func (r *ledgerRepository) ReleaseReservation(ctx context.Context, customerID, storeID string, amount int64) (*model.Balance, error) {
	if amount <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	return r.moveReserved(ctx, customerID, storeID, func(b *model.Balance) error {
		if b.Reserved < amount {
			return fmt.Errorf("%w: reserved %d, release %d", domainErrors.ErrInsufficientBalance, b.Reserved, amount)
		}
		b.Reserved -= amount
		b.Available += amount
		return nil
	})
}

func (r *ledgerRepository) moveReserved(ctx context.Context, customerID, storeID string, apply func(*model.Balance) error) (*model.Balance, error) {
	now := r.storage.clock()
	var result model.Balance
	err := r.storage.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, customerID, storeID)
		if err != nil {
			return err
		}
		if err := apply(&balance); err != nil {
			return err
		}
		if err := saveBalance(ctx, tx, &balance, now); err != nil {
			return err
		}
		result = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ledgerRepository) ConsumeReservation(ctx context.Context, entry model.Transaction) (*model.Balance, error) {
	if entry.CustomerID == nil || entry.Type != model.TransactionRedeem {
		return nil, domainErrors.ErrInvalidRequest
	}
	if entry.Amount <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	now := r.storage.clock()
	prepareEntry(&entry, now)

	var result model.Balance
	err := r.storage.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		balance, err := consumeReserved(ctx, tx, entry, now)
		if err != nil {
			return err
		}
		result = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// consumeReserved books a redeem entry against reserved points inside an open transaction.
func consumeReserved(ctx context.Context, tx pgx.Tx, entry model.Transaction, now time.Time) (model.Balance, error) {
	balance, err := lockBalance(ctx, tx, entry.Customer(), entry.StoreID)
	if err != nil {
		return balance, err
	}
	if balance.Reserved < entry.Amount {
		return balance, fmt.Errorf("%w: reserved %d, consume %d", domainErrors.ErrInsufficientBalance, balance.Reserved, entry.Amount)
	}
	if err := insertTransaction(ctx, tx, entry); err != nil {
		return balance, err
	}
	balance.Reserved -= entry.Amount
	if err := saveBalance(ctx, tx, &balance, now); err != nil {
		return balance, err
	}
	return balance, nil
}

func (r *ledgerRepository) SumFor(ctx context.Context, owner model.Owner, storeID string) (int64, error) {
	var (
		sum int64
		err error
	)
	switch {
	case owner.IsCustomer():
		err = r.storage.pool.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN type IN ('redeem', 'expire') THEN -amount ELSE amount END), 0)
            FROM point_transactions WHERE customer_id=$1 AND store_id=$2`, owner.CustomerID, storeID).Scan(&sum)
	case owner.TaxID != "":
		err = r.storage.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)
            FROM pending_credits WHERE tax_id=$1 AND store_id=$2 AND NOT migrated`, owner.TaxID, storeID).Scan(&sum)
	default:
		return 0, domainErrors.ErrMissingIdentity
	}
	if err != nil {
		return 0, classify(err)
	}
	return sum, nil
}

func (r *ledgerRepository) ListTransactions(ctx context.Context, customerID, storeID string, limit int) ([]model.Transaction, error) {
	rows, err := r.storage.pool.Query(ctx, `SELECT `+transactionColumns+` FROM point_transactions
        WHERE customer_id=$1 AND store_id=$2 ORDER BY created_at DESC LIMIT $3`, customerID, storeID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []model.Transaction
	for rows.Next() {
		var entry model.Transaction
		if err := rows.Scan(&entry.ID, &entry.CustomerID, &entry.TaxID, &entry.StoreID, &entry.Type, &entry.Amount,
			&entry.Reference, &entry.Metadata, &entry.CreatedAt, &entry.ExpiresAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
