package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

// lockTaxID serializes parking and linking for one tax ID until the transaction ends.
func lockTaxID(ctx context.Context, tx pgx.Tx, taxID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, taxID)
	return err
}

func linkedCustomer(ctx context.Context, tx pgx.Tx, taxID string) (string, error) {
	var customerID string
	err := tx.QueryRow(ctx, `SELECT customer_id FROM identity_links WHERE tax_id=$1 FOR SHARE`, taxID).Scan(&customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domainErrors.ErrNotFound
	}
	return customerID, err
}

func (r *pendingCreditRepository) CreatePendingCredit(ctx context.Context, credit model.PendingCredit) (*model.AwardResult, error) {
	if credit.Amount <= 0 {
		return nil, domainErrors.ErrInvalidAmount
	}
	if credit.ID == uuid.Nil {
		credit.ID = uuid.New()
	}
	now := r.storage.clock()
	if credit.IssuedAt.IsZero() {
		credit.IssuedAt = now
	}

	var result *model.AwardResult
	err := r.storage.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := lockTaxID(ctx, tx, credit.TaxID); err != nil {
			return err
		}
		customerID, err := linkedCustomer(ctx, tx, credit.TaxID)
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			if _, err := tx.Exec(ctx, `INSERT INTO pending_credits (id, tax_id, store_id, amount, reference, issued_at, expires_at, metadata)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				credit.ID, credit.TaxID, credit.StoreID, credit.Amount, credit.Reference, credit.IssuedAt, credit.ExpiresAt, jsonMap(credit.Metadata)); err != nil {
				return err
			}
			result = &model.AwardResult{Points: credit.Amount, PendingCredit: &credit}
			return nil
		case err != nil:
			return err
		}

		balance, err := lockBalance(ctx, tx, customerID, credit.StoreID)
		if err != nil {
			return err
		}
		entry := credit.AwardFor(customerID)
		if err := insertTransaction(ctx, tx, entry); err != nil {
			return err
		}
		balance.Available += credit.Amount
		if err := saveBalance(ctx, tx, &balance, now); err != nil {
			return err
		}
		result = &model.AwardResult{Points: credit.Amount, Transaction: &entry, Balance: &balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *pendingCreditRepository) ListPending(ctx context.Context, taxID string) ([]model.PendingCredit, error) {
	rows, err := r.storage.pool.Query(ctx, `SELECT id, tax_id, store_id, amount, reference, issued_at, expires_at, metadata
        FROM pending_credits WHERE tax_id=$1 AND NOT migrated ORDER BY issued_at`, taxID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []model.PendingCredit
	for rows.Next() {
		var credit model.PendingCredit
		if err := rows.Scan(&credit.ID, &credit.TaxID, &credit.StoreID, &credit.Amount, &credit.Reference,
			&credit.IssuedAt, &credit.ExpiresAt, &credit.Metadata); err != nil {
			return nil, err
		}
		result = append(result, credit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *pendingCreditRepository) PendingStores(ctx context.Context, taxID string) ([]string, error) {
	rows, err := r.storage.pool.Query(ctx, `SELECT DISTINCT store_id FROM pending_credits WHERE tax_id=$1 AND NOT migrated ORDER BY store_id`, taxID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var stores []string
	for rows.Next() {
		var storeID string
		if err := rows.Scan(&storeID); err != nil {
			return nil, err
		}
		stores = append(stores, storeID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stores, nil
}

func (r *pendingCreditRepository) LinkIdentity(ctx context.Context, link model.IdentityLink) error {
	if link.LinkedAt.IsZero() {
		link.LinkedAt = r.storage.clock()
	}
	return r.storage.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := lockTaxID(ctx, tx, link.TaxID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `INSERT INTO identity_links (tax_id, customer_id, linked_at) VALUES ($1, $2, $3)
            ON CONFLICT (tax_id) DO NOTHING`, link.TaxID, link.CustomerID, link.LinkedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		existing, err := linkedCustomer(ctx, tx, link.TaxID)
		if err != nil {
			return err
		}
		if existing != link.CustomerID {
			return domainErrors.ErrIdentityConflict
		}
		return nil
	})
}

type lockedCredit struct {
	id        uuid.UUID
	amount    int64
	reference string
	expiresAt *time.Time
}

// MigrateStore moves every outstanding credit of one store in a single unit. A retried call
// after success finds nothing left and reports zero credits.
func (r *pendingCreditRepository) MigrateStore(ctx context.Context, taxID, customerID, storeID string, at time.Time) (model.StoreMigration, error) {
	outcome := model.StoreMigration{StoreID: storeID}
	err := r.storage.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id, amount, reference, expires_at FROM pending_credits
            WHERE tax_id=$1 AND store_id=$2 AND NOT migrated ORDER BY issued_at FOR UPDATE`, taxID, storeID)
		if err != nil {
			return err
		}
		var credits []lockedCredit
		for rows.Next() {
			var c lockedCredit
			if err := rows.Scan(&c.id, &c.amount, &c.reference, &c.expiresAt); err != nil {
				rows.Close()
				return err
			}
			credits = append(credits, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(credits) == 0 {
			return nil
		}

		balance, err := lockBalance(ctx, tx, customerID, storeID)
		if err != nil {
			return err
		}
		var total int64
		for _, c := range credits {
			owner := customerID
			entry := model.Transaction{
				ID:         uuid.New(),
				CustomerID: &owner,
				StoreID:    storeID,
				Type:       model.TransactionAward,
				Amount:     c.amount,
				Reference:  c.reference,
				Metadata:   map[string]any{"pending_credit_id": c.id.String(), "tax_id": taxID},
				CreatedAt:  at,
				ExpiresAt:  c.expiresAt,
			}
			if err := insertTransaction(ctx, tx, entry); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE pending_credits SET migrated=TRUE, migrated_to_customer_id=$2, migrated_at=$3 WHERE id=$1`,
				c.id, customerID, at); err != nil {
				return err
			}
			total += c.amount
		}
		balance.Available += total
		if err := saveBalance(ctx, tx, &balance, at); err != nil {
			return err
		}
		outcome.Credits = len(credits)
		outcome.Points = total
		return nil
	})
	if err != nil {
		outcome.Err = err
		return outcome, err
	}
	outcome.Success = true
	return outcome, nil
}
