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

const (
	redemptionColumns = `id, customer_id, store_id, reward_id, cost_points, status, validation_status, redeemed_at, metadata, created_at, updated_at`
	proofColumns      = `id, redemption_id, store_id, qr_payload, verification_code, issued_at, expires_at, is_used, used_at,
        validated_by_store, validated_at, store_validation_metadata, revoked_at`
	joinedColumns = `p.id, p.redemption_id, p.store_id, p.qr_payload, p.verification_code, p.issued_at, p.expires_at, p.is_used, p.used_at,
        p.validated_by_store, p.validated_at, p.store_validation_metadata, p.revoked_at,
        r.id, r.customer_id, r.store_id, r.reward_id, r.cost_points, r.status, r.validation_status, r.redeemed_at, r.metadata, r.created_at, r.updated_at`
)

func redemptionDest(r *model.Redemption) []any {
	return []any{&r.ID, &r.CustomerID, &r.StoreID, &r.RewardID, &r.CostPoints, &r.Status, &r.ValidationStatus,
		&r.RedeemedAt, &r.Metadata, &r.CreatedAt, &r.UpdatedAt}
}

func proofDest(p *model.Proof) []any {
	return []any{&p.ID, &p.RedemptionID, &p.StoreID, &p.QRPayload, &p.VerificationCode, &p.IssuedAt, &p.ExpiresAt,
		&p.IsUsed, &p.UsedAt, &p.ValidatedByStore, &p.ValidatedAt, &p.StoreValidation, &p.RevokedAt}
}

func insertRedemption(ctx context.Context, tx pgx.Tx, r model.Redemption) error {
	_, err := tx.Exec(ctx, `INSERT INTO redemptions (`+redemptionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.CustomerID, r.StoreID, r.RewardID, r.CostPoints, r.Status, r.ValidationStatus,
		r.RedeemedAt, jsonMap(r.Metadata), r.CreatedAt, r.UpdatedAt)
	return err
}

func insertProof(ctx context.Context, tx pgx.Tx, p model.Proof) error {
	_, err := tx.Exec(ctx, `INSERT INTO redemption_proofs (id, redemption_id, store_id, qr_payload, verification_code, issued_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.RedemptionID, p.StoreID, p.QRPayload, p.VerificationCode, p.IssuedAt, p.ExpiresAt)
	return err
}

func updateRedemptionState(ctx context.Context, tx pgx.Tx, r model.Redemption) error {
	_, err := tx.Exec(ctx, `UPDATE redemptions SET status=$2, validation_status=$3, redeemed_at=$4, metadata=$5, updated_at=$6 WHERE id=$1`,
		r.ID, r.Status, r.ValidationStatus, r.RedeemedAt, jsonMap(r.Metadata), r.UpdatedAt)
	return err
}

func lockRedemption(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Redemption, error) {
	var r model.Redemption
	err := tx.QueryRow(ctx, `SELECT `+redemptionColumns+` FROM redemptions WHERE id=$1 FOR UPDATE`, id).Scan(redemptionDest(&r)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, domainErrors.ErrNotFound
		}
		return r, err
	}
	return r, nil
}

// Issue reserves the cost, decrements bounded stock and persists the redemption with its
// first proof in one unit.
func (r *redemptionRepository) Issue(ctx context.Context, issuance model.Issuance) error {
	red := issuance.Redemption
	return r.storage.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var reward model.Reward
		err := tx.QueryRow(ctx, `SELECT store_id, cost_points, quantity, active FROM rewards WHERE id=$1 FOR UPDATE`, red.RewardID).
			Scan(&reward.StoreID, &reward.CostPoints, &reward.Quantity, &reward.Active)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrRewardNotFound
			}
			return err
		}
		if reward.StoreID != red.StoreID {
			return domainErrors.ErrRewardNotFound
		}
		if err := reward.CheckAvailable(); err != nil {
			return err
		}
		if reward.CostPoints != red.CostPoints {
			return fmt.Errorf("%w: cost changed", domainErrors.ErrRewardUnavailable)
		}

		balance, err := lockBalance(ctx, tx, red.CustomerID, red.StoreID)
		if err != nil {
			return err
		}
		if balance.Available < red.CostPoints {
			return domainErrors.ErrInsufficientBalance
		}
		balance.Available -= red.CostPoints
		balance.Reserved += red.CostPoints
		if err := saveBalance(ctx, tx, &balance, red.CreatedAt); err != nil {
			return err
		}

		if reward.Quantity != nil {
			if _, err := tx.Exec(ctx, `UPDATE rewards SET quantity = quantity - 1 WHERE id=$1`, red.RewardID); err != nil {
				return err
			}
		}
		if err := insertRedemption(ctx, tx, red); err != nil {
			return err
		}
		return insertProof(ctx, tx, issuance.Proof)
	})
}

// Validate consumes a proof. The proof and its redemption stay locked for the whole unit so
// that exactly one of several concurrent attempts can succeed.
func (r *redemptionRepository) Validate(ctx context.Context, lookup model.ProofLookup, attempt model.ValidationAttempt) (*model.ValidationResult, error) {
	var (
		result  model.ValidationResult
		outcome error
	)
	err := r.storage.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var row pgx.Row
		if lookup.ProofID != uuid.Nil {
			row = tx.QueryRow(ctx, `SELECT `+joinedColumns+` FROM redemption_proofs p JOIN redemptions r ON r.id = p.redemption_id
                WHERE p.id=$1 FOR UPDATE OF p, r`, lookup.ProofID)
		} else {
			row = tx.QueryRow(ctx, `SELECT `+joinedColumns+` FROM redemption_proofs p JOIN redemptions r ON r.id = p.redemption_id
                WHERE p.verification_code=$1 ORDER BY (p.store_id = $2) DESC, (p.revoked_at IS NULL) DESC, p.issued_at DESC
                LIMIT 1 FOR UPDATE OF p, r`, lookup.VerificationCode, attempt.StoreID)
		}
		var (
			proof model.Proof
			red   model.Redemption
		)
		if err := row.Scan(append(proofDest(&proof), redemptionDest(&red)...)...); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return err
		}

		verdict := model.Judge(proof, red, attempt)
		if verdict.Expire {
			red.Expire(attempt.At)
			if err := updateRedemptionState(ctx, tx, red); err != nil {
				return err
			}
			outcome = verdict.Err
			return nil
		}
		if verdict.Err != nil {
			return verdict.Err
		}

		proof.Consume(attempt.At, attempt.Metadata)
		tag, err := tx.Exec(ctx, `UPDATE redemption_proofs SET is_used=TRUE, used_at=$2, validated_by_store=TRUE, validated_at=$2,
            store_validation_metadata=$3 WHERE id=$1 AND is_used=FALSE`, proof.ID, attempt.At, attempt.Metadata)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domainErrors.ErrAlreadyUsed
		}

		customerID := red.CustomerID
		entry := model.Transaction{
			ID:         uuid.New(),
			CustomerID: &customerID,
			StoreID:    red.StoreID,
			Type:       model.TransactionRedeem,
			Amount:     red.CostPoints,
			Reference:  red.ID.String(),
			Metadata: map[string]any{
				"reward_id":    red.RewardID,
				"proof_id":     proof.ID.String(),
				"validated_by": attempt.Metadata.ValidatedBy,
			},
			CreatedAt: attempt.At,
		}
		if _, err := consumeReserved(ctx, tx, entry, attempt.At); err != nil {
			return err
		}

		red.Complete(attempt.At)
		if err := updateRedemptionState(ctx, tx, red); err != nil {
			return err
		}
		result = model.ValidationResult{Redemption: red, Proof: proof}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return nil, outcome
	}
	return &result, nil
}

// Cancel releases the reservation of an open redemption and revokes its live proof.
func (r *redemptionRepository) Cancel(ctx context.Context, redemptionID uuid.UUID, storeID string, at time.Time, meta map[string]any) (*model.Redemption, error) {
	var result model.Redemption
	err := r.storage.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		red, err := lockRedemption(ctx, tx, redemptionID)
		if err != nil {
			return err
		}
		if red.StoreID != storeID {
			return domainErrors.ErrStoreMismatch
		}
		if err := red.Cancel(at); err != nil {
			return err
		}

		balance, err := lockBalance(ctx, tx, red.CustomerID, red.StoreID)
		if err != nil {
			return err
		}
		if balance.Reserved < red.CostPoints {
			return fmt.Errorf("%w: reserved %d, release %d", domainErrors.ErrInsufficientBalance, balance.Reserved, red.CostPoints)
		}
		balance.Reserved -= red.CostPoints
		balance.Available += red.CostPoints
		if err := saveBalance(ctx, tx, &balance, at); err != nil {
			return err
		}

		if red.Metadata == nil {
			red.Metadata = map[string]any{}
		}
		for k, v := range meta {
			red.Metadata[k] = v
		}
		if err := updateRedemptionState(ctx, tx, red); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE redemption_proofs SET revoked_at=$2 WHERE redemption_id=$1 AND revoked_at IS NULL AND NOT is_used`,
			red.ID, at); err != nil {
			return err
		}
		result = red
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ReplaceProof supersedes an expired, unused proof and reopens its redemption.
func (r *redemptionRepository) ReplaceProof(ctx context.Context, customerID string, proof model.Proof) (*model.Redemption, error) {
	var result model.Redemption
	err := r.storage.WithinTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		red, err := lockRedemption(ctx, tx, proof.RedemptionID)
		if err != nil {
			return err
		}
		if red.CustomerID != customerID {
			return domainErrors.ErrNotFound
		}

		var current model.Proof
		err = tx.QueryRow(ctx, `SELECT `+proofColumns+` FROM redemption_proofs WHERE redemption_id=$1 AND revoked_at IS NULL FOR UPDATE`, red.ID).
			Scan(proofDest(&current)...)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if err == nil {
			if current.IsUsed {
				return domainErrors.ErrAlreadyUsed
			}
			if !current.Expired(proof.IssuedAt) {
				return domainErrors.ErrProofStillValid
			}
		}
		if err := red.Reopen(proof.IssuedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE redemption_proofs SET revoked_at=$2 WHERE redemption_id=$1 AND revoked_at IS NULL`,
			red.ID, proof.IssuedAt); err != nil {
			return err
		}
		if err := insertProof(ctx, tx, proof); err != nil {
			return err
		}
		if err := updateRedemptionState(ctx, tx, red); err != nil {
			return err
		}
		result = red
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *redemptionRepository) GetRedemption(ctx context.Context, id uuid.UUID) (*model.Redemption, error) {
	var red model.Redemption
	err := r.storage.pool.QueryRow(ctx, `SELECT `+redemptionColumns+` FROM redemptions WHERE id=$1`, id).Scan(redemptionDest(&red)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, classify(err)
	}
	return &red, nil
}

func (r *redemptionRepository) CurrentProof(ctx context.Context, redemptionID uuid.UUID) (*model.Proof, error) {
	var proof model.Proof
	err := r.storage.pool.QueryRow(ctx, `SELECT `+proofColumns+` FROM redemption_proofs
        WHERE redemption_id=$1 ORDER BY (revoked_at IS NULL) DESC, issued_at DESC LIMIT 1`, redemptionID).Scan(proofDest(&proof)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, classify(err)
	}
	return &proof, nil
}

func (r *redemptionRepository) ListByCustomer(ctx context.Context, customerID, storeID string) ([]model.Redemption, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if storeID == "" {
		rows, err = r.storage.pool.Query(ctx, `SELECT `+redemptionColumns+` FROM redemptions WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	} else {
		rows, err = r.storage.pool.Query(ctx, `SELECT `+redemptionColumns+` FROM redemptions WHERE customer_id=$1 AND store_id=$2 ORDER BY created_at DESC`, customerID, storeID)
	}
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []model.Redemption
	for rows.Next() {
		var red model.Redemption
		if err := rows.Scan(redemptionDest(&red)...); err != nil {
			return nil, err
		}
		result = append(result, red)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ExpireStale flips pending redemptions whose live proof lapsed. Reservations stay untouched;
// only cancellation returns points.
func (r *redemptionRepository) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	tag, err := r.storage.pool.Exec(ctx, `UPDATE redemptions SET status='expired', validation_status='expired', updated_at=$1
        WHERE id IN (
            SELECT r.id FROM redemptions r
            JOIN redemption_proofs p ON p.redemption_id = r.id AND p.revoked_at IS NULL
            WHERE r.status='pending' AND NOT p.is_used AND p.expires_at < $1
            ORDER BY p.expires_at
            LIMIT $2
            FOR UPDATE OF r SKIP LOCKED
        )`, now, limit)
	if err != nil {
		return 0, classify(err)
	}
	return int(tag.RowsAffected()), nil
}
