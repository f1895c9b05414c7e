package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/model"
)

func (r *redemptionRepository) Issue(ctx context.Context, issuance model.Issuance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	red := issuance.Redemption
	proof := issuance.Proof
	reward, ok := s.rewards[red.RewardID]
	if !ok || reward.StoreID != red.StoreID {
		return domainErrors.ErrRewardNotFound
	}
	if err := reward.CheckAvailable(); err != nil {
		return err
	}
	if reward.CostPoints != red.CostPoints {
		return fmt.Errorf("%w: cost changed", domainErrors.ErrRewardUnavailable)
	}
	if _, ok := s.redemptions[red.ID]; ok {
		return domainErrors.ErrAlreadyExists
	}
	if _, ok := s.codes[codeKey{storeID: proof.StoreID, code: proof.VerificationCode}]; ok {
		return fmt.Errorf("%w: verification code", domainErrors.ErrAlreadyExists)
	}

	b := s.balance(red.CustomerID, red.StoreID)
	if b.Available < red.CostPoints {
		return domainErrors.ErrInsufficientBalance
	}
	b.Available -= red.CostPoints
	b.Reserved += red.CostPoints
	b.UpdatedAt = red.CreatedAt

	if reward.Quantity != nil {
		q := *reward.Quantity - 1
		reward.Quantity = &q
		s.rewards[reward.ID] = reward
	}
	stored := cloneRedemption(&red)
	s.redemptions[red.ID] = &stored
	s.storeProof(proof)
	return nil
}

// storeProof indexes a proof by id and by (store, code). Callers hold mu.
func (s *Storage) storeProof(p model.Proof) {
	stored := cloneProof(&p)
	s.proofs[p.ID] = &stored
	s.codes[codeKey{storeID: p.StoreID, code: p.VerificationCode}] = p.ID
}

// findProof resolves a lookup; codes issued by the presenting store win over foreign ones.
func (s *Storage) findProof(lookup model.ProofLookup, storeID string) (*model.Proof, bool) {
	if lookup.ProofID != uuid.Nil {
		p, ok := s.proofs[lookup.ProofID]
		return p, ok
	}
	if id, ok := s.codes[codeKey{storeID: storeID, code: lookup.VerificationCode}]; ok {
		return s.proofs[id], true
	}
	var found *model.Proof
	for _, p := range s.proofs {
		if p.VerificationCode != lookup.VerificationCode {
			continue
		}
		if found == nil || p.IssuedAt.After(found.IssuedAt) {
			found = p
		}
	}
	return found, found != nil
}

func (r *redemptionRepository) Validate(ctx context.Context, lookup model.ProofLookup, attempt model.ValidationAttempt) (*model.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	proof, ok := s.findProof(lookup, attempt.StoreID)
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	red, ok := s.redemptions[proof.RedemptionID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}

	verdict := model.Judge(*proof, *red, attempt)
	if verdict.Expire {
		red.Expire(attempt.At)
		return nil, verdict.Err
	}
	if verdict.Err != nil {
		return nil, verdict.Err
	}

	owner := red.CustomerID
	entry := model.Transaction{
		ID:         uuid.New(),
		CustomerID: &owner,
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
	if _, err := s.consumeReserved(entry, attempt.At); err != nil {
		return nil, err
	}
	proof.Consume(attempt.At, attempt.Metadata)
	red.Complete(attempt.At)
	return &model.ValidationResult{Redemption: cloneRedemption(red), Proof: cloneProof(proof)}, nil
}

func (r *redemptionRepository) Cancel(ctx context.Context, redemptionID uuid.UUID, storeID string, at time.Time, meta map[string]any) (*model.Redemption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	red, ok := s.redemptions[redemptionID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	if red.StoreID != storeID {
		return nil, domainErrors.ErrStoreMismatch
	}
	next := cloneRedemption(red)
	if err := next.Cancel(at); err != nil {
		return nil, err
	}
	b := s.balance(red.CustomerID, red.StoreID)
	if b.Reserved < red.CostPoints {
		return nil, fmt.Errorf("%w: reserved %d, release %d", domainErrors.ErrInsufficientBalance, b.Reserved, red.CostPoints)
	}
	b.Reserved -= red.CostPoints
	b.Available += red.CostPoints
	b.UpdatedAt = at

	if next.Metadata == nil {
		next.Metadata = map[string]any{}
	}
	for k, v := range meta {
		next.Metadata[k] = v
	}
	*red = next
	for _, p := range s.proofs {
		if p.RedemptionID == red.ID && p.RevokedAt == nil && !p.IsUsed {
			revokedAt := at
			p.RevokedAt = &revokedAt
		}
	}
	out := cloneRedemption(red)
	return &out, nil
}

// liveProof returns the unrevoked proof of a redemption. Callers hold mu.
func (s *Storage) liveProof(redemptionID uuid.UUID) *model.Proof {
	for _, p := range s.proofs {
		if p.RedemptionID == redemptionID && p.RevokedAt == nil {
			return p
		}
	}
	return nil
}

func (r *redemptionRepository) ReplaceProof(ctx context.Context, customerID string, proof model.Proof) (*model.Redemption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	red, ok := s.redemptions[proof.RedemptionID]
	if !ok || red.CustomerID != customerID {
		return nil, domainErrors.ErrNotFound
	}
	current := s.liveProof(red.ID)
	if current != nil {
		if current.IsUsed {
			return nil, domainErrors.ErrAlreadyUsed
		}
		if !current.Expired(proof.IssuedAt) {
			return nil, domainErrors.ErrProofStillValid
		}
	}
	if _, ok := s.codes[codeKey{storeID: proof.StoreID, code: proof.VerificationCode}]; ok {
		return nil, fmt.Errorf("%w: verification code", domainErrors.ErrAlreadyExists)
	}
	next := cloneRedemption(red)
	if err := next.Reopen(proof.IssuedAt); err != nil {
		return nil, err
	}
	if current != nil {
		revokedAt := proof.IssuedAt
		current.RevokedAt = &revokedAt
	}
	s.storeProof(proof)
	*red = next
	out := cloneRedemption(red)
	return &out, nil
}

func (r *redemptionRepository) GetRedemption(ctx context.Context, id uuid.UUID) (*model.Redemption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	red, ok := s.redemptions[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	out := cloneRedemption(red)
	return &out, nil
}

func (r *redemptionRepository) CurrentProof(ctx context.Context, redemptionID uuid.UUID) (*model.Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *model.Proof
	for _, p := range s.proofs {
		if p.RedemptionID != redemptionID {
			continue
		}
		if p.RevokedAt == nil {
			latest = p
			break
		}
		if latest == nil || p.IssuedAt.After(latest.IssuedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domainErrors.ErrNotFound
	}
	out := cloneProof(latest)
	return &out, nil
}

func (r *redemptionRepository) ListByCustomer(ctx context.Context, customerID, storeID string) ([]model.Redemption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []model.Redemption
	for _, red := range s.redemptions {
		if red.CustomerID != customerID || (storeID != "" && red.StoreID != storeID) {
			continue
		}
		result = append(result, cloneRedemption(red))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *redemptionRepository) ExpireStale(ctx context.Context, now time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s := r.storage
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, p := range s.proofs {
		if limit > 0 && expired >= limit {
			break
		}
		if p.RevokedAt != nil || p.IsUsed || !p.ExpiresAt.Before(now) {
			continue
		}
		red, ok := s.redemptions[p.RedemptionID]
		if !ok || red.Status != model.RedemptionPending {
			continue
		}
		red.Expire(now)
		expired++
	}
	return expired, nil
}
