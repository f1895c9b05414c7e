package repository

import "context"

// Factory describes access to different domain repositories.
type Factory interface {
	Ledger() LedgerRepository
	PendingCredits() PendingCreditRepository
	Rewards() RewardRepository
	Redemptions() RedemptionRepository
	HealthCheck(ctx context.Context) error
	Close()
}
