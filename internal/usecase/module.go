package usecase

import (
	"time"

	"go.uber.org/fx"

	"github.com/polkiloo/loyaltyledger/internal/config"
)

// Clock returns the current instant. Replaced in tests.
type Clock func() time.Time

// NewClock returns the wall clock in UTC.
func NewClock() Clock {
	return func() time.Time { return time.Now().UTC() }
}

func newTaxIDPolicy(cfg *config.Config) TaxIDPolicy {
	return TaxIDPolicy{CheckDigits: cfg.TaxIDCheckDigits}
}

// Module provides core business use cases to the fx container.
var Module = fx.Provide(
	NewClock,
	newTaxIDPolicy,
	NewAuthUseCase,
	NewLedgerUseCase,
	NewAwardUseCase,
	NewMigrationUseCase,
	NewCatalogUseCase,
	NewIssuanceUseCase,
	NewValidationUseCase,
)
