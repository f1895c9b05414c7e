package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/polkiloo/loyaltyledger/internal/domain/errors"
	"github.com/polkiloo/loyaltyledger/internal/domain/repository"
)

const defaultTxTimeout = 5 * time.Second

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool      pgxPool
	logger    *slog.Logger
	txTimeout time.Duration
	now       func() time.Time
}

// Option customizes Storage.
type Option func(*Storage)

// WithTxTimeout bounds every transaction unit.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Storage) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

type ledgerRepository struct {
	storage *Storage
}

type pendingCreditRepository struct {
	storage *Storage
}

type rewardRepository struct {
	storage *Storage
}

type redemptionRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger, opts ...Option) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger, txTimeout: defaultTxTimeout, now: time.Now}
	for _, opt := range opts {
		opt(storage)
	}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Factory methods for domain repositories.
func (s *Storage) Ledger() repository.LedgerRepository {
	return &ledgerRepository{storage: s}
}

func (s *Storage) PendingCredits() repository.PendingCreditRepository {
	return &pendingCreditRepository{storage: s}
}

func (s *Storage) Rewards() repository.RewardRepository {
	return &rewardRepository{storage: s}
}

func (s *Storage) Redemptions() repository.RedemptionRepository {
	return &redemptionRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS balances (
            customer_id TEXT NOT NULL,
            store_id TEXT NOT NULL,
            available_points BIGINT NOT NULL DEFAULT 0 CHECK (available_points >= 0),
            reserved_points BIGINT NOT NULL DEFAULT 0 CHECK (reserved_points >= 0),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (customer_id, store_id)
        )`,
		`CREATE TABLE IF NOT EXISTS point_transactions (
            id UUID PRIMARY KEY,
            customer_id TEXT,
            tax_id TEXT,
            store_id TEXT NOT NULL,
            type TEXT NOT NULL CHECK (type IN ('award', 'redeem', 'expire', 'adjustment')),
            amount BIGINT NOT NULL,
            reference TEXT NOT NULL DEFAULT '',
            metadata JSONB NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            expires_at TIMESTAMPTZ,
            CHECK ((customer_id IS NULL) <> (tax_id IS NULL))
        )`,
		`CREATE TABLE IF NOT EXISTS pending_credits (
            id UUID PRIMARY KEY,
            tax_id TEXT NOT NULL,
            store_id TEXT NOT NULL,
            amount BIGINT NOT NULL CHECK (amount > 0),
            reference TEXT NOT NULL DEFAULT '',
            issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            expires_at TIMESTAMPTZ,
            migrated BOOLEAN NOT NULL DEFAULT FALSE,
            migrated_to_customer_id TEXT,
            migrated_at TIMESTAMPTZ,
            metadata JSONB NOT NULL DEFAULT '{}',
            CHECK (migrated = (migrated_to_customer_id IS NOT NULL))
        )`,
		`CREATE TABLE IF NOT EXISTS identity_links (
            tax_id TEXT PRIMARY KEY,
            customer_id TEXT NOT NULL,
            linked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS rewards (
            id TEXT PRIMARY KEY,
            store_id TEXT NOT NULL,
            title TEXT NOT NULL,
            cost_points BIGINT NOT NULL CHECK (cost_points > 0),
            quantity BIGINT CHECK (quantity >= 0),
            active BOOLEAN NOT NULL DEFAULT TRUE,
            redemption_validity_days INTEGER NOT NULL DEFAULT 30,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS redemptions (
            id UUID PRIMARY KEY,
            customer_id TEXT NOT NULL,
            store_id TEXT NOT NULL,
            reward_id TEXT NOT NULL REFERENCES rewards(id),
            cost_points BIGINT NOT NULL CHECK (cost_points > 0),
            status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'cancelled', 'expired', 'validated')),
            validation_status TEXT NOT NULL CHECK (validation_status IN ('pending', 'validated', 'rejected', 'expired')),
            redeemed_at TIMESTAMPTZ,
            metadata JSONB NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK ((validation_status = 'validated') = (redeemed_at IS NOT NULL))
        )`,
		`CREATE TABLE IF NOT EXISTS redemption_proofs (
            id UUID PRIMARY KEY,
            redemption_id UUID NOT NULL REFERENCES redemptions(id),
            store_id TEXT NOT NULL,
            qr_payload TEXT NOT NULL,
            verification_code TEXT NOT NULL,
            issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            expires_at TIMESTAMPTZ NOT NULL,
            is_used BOOLEAN NOT NULL DEFAULT FALSE,
            used_at TIMESTAMPTZ,
            validated_by_store BOOLEAN NOT NULL DEFAULT FALSE,
            validated_at TIMESTAMPTZ,
            store_validation_metadata JSONB,
            revoked_at TIMESTAMPTZ,
            CHECK (NOT validated_by_store OR is_used)
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_proofs_store_code ON redemption_proofs(store_id, verification_code)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_proofs_current ON redemption_proofs(redemption_id) WHERE revoked_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_customer ON point_transactions(customer_id, store_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_tax ON pending_credits(tax_id, store_id) WHERE NOT migrated`,
		`CREATE INDEX IF NOT EXISTS idx_redemptions_customer ON redemptions(customer_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// WithinTransaction executes function inside transaction boundary bounded by the tx timeout.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(context.Context, pgx.Tx) error) (err error) {
	timeout := s.txTimeout
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = classify(tx.Commit(ctx))
		}
	}()

	err = classify(fn(ctx, tx))
	return err
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Logger returns storage logger.
func (s *Storage) Logger() *slog.Logger {
	return s.logger
}

func (s *Storage) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// classify maps driver failures onto domain errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", domainErrors.ErrConcurrencyConflict, pgErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", domainErrors.ErrAlreadyExists, pgErr.ConstraintName)
		default:
			return fmt.Errorf("%w: %s (%s)", domainErrors.ErrPersistence, pgErr.Message, pgErr.Code)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domainErrors.ErrConcurrencyConflict, err)
	}
	return err
}

func jsonMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
