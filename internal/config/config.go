package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress              string
	DatabaseURI             string
	AuthSecret              string
	AuthTokenTTL            time.Duration
	ProofSecret             string
	PointingRulesFile       string
	TaxIDCheckDigits        bool
	NotifyWebhookURL        string
	NotifyWorkers           int
	NotifyQueueSize         int
	TxTimeout               time.Duration
	RetryAttempts           int
	RetryBackoff            time.Duration
	ExpirySweepInterval     time.Duration
	ExpirySweepBatch        int
	ValidationRatePerMinute int
	ValidationRateBurst     int
	LogLevel                string
	LogFile                 string
	ShutdownTimeout         time.Duration
}

const (
	defaultRunAddress          = ":8080"
	defaultAuthSecret          = "change-me-in-production"
	defaultAuthTokenTTL        = 24 * time.Hour
	defaultProofSecret         = "change-me-proof-secret"
	defaultNotifyWorkers       = 2
	defaultNotifyQueueSize     = 256
	defaultTxTimeout           = 5 * time.Second
	defaultRetryAttempts       = 3
	defaultRetryBackoff        = 50 * time.Millisecond
	defaultExpirySweepInterval = time.Minute
	defaultExpirySweepBatch    = 100
	defaultValidationRate      = 60
	defaultValidationBurst     = 10
	defaultLogLevel            = "info"
	defaultShutdownTimeout     = 10 * time.Second
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:              getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:             getString(lookup, "DATABASE_URI", ""),
		AuthSecret:              getString(lookup, "AUTH_SECRET", defaultAuthSecret),
		AuthTokenTTL:            getDuration(lookup, "AUTH_TOKEN_TTL", defaultAuthTokenTTL),
		ProofSecret:             getString(lookup, "PROOF_SECRET", defaultProofSecret),
		PointingRulesFile:       getString(lookup, "POINTING_RULES_FILE", ""),
		TaxIDCheckDigits:        getBool(lookup, "TAX_ID_CHECK_DIGITS", false),
		NotifyWebhookURL:        getString(lookup, "NOTIFY_WEBHOOK_URL", ""),
		NotifyWorkers:           getInt(lookup, "NOTIFY_WORKERS", defaultNotifyWorkers),
		NotifyQueueSize:         getInt(lookup, "NOTIFY_QUEUE_SIZE", defaultNotifyQueueSize),
		TxTimeout:               getDuration(lookup, "TX_TIMEOUT", defaultTxTimeout),
		RetryAttempts:           getInt(lookup, "RETRY_ATTEMPTS", defaultRetryAttempts),
		RetryBackoff:            getDuration(lookup, "RETRY_BACKOFF", defaultRetryBackoff),
		ExpirySweepInterval:     getDuration(lookup, "EXPIRY_SWEEP_INTERVAL", defaultExpirySweepInterval),
		ExpirySweepBatch:        getInt(lookup, "EXPIRY_SWEEP_BATCH", defaultExpirySweepBatch),
		ValidationRatePerMinute: getInt(lookup, "VALIDATION_RATE_PER_MINUTE", defaultValidationRate),
		ValidationRateBurst:     getInt(lookup, "VALIDATION_RATE_BURST", defaultValidationBurst),
		LogLevel:                getString(lookup, "LOG_LEVEL", defaultLogLevel),
		LogFile:                 getString(lookup, "LOG_FILE", ""),
		ShutdownTimeout:         getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	fs := flag.NewFlagSet("loyaltyledger", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		txTimeoutStr       = cfg.TxTimeout.String()
		sweepIntervalStr   = cfg.ExpirySweepInterval.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN, empty for in-memory storage")
	fs.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "Secret for verifying caller tokens")
	fs.StringVar(&cfg.ProofSecret, "proof-secret", cfg.ProofSecret, "Master secret for redemption proofs")
	fs.StringVar(&cfg.PointingRulesFile, "rules", cfg.PointingRulesFile, "YAML file with store pointing rules")
	fs.BoolVar(&cfg.TaxIDCheckDigits, "tax-id-check-digits", cfg.TaxIDCheckDigits, "Reject tax IDs with wrong CPF check digits")
	fs.StringVar(&cfg.NotifyWebhookURL, "notify-url", cfg.NotifyWebhookURL, "Webhook receiving ledger events")
	fs.IntVar(&cfg.NotifyWorkers, "notify-workers", cfg.NotifyWorkers, "Number of notification workers")
	fs.StringVar(&txTimeoutStr, "tx-timeout", txTimeoutStr, "Timeout of one storage unit")
	fs.StringVar(&sweepIntervalStr, "sweep-interval", sweepIntervalStr, "Interval between expiry sweeps")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.TxTimeout, err = time.ParseDuration(txTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid tx timeout: %w", err)
	}

	if cfg.ExpirySweepInterval, err = time.ParseDuration(sweepIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if cfg.AuthSecret, err = secretFromFile(lookup, "AUTH_SECRET_FILE", cfg.AuthSecret); err != nil {
		return nil, err
	}

	if cfg.ProofSecret, err = secretFromFile(lookup, "PROOF_SECRET_FILE", cfg.ProofSecret); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.NotifyWorkers <= 0 {
		cfg.NotifyWorkers = defaultNotifyWorkers
	}
	if cfg.NotifyQueueSize <= 0 {
		cfg.NotifyQueueSize = defaultNotifyQueueSize
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = defaultTxTimeout
	}
	if cfg.AuthTokenTTL <= 0 {
		cfg.AuthTokenTTL = defaultAuthTokenTTL
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.ExpirySweepInterval <= 0 {
		cfg.ExpirySweepInterval = defaultExpirySweepInterval
	}
	if cfg.ExpirySweepBatch <= 0 {
		cfg.ExpirySweepBatch = defaultExpirySweepBatch
	}
	if cfg.ValidationRatePerMinute <= 0 {
		cfg.ValidationRatePerMinute = defaultValidationRate
	}
	if cfg.ValidationRateBurst <= 0 {
		cfg.ValidationRateBurst = defaultValidationBurst
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
}

func secretFromFile(lookup envLookup, key, current string) (string, error) {
	path, ok := lookup(key)
	if !ok || path == "" {
		return current, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(key), err)
	}
	return strings.TrimSpace(string(content)), nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(lookup envLookup, key string, def bool) bool {
	if v, ok := lookup(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
