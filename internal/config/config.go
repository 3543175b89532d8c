package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// Config chứa toàn bộ application configuration
// Struct này được populate từ environment variables
type Config struct {
	App         AppConfig
	Store       StoreConfig
	Redis       RedisConfig
	Circulation CirculationConfig
	Jobs        JobsConfig
	Tracing     TracingConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	LogLevel    string
}

// StoreConfig selects the ledger backend. Postgres pool settings live in
// LoadDatabaseConfig.
type StoreConfig struct {
	Driver     string // postgres | sqlite
	SQLitePath string
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
	// Disabled falls back to the in-process cache (single instance deployments).
	Disabled bool
}

// =====================================================
// CIRCULATION POLICY
// =====================================================

type CirculationConfig struct {
	DefaultLoanPeriodDays     int
	MaxLoanPeriodDays         int
	RenewalExtensionDays      int
	RenewalGraceDays          int
	MaxRenewals               int // 0 = unlimited
	DefaultMaxConcurrentLoans int
	FinePerDay                decimal.Decimal
	MaxFinePerDay             decimal.Decimal
	BorrowerCacheTTL          time.Duration
	IdempotencyTTL            time.Duration
}

type JobsConfig struct {
	Concurrency         int
	RefreshFinesCron    string
	ReconcileCron       string
	ReconcileOnOverride bool
}

type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	SampleRatio  float64
	Exporter     string // stdout, otlp
	OTLPEndpoint string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Load đọc config từ environment variables
func Load() (*Config, error) {
	finePerDay, err := decimal.NewFromString(getEnv("CIRCULATION_FINE_PER_DAY", "1.00"))
	if err != nil {
		return nil, fmt.Errorf("invalid CIRCULATION_FINE_PER_DAY: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Circulation API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver:     getEnv("STORE_DRIVER", DriverPostgres),
			SQLitePath: getEnv("SQLITE_PATH", "./data/circulation.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Disabled: getEnvBool("REDIS_DISABLED", false),
		},
		Circulation: CirculationConfig{
			DefaultLoanPeriodDays:     getEnvInt("CIRCULATION_LOAN_PERIOD_DAYS", 14),
			MaxLoanPeriodDays:         getEnvInt("CIRCULATION_MAX_LOAN_PERIOD_DAYS", 365),
			RenewalExtensionDays:      getEnvInt("CIRCULATION_RENEWAL_DAYS", 14),
			RenewalGraceDays:          getEnvInt("CIRCULATION_RENEWAL_GRACE_DAYS", 7),
			MaxRenewals:               getEnvInt("CIRCULATION_MAX_RENEWALS", 0),
			DefaultMaxConcurrentLoans: getEnvInt("CIRCULATION_MAX_CONCURRENT_LOANS", 5),
			FinePerDay:                finePerDay,
			MaxFinePerDay:             decimal.NewFromInt(100),
			BorrowerCacheTTL:          getEnvDuration("CIRCULATION_BORROWER_CACHE_TTL", 5*time.Minute),
			IdempotencyTTL:            getEnvDuration("CIRCULATION_IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Jobs: JobsConfig{
			Concurrency:         getEnvInt("WORKER_CONCURRENCY", 5),
			RefreshFinesCron:    getEnv("JOB_REFRESH_FINES_CRON", "0 * * * *"),
			ReconcileCron:       getEnv("JOB_RECONCILE_CRON", "*/30 * * * *"),
			ReconcileOnOverride: getEnvBool("JOB_RECONCILE_ON_OVERRIDE", true),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "circulation-backend"),
			SampleRatio:  getEnvFloat("TRACING_SAMPLE_RATIO", 1.0),
			Exporter:     getEnv("TRACING_EXPORTER", "stdout"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
	}

	// Validate critical config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate kiểm tra config có hợp lệ không
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Store,
		validation.Field(&c.Store.Driver, validation.Required, validation.In(DriverPostgres, DriverSQLite)),
		validation.Field(&c.Store.SQLitePath, validation.When(c.Store.Driver == DriverSQLite, validation.Required)),
	); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := c.Circulation.Validate(); err != nil {
		return fmt.Errorf("circulation: %w", err)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be between 0 and 1")
	}

	if err := validation.Validate(c.Tracing.Exporter, validation.In("stdout", "otlp")); err != nil {
		return fmt.Errorf("TRACING_EXPORTER: %w", err)
	}

	return nil
}

// Validate enforces the policy bounds: loan period 1..365 days, fine 0..100 per day.
func (c CirculationConfig) Validate() error {
	if c.FinePerDay.IsNegative() {
		return fmt.Errorf("fine per day must not be negative")
	}
	if c.FinePerDay.GreaterThan(c.MaxFinePerDay) {
		return fmt.Errorf("fine per day must not exceed %s", c.MaxFinePerDay.StringFixed(2))
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxLoanPeriodDays, validation.Required, validation.Max(365)),
		validation.Field(&c.DefaultLoanPeriodDays, validation.Required, validation.Min(1), validation.Max(c.MaxLoanPeriodDays)),
		validation.Field(&c.RenewalExtensionDays, validation.Required, validation.Min(1), validation.Max(90)),
		validation.Field(&c.RenewalGraceDays, validation.Min(0)),
		validation.Field(&c.MaxRenewals, validation.Min(0)),
		validation.Field(&c.DefaultMaxConcurrentLoans, validation.Required, validation.Min(1), validation.Max(50)),
	)
}

// DefaultCirculation returns the policy defaults without reading the environment.
func DefaultCirculation() CirculationConfig {
	return CirculationConfig{
		DefaultLoanPeriodDays:     14,
		MaxLoanPeriodDays:         365,
		RenewalExtensionDays:      14,
		RenewalGraceDays:          7,
		DefaultMaxConcurrentLoans: 5,
		FinePerDay:                decimal.NewFromInt(1),
		MaxFinePerDay:             decimal.NewFromInt(100),
		BorrowerCacheTTL:          5 * time.Minute,
		IdempotencyTTL:            24 * time.Hour,
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
