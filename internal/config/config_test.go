package config_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circulation-backend/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("CIRCULATION_FINE_PER_DAY", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "1.00", cfg.Circulation.FinePerDay.StringFixed(2))
	assert.Equal(t, 7, cfg.Circulation.RenewalGraceDays)
	assert.Equal(t, 14, cfg.Circulation.DefaultLoanPeriodDays)
}

func TestLoad_RejectsNegativeFine(t *testing.T) {
	t.Setenv("CIRCULATION_FINE_PER_DAY", "-0.5")

	_, err := config.Load()
	assert.ErrorContains(t, err, "must not be negative")
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Store:       config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: "ledger.db"},
			Circulation: config.DefaultCirculation(),
			Tracing:     config.TracingConfig{SampleRatio: 1, Exporter: "stdout"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "unknown driver", mutate: func(c *config.Config) { c.Store.Driver = "mysql" }},
		{name: "sqlite without path", mutate: func(c *config.Config) { c.Store.SQLitePath = "" }},
		{name: "fine above max", mutate: func(c *config.Config) { c.Circulation.FinePerDay = decimal.NewFromInt(101) }},
		{name: "loan period over a year", mutate: func(c *config.Config) { c.Circulation.DefaultLoanPeriodDays = 400 }},
		{name: "negative grace", mutate: func(c *config.Config) { c.Circulation.RenewalGraceDays = -1 }},
		{name: "sample ratio", mutate: func(c *config.Config) { c.Tracing.SampleRatio = 1.5 }},
		{name: "exporter", mutate: func(c *config.Config) { c.Tracing.Exporter = "zipkin" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
