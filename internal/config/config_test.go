package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/renewal-analytics/internal/renewalrisk"
	"github.com/wakala/renewal-analytics/internal/scoring"
)

// loadIsolated loads from a path that does not exist so a stray .env in the
// working directory cannot leak into the test.
func loadIsolated(t *testing.T) (*Config, error) {
	t.Helper()
	return Load(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadIsolated(t)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "renewals.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "USD", cfg.ReportingCurrency)
	assert.Equal(t, scoring.DefaultConfig(), cfg.Scoring)
	assert.Equal(t, renewalrisk.DefaultConfig(), cfg.Risk)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REPORTING_CURRENCY", "eur")
	t.Setenv("SCORING_USAGE_DECLINE_WEIGHT", "0.4")
	t.Setenv("SCORING_RISK_THRESHOLD", "65")
	t.Setenv("RISK_MIN_INDICATORS", "3")
	t.Setenv("RISK_OVERDUE_AMOUNT_CHURN", "7500.5")

	cfg, err := loadIsolated(t)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "EUR", cfg.ReportingCurrency)
	assert.Equal(t, 0.4, cfg.Scoring.UsageDeclineWeight)
	assert.Equal(t, 65, cfg.Scoring.RiskThreshold)
	assert.Equal(t, 3, cfg.Risk.MinIndicators)
	assert.Equal(t, 7500.5, cfg.Risk.OverdueAmountChurnRisk)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SCORING_CONTRACT_VALUE_WEIGHT", "heavy")
	t.Setenv("RISK_DAYS_RENEWAL_SOON", "soon")

	cfg, err := loadIsolated(t)
	require.NoError(t, err)

	assert.Equal(t, 0.15, cfg.Scoring.ContractValueWeight)
	assert.Equal(t, 60, cfg.Risk.DaysUntilRenewalSoon)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DB_PATH=/tmp/renewals-test.db\nLOG_FORMAT=json\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DB_PATH")
		os.Unsetenv("LOG_FORMAT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/renewals-test.db", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port out of range", "PORT", "70000"},
		{"negative weight", "SCORING_INVOICE_OVERDUE_WEIGHT", "-1"},
		{"inverted thresholds", "SCORING_CRITICAL_THRESHOLD", "75"},
		{"zero min indicators", "RISK_MIN_INDICATORS", "0"},
		{"unknown reporting currency", "REPORTING_CURRENCY", "btc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := loadIsolated(t)
			assert.Error(t, err)
		})
	}
}
