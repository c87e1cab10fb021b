package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/wakala/renewal-analytics/internal/currency"
	"github.com/wakala/renewal-analytics/internal/renewalrisk"
	"github.com/wakala/renewal-analytics/internal/scoring"
)

// Config holds everything the server and the analytics core read from the
// environment.
type Config struct {
	Port              string
	DBPath            string
	LogLevel          string
	LogFormat         string
	ReportingCurrency string

	Scoring scoring.Config
	Risk    renewalrisk.Config
}

// Load reads configuration from the environment. A .env file (or the given
// files) is loaded first if present. Unparseable values fall back to their
// defaults with a warning.
func Load(files ...string) (*Config, error) {
	// Best-effort .env loading
	_ = godotenv.Load(files...)

	sc := scoring.DefaultConfig()
	rc := renewalrisk.DefaultConfig()

	cfg := &Config{
		Port:              envOrDefault("PORT", "8080"),
		DBPath:            envOrDefault("DB_PATH", "renewals.db"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("LOG_FORMAT", "console"),
		ReportingCurrency: strings.ToUpper(envOrDefault("REPORTING_CURRENCY", "USD")),
		Scoring: scoring.Config{
			InvoiceOverdueWeight:   envFloat("SCORING_INVOICE_OVERDUE_WEIGHT", sc.InvoiceOverdueWeight),
			UsageDeclineWeight:     envFloat("SCORING_USAGE_DECLINE_WEIGHT", sc.UsageDeclineWeight),
			ContractValueWeight:    envFloat("SCORING_CONTRACT_VALUE_WEIGHT", sc.ContractValueWeight),
			RenewalProximityWeight: envFloat("SCORING_RENEWAL_PROXIMITY_WEIGHT", sc.RenewalProximityWeight),
			RiskThreshold:          envInt("SCORING_RISK_THRESHOLD", sc.RiskThreshold),
			CriticalThreshold:      envInt("SCORING_CRITICAL_THRESHOLD", sc.CriticalThreshold),
		},
		Risk: renewalrisk.Config{
			HealthScoreChurnRisk:     envInt("RISK_HEALTH_SCORE_CHURN", rc.HealthScoreChurnRisk),
			HealthScoreDowngradeRisk: envInt("RISK_HEALTH_SCORE_DOWNGRADE", rc.HealthScoreDowngradeRisk),
			OverdueInvoicesChurnRisk: envInt("RISK_OVERDUE_INVOICES_CHURN", rc.OverdueInvoicesChurnRisk),
			OverdueAmountChurnRisk:   envFloat("RISK_OVERDUE_AMOUNT_CHURN", rc.OverdueAmountChurnRisk),
			DaysUntilRenewalUrgent:   envInt("RISK_DAYS_RENEWAL_URGENT", rc.DaysUntilRenewalUrgent),
			DaysUntilRenewalSoon:     envInt("RISK_DAYS_RENEWAL_SOON", rc.DaysUntilRenewalSoon),
			MinIndicators:            envInt("RISK_MIN_INDICATORS", rc.MinIndicators),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the server settings and both analytics configs.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %q", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if _, err := currency.Rate(c.ReportingCurrency); err != nil {
		return fmt.Errorf("REPORTING_CURRENCY must be one of %s, got %q",
			strings.Join(currency.Supported(), ", "), c.ReportingCurrency)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("renewal risk: %w", err)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", fallback).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Float64("default", fallback).Msg("invalid number, using default")
		return fallback
	}
	return f
}
