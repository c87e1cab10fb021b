package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/wakala/renewal-analytics/internal/analysis"
	"github.com/wakala/renewal-analytics/internal/api"
	"github.com/wakala/renewal-analytics/internal/config"
	"github.com/wakala/renewal-analytics/internal/ingestion"
	"github.com/wakala/renewal-analytics/internal/renewalrisk"
	"github.com/wakala/renewal-analytics/internal/repository"
	"github.com/wakala/renewal-analytics/internal/scoring"
	"github.com/wakala/renewal-analytics/internal/underbilling"
)

// app holds the wired repositories and services.
type app struct {
	db *sql.DB

	contracts     *repository.ContractRepo
	invoices      *repository.InvoiceRepo
	subscriptions *repository.SubscriptionRepo
	scores        *repository.ScoreRepo
	alerts        *repository.AlertRepo
	risks         *repository.RiskRepo
	files         *repository.FileRepo

	detector  *underbilling.Detector
	riskSvc   *renewalrisk.Service
	analysis  *analysis.Service
	ingestion *ingestion.Service
}

func newApp(cfg *config.Config) (*app, error) {
	log.Info().Str("path", cfg.DBPath).Msg("initializing database")
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	a := &app{
		db:            db,
		contracts:     repository.NewContractRepo(db),
		invoices:      repository.NewInvoiceRepo(db),
		subscriptions: repository.NewSubscriptionRepo(db),
		scores:        repository.NewScoreRepo(db),
		alerts:        repository.NewAlertRepo(db),
		risks:         repository.NewRiskRepo(db),
		files:         repository.NewFileRepo(db),
	}

	a.detector = underbilling.NewDetector(a.alerts)
	a.riskSvc = renewalrisk.NewService(a.risks, cfg.Risk)
	a.analysis = analysis.NewService(
		a.contracts, a.invoices, a.subscriptions, a.scores,
		scoring.NewEngine(cfg.Scoring), a.detector, a.riskSvc,
	)
	a.ingestion = ingestion.NewService(a.contracts, a.invoices, a.subscriptions, a.files, a.analysis)
	return a, nil
}

func (a *app) deps(reportingCcy string) api.Deps {
	return api.Deps{
		Contracts:    a.contracts,
		Invoices:     a.invoices,
		Scores:       a.scores,
		Alerts:       a.alerts,
		Risks:        a.risks,
		Files:        a.files,
		Detector:     a.detector,
		RiskService:  a.riskSvc,
		Analysis:     a.analysis,
		Ingestion:    a.ingestion,
		ReportingCcy: reportingCcy,
	}
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("close database")
	}
}

// seedIfEmpty loads the generated testdata exports into an empty database
// and runs one analysis over the result.
func (a *app) seedIfEmpty(ctx context.Context) error {
	count, err := a.contracts.Count()
	if err != nil {
		return fmt.Errorf("count contracts: %w", err)
	}
	if count > 0 {
		log.Info().Int("contracts", count).Msg("database already populated, skipping seed")
		return nil
	}

	loader := ingestion.NewService(a.contracts, a.invoices, a.subscriptions, a.files, nil)
	seeds := []struct {
		file   string
		format string
	}{
		{"contracts_bundle.json", ingestion.FormatJSONBundle},
		{"invoices.csv", ingestion.FormatCSVInvoices},
	}
	for _, s := range seeds {
		data, path, err := readTestdata(s.file)
		if err != nil {
			return err
		}
		res, err := loader.Ingest(ctx, data, s.format)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		log.Info().
			Str("path", path).
			Int("contracts", res.Contracts).
			Int("invoices", res.Invoices).
			Int("subscriptions", res.Subscriptions).
			Msg("seeded from testdata")
	}

	if _, err := a.analysis.RunFullAnalysis(ctx); err != nil {
		return fmt.Errorf("analyze seed data: %w", err)
	}
	return nil
}

func readTestdata(name string) ([]byte, string, error) {
	candidates := []string{filepath.Join("testdata", name)}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", name),
			filepath.Join(dir, "..", "..", "testdata", name),
		)
	}

	var lastErr error
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("could not find %s in any candidate path: %w", name, lastErr)
}
