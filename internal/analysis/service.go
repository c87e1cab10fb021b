package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/wakala/renewal-analytics/internal/domain"
	"github.com/wakala/renewal-analytics/internal/metrics"
	"github.com/wakala/renewal-analytics/internal/renewalrisk"
	"github.com/wakala/renewal-analytics/internal/repository"
	"github.com/wakala/renewal-analytics/internal/scoring"
	"github.com/wakala/renewal-analytics/internal/underbilling"
)

// Result summarises a full analysis run.
type Result struct {
	ContractsAnalyzed int            `json:"contracts_analyzed"`
	ScoresComputed    int            `json:"scores_computed"`
	ScoreFailures     int            `json:"score_failures"`
	AlertsDetected    int            `json:"alerts_detected"`
	RisksFlagged      int            `json:"risks_flagged"`
	ContractFailures  int            `json:"contract_failures"`
	ByRiskLevel       map[string]int `json:"by_risk_level"`
	DurationMS        int64          `json:"duration_ms"`
}

// ContractAnalysis is the outcome of analysing a single contract.
type ContractAnalysis struct {
	Contract    domain.Contract            `json:"contract"`
	HealthScore domain.RenewalHealthScore  `json:"health_score"`
	Alerts      []domain.UnderbillingAlert `json:"alerts"`
	Risks       []domain.RenewalRisk       `json:"risks"`
}

// Service loads billing data from the repositories and runs the scoring
// engine, the underbilling detector and the renewal risk service over it.
type Service struct {
	contracts     *repository.ContractRepo
	invoices      *repository.InvoiceRepo
	subscriptions *repository.SubscriptionRepo
	scores        *repository.ScoreRepo

	engine   *scoring.Engine
	detector *underbilling.Detector
	risks    *renewalrisk.Service
}

func NewService(
	contracts *repository.ContractRepo,
	invoices *repository.InvoiceRepo,
	subscriptions *repository.SubscriptionRepo,
	scores *repository.ScoreRepo,
	engine *scoring.Engine,
	detector *underbilling.Detector,
	risks *renewalrisk.Service,
) *Service {
	return &Service{
		contracts:     contracts,
		invoices:      invoices,
		subscriptions: subscriptions,
		scores:        scores,
		engine:        engine,
		detector:      detector,
		risks:         risks,
	}
}

// billingData is everything a run needs, grouped by contract ID.
type billingData struct {
	contracts     []domain.Contract
	invoices      map[string][]domain.Invoice
	subscriptions map[string][]domain.Subscription
}

func (s *Service) load(ctx context.Context) (*billingData, error) {
	var (
		contracts []domain.Contract
		invoices  []domain.Invoice
		subs      []domain.Subscription
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var g errgroup.Group
	g.Go(func() error {
		var err error
		contracts, err = s.contracts.All()
		if err != nil {
			return fmt.Errorf("load contracts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		invoices, err = s.invoices.All()
		if err != nil {
			return fmt.Errorf("load invoices: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		subs, err = s.subscriptions.All()
		if err != nil {
			return fmt.Errorf("load subscriptions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := &billingData{
		contracts:     contracts,
		invoices:      make(map[string][]domain.Invoice),
		subscriptions: make(map[string][]domain.Subscription),
	}
	// Invoices arrive newest first and keep that order per contract.
	for _, inv := range invoices {
		data.invoices[inv.ContractID] = append(data.invoices[inv.ContractID], inv)
	}
	for _, sub := range subs {
		data.subscriptions[sub.ContractID] = append(data.subscriptions[sub.ContractID], sub)
	}
	return data, nil
}

// RunFullAnalysis scores every live (active or pending) contract, stores the
// scores, then runs underbilling detection and renewal risk analysis per
// contract. A contract whose detection fails is logged and skipped.
func (s *Service) RunFullAnalysis(ctx context.Context) (*Result, error) {
	start := time.Now()

	data, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var live []domain.Contract
	for _, c := range data.contracts {
		if c.Status == domain.ContractActive || c.Status == domain.ContractPending {
			live = append(live, c)
		}
	}

	scores := s.engine.CalculateBatchScores(live, data.invoices, data.subscriptions)
	if err := s.scores.SaveAll(scores); err != nil {
		return nil, fmt.Errorf("save scores: %w", err)
	}
	metrics.RecordScores(scores)
	metrics.ScoreFailuresTotal.Add(float64(len(live) - len(scores)))

	scoreByContract := make(map[string]domain.RenewalHealthScore, len(scores))
	result := &Result{
		ContractsAnalyzed: len(live),
		ScoresComputed:    len(scores),
		ScoreFailures:     len(live) - len(scores),
		ByRiskLevel:       make(map[string]int),
	}
	for _, sc := range scores {
		scoreByContract[sc.ContractID] = sc
		result.ByRiskLevel[string(sc.RiskLevel)]++
	}

	for _, c := range live {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		invoices := data.invoices[c.ID]
		alerts, err := s.detector.DetectUnderbilling(c, invoices, data.subscriptions[c.ID])
		if err != nil {
			log.Error().Err(err).Str("contract_id", c.ID).Msg("underbilling detection failed")
			result.ContractFailures++
			continue
		}
		result.AlertsDetected += len(alerts)
		metrics.RecordAlerts(alerts)

		score, ok := scoreByContract[c.ID]
		if !ok {
			continue
		}
		risks, err := s.risks.AnalyzeRenewalRisks(c, score, invoices)
		if err != nil {
			log.Error().Err(err).Str("contract_id", c.ID).Msg("renewal risk analysis failed")
			result.ContractFailures++
			continue
		}
		result.RisksFlagged += len(risks)
		metrics.RecordRisks(risks)
	}

	elapsed := time.Since(start)
	result.DurationMS = elapsed.Milliseconds()
	metrics.AnalysisDuration.WithLabelValues("full").Observe(elapsed.Seconds())

	log.Info().
		Int("contracts", result.ContractsAnalyzed).
		Int("scores", result.ScoresComputed).
		Int("alerts", result.AlertsDetected).
		Int("risks", result.RisksFlagged).
		Int("failures", result.ContractFailures).
		Dur("duration", elapsed).
		Msg("analysis complete")

	return result, nil
}

// AnalyzeContract runs the full pipeline for one contract regardless of its
// status. It returns an error wrapping repository.ErrNotFound for unknown IDs.
func (s *Service) AnalyzeContract(ctx context.Context, contractID string) (*ContractAnalysis, error) {
	start := time.Now()

	contract, err := s.contracts.GetByID(contractID)
	if err != nil {
		return nil, err
	}

	var (
		invoices []domain.Invoice
		subs     []domain.Subscription
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var g errgroup.Group
	g.Go(func() error {
		var err error
		invoices, err = s.invoices.ListByContract(contractID)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.subscriptions.ListByContract(contractID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load billing data for %s: %w", contractID, err)
	}

	score := s.engine.CalculateHealthScore(*contract, invoices, subs)
	if err := s.scores.SaveAll([]domain.RenewalHealthScore{score}); err != nil {
		return nil, fmt.Errorf("save score: %w", err)
	}
	metrics.RecordScores([]domain.RenewalHealthScore{score})

	alerts, err := s.detector.DetectUnderbilling(*contract, invoices, subs)
	if err != nil {
		return nil, fmt.Errorf("detect underbilling: %w", err)
	}
	metrics.RecordAlerts(alerts)

	risks, err := s.risks.AnalyzeRenewalRisks(*contract, score, invoices)
	if err != nil {
		return nil, fmt.Errorf("analyze renewal risks: %w", err)
	}
	metrics.RecordRisks(risks)

	metrics.AnalysisDuration.WithLabelValues("contract").Observe(time.Since(start).Seconds())

	if alerts == nil {
		alerts = []domain.UnderbillingAlert{}
	}
	if risks == nil {
		risks = []domain.RenewalRisk{}
	}
	return &ContractAnalysis{
		Contract:    *contract,
		HealthScore: score,
		Alerts:      alerts,
		Risks:       risks,
	}, nil
}
