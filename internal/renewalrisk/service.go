package renewalrisk

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wakala/renewal-analytics/internal/domain"
)

// ErrInvalidStatus is returned when a status update names an unknown status.
var ErrInvalidStatus = errors.New("invalid risk status")

const maxRiskScore = 100

// Config holds the thresholds the detectors compare against.
type Config struct {
	HealthScoreChurnRisk     int     `json:"health_score_churn_risk"`
	HealthScoreDowngradeRisk int     `json:"health_score_downgrade_risk"`
	OverdueInvoicesChurnRisk int     `json:"overdue_invoices_churn_risk"`
	OverdueAmountChurnRisk   float64 `json:"overdue_amount_churn_risk"`
	DaysUntilRenewalUrgent   int     `json:"days_until_renewal_urgent"`
	DaysUntilRenewalSoon     int     `json:"days_until_renewal_soon"`
	// MinIndicators is how many indicators must trigger before a risk is raised.
	MinIndicators int `json:"min_indicators"`
}

func DefaultConfig() Config {
	return Config{
		HealthScoreChurnRisk:     40,
		HealthScoreDowngradeRisk: 60,
		OverdueInvoicesChurnRisk: 3,
		OverdueAmountChurnRisk:   5000,
		DaysUntilRenewalUrgent:   30,
		DaysUntilRenewalSoon:     60,
		MinIndicators:            2,
	}
}

// Validate checks threshold ordering.
func (c Config) Validate() error {
	if c.HealthScoreChurnRisk > c.HealthScoreDowngradeRisk {
		return fmt.Errorf("churn health threshold %d exceeds downgrade threshold %d",
			c.HealthScoreChurnRisk, c.HealthScoreDowngradeRisk)
	}
	if c.DaysUntilRenewalUrgent > c.DaysUntilRenewalSoon {
		return fmt.Errorf("urgent renewal window %d exceeds soon window %d",
			c.DaysUntilRenewalUrgent, c.DaysUntilRenewalSoon)
	}
	if c.MinIndicators < 1 {
		return fmt.Errorf("min indicators must be at least 1, got %d", c.MinIndicators)
	}
	return nil
}

// RiskStore persists flagged risks. Implementations must serialize
// concurrent appends and status updates.
type RiskStore interface {
	AppendRisks(risks []domain.RenewalRisk) error
	ListRisks(q domain.RiskQuery) ([]domain.RenewalRisk, error)
	UpdateRiskStatus(id string, status domain.RiskStatus) (bool, error)
}

// Summary aggregates the stored risks.
type Summary struct {
	Total        int                       `json:"total"`
	ByType       map[domain.RiskType]int   `json:"by_type"`
	ByStatus     map[domain.RiskStatus]int `json:"by_status"`
	AverageScore float64                   `json:"average_score"`
}

// Service flags renewal risks from a contract's health score and invoices.
type Service struct {
	store RiskStore
	cfg   Config
	now   func() time.Time
	newID func() string
}

type Option func(*Service)

// WithClock overrides the service's notion of "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides risk ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(store RiskStore, cfg Config, opts ...Option) *Service {
	s := &Service{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		newID: func() string { return "RISK-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// detection is the evidence a single detector gathered.
type detection struct {
	riskType   domain.RiskType
	indicators []domain.RiskIndicator
	score      float64
}

func (d *detection) add(name string, value, threshold any, points float64) {
	d.indicators = append(d.indicators, domain.RiskIndicator{
		Name:      name,
		Value:     value,
		Threshold: threshold,
		Exceeded:  true,
	})
	d.score += points
}

// AnalyzeRenewalRisks runs the churn, downgrade, late renewal and price
// sensitivity detectors. A detector only raises a risk once at least
// MinIndicators of its indicators trigger.
func (s *Service) AnalyzeRenewalRisks(
	contract domain.Contract,
	health domain.RenewalHealthScore,
	invoices []domain.Invoice,
) ([]domain.RenewalRisk, error) {
	now := s.now()

	detections := []detection{
		s.detectChurn(health, invoices),
		s.detectDowngrade(contract, health),
		s.detectLateRenewal(contract, invoices, now),
		s.detectPriceSensitivity(contract, invoices),
	}

	var risks []domain.RenewalRisk
	for _, d := range detections {
		if len(d.indicators) < s.cfg.MinIndicators {
			continue
		}
		risks = append(risks, domain.RenewalRisk{
			ID:         s.newID(),
			ContractID: contract.ID,
			CustomerID: contract.CustomerID,
			RiskType:   d.riskType,
			RiskScore:  math.Min(d.score, maxRiskScore),
			Indicators: d.indicators,
			FlaggedAt:  now,
			Status:     domain.RiskStatusNew,
		})
	}

	if len(risks) == 0 {
		return risks, nil
	}
	if err := s.store.AppendRisks(risks); err != nil {
		return nil, fmt.Errorf("store risks: %w", err)
	}

	log.Info().
		Str("contract_id", contract.ID).
		Int("risks", len(risks)).
		Msg("renewal risks flagged")
	return risks, nil
}

func (s *Service) detectChurn(health domain.RenewalHealthScore, invoices []domain.Invoice) detection {
	d := detection{riskType: domain.RiskChurn}

	if health.Score <= s.cfg.HealthScoreChurnRisk {
		d.add("health_score", health.Score, s.cfg.HealthScoreChurnRisk, 40)
	}

	overdueCount, overdueAmount := overdueTotals(invoices)
	if overdueCount >= s.cfg.OverdueInvoicesChurnRisk {
		d.add("overdue_invoices", overdueCount, s.cfg.OverdueInvoicesChurnRisk, 30)
	}
	if overdueAmount >= s.cfg.OverdueAmountChurnRisk {
		d.add("overdue_amount", overdueAmount, s.cfg.OverdueAmountChurnRisk, 30)
	}

	if health.RiskLevel == domain.RiskCritical {
		d.add("risk_level", string(health.RiskLevel), string(domain.RiskCritical), 20)
	}

	negative := 0
	for _, f := range health.Factors {
		if f.Impact == domain.ImpactNegative {
			negative++
		}
	}
	if negative >= 2 {
		d.add("negative_factors", negative, 2, 10)
	}
	return d
}

func (s *Service) detectDowngrade(contract domain.Contract, health domain.RenewalHealthScore) detection {
	d := detection{riskType: domain.RiskDowngrade}

	if health.Score > s.cfg.HealthScoreChurnRisk && health.Score <= s.cfg.HealthScoreDowngradeRisk {
		d.add("moderate_health_score", health.Score, s.cfg.HealthScoreDowngradeRisk, 40)
	}

	if usage, ok := health.Factor(domain.FactorUsageTrend); ok && usage.Value < 50 {
		d.add("low_usage", usage.Value, 50, 35)
	}

	if value, ok := health.Factor(domain.FactorContractValue); ok &&
		contract.TotalValue > 50000 && value.Impact != domain.ImpactPositive {
		d.add("high_value_contract", contract.TotalValue, 50000, 25)
	}
	return d
}

func (s *Service) detectLateRenewal(contract domain.Contract, invoices []domain.Invoice, now time.Time) detection {
	d := detection{riskType: domain.RiskLateRenewal}
	days := domain.DaysUntil(now, contract.RenewalDate)

	switch {
	case days <= s.cfg.DaysUntilRenewalUrgent:
		d.add("renewal_urgent", days, s.cfg.DaysUntilRenewalUrgent, 40)
	case days <= s.cfg.DaysUntilRenewalSoon:
		d.add("renewal_soon", days, s.cfg.DaysUntilRenewalSoon, 25)
	}

	unpaid := 0
	for _, inv := range invoices {
		if inv.Status != domain.InvoicePaid && inv.Status != domain.InvoiceVoid {
			unpaid++
		}
	}
	if unpaid > 0 {
		d.add("unpaid_invoices", unpaid, 0, 25)
	}

	if !contract.AutoRenewal && days <= 90 {
		d.add("manual_renewal", "disabled", "enabled", 20)
	}
	return d
}

func (s *Service) detectPriceSensitivity(contract domain.Contract, invoices []domain.Invoice) detection {
	d := detection{riskType: domain.RiskPriceSensitivity}

	paid, late := 0, 0
	partial := 0
	for _, inv := range invoices {
		if inv.Status == domain.InvoicePartial {
			partial++
		}
		if inv.Status != domain.InvoicePaid || inv.PaidDate == nil {
			continue
		}
		paid++
		if inv.PaidDate.After(inv.DueDate) {
			late++
		}
	}

	var lateRatio float64
	if paid > 0 {
		lateRatio = float64(late) / float64(paid)
	}

	if lateRatio > 0.5 {
		d.add("late_payment_ratio", lateRatio, 0.5, 35)
	}
	if contract.TotalValue > 25000 && lateRatio > 0.3 {
		d.add("high_value_late_payments", lateRatio, 0.3, 30)
	}
	if partial > 0 {
		d.add("partial_payments", partial, 0, 25)
	}
	return d
}

func overdueTotals(invoices []domain.Invoice) (int, float64) {
	count := 0
	var amount float64
	for _, inv := range invoices {
		if inv.Status == domain.InvoiceOverdue {
			count++
			amount += inv.Amount
		}
	}
	return count, amount
}

// --- registry ---

func (s *Service) GetAllRisks() ([]domain.RenewalRisk, error) {
	return s.store.ListRisks(domain.RiskQuery{})
}

func (s *Service) GetRisksByCustomer(customerID string) ([]domain.RenewalRisk, error) {
	return s.store.ListRisks(domain.RiskQuery{CustomerID: customerID})
}

func (s *Service) GetRisksByContract(contractID string) ([]domain.RenewalRisk, error) {
	return s.store.ListRisks(domain.RiskQuery{ContractID: contractID})
}

func (s *Service) GetRisksByType(riskType domain.RiskType) ([]domain.RenewalRisk, error) {
	return s.store.ListRisks(domain.RiskQuery{RiskType: riskType})
}

// GetActiveRisks returns risks that are not resolved.
func (s *Service) GetActiveRisks() ([]domain.RenewalRisk, error) {
	return s.store.ListRisks(domain.RiskQuery{ActiveOnly: true})
}

// UpdateRiskStatus overwrites the status of the identified risk. It reports
// false when no such risk exists.
func (s *Service) UpdateRiskStatus(id string, status domain.RiskStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.UpdateRiskStatus(id, status)
}

// GetRiskSummary aggregates the stored risks without re-running detection.
func (s *Service) GetRiskSummary() (Summary, error) {
	risks, err := s.store.ListRisks(domain.RiskQuery{})
	if err != nil {
		return Summary{}, fmt.Errorf("list risks: %w", err)
	}

	sum := Summary{
		Total:    len(risks),
		ByType:   make(map[domain.RiskType]int),
		ByStatus: make(map[domain.RiskStatus]int),
	}
	var total float64
	for _, r := range risks {
		sum.ByType[r.RiskType]++
		sum.ByStatus[r.Status]++
		total += r.RiskScore
	}
	if len(risks) > 0 {
		sum.AverageScore = total / float64(len(risks))
	}
	return sum, nil
}
