package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wakala/renewal-analytics/internal/domain"
)

// paymentHistoryWeight is fixed and deliberately absent from Config.
const paymentHistoryWeight = 0.10

// Config holds the tunable weights and tier thresholds.
type Config struct {
	InvoiceOverdueWeight   float64 `json:"invoice_overdue_weight"`
	UsageDeclineWeight     float64 `json:"usage_decline_weight"`
	ContractValueWeight    float64 `json:"contract_value_weight"`
	RenewalProximityWeight float64 `json:"renewal_proximity_weight"`
	RiskThreshold          int     `json:"risk_threshold"`
	CriticalThreshold      int     `json:"critical_threshold"`
}

// DefaultConfig returns the stock weights and thresholds.
func DefaultConfig() Config {
	return Config{
		InvoiceOverdueWeight:   0.25,
		UsageDeclineWeight:     0.20,
		ContractValueWeight:    0.15,
		RenewalProximityWeight: 0.25,
		RiskThreshold:          60,
		CriticalThreshold:      40,
	}
}

// Validate rejects negative weights and inverted thresholds.
func (c Config) Validate() error {
	for name, w := range map[string]float64{
		"invoice overdue":   c.InvoiceOverdueWeight,
		"usage decline":     c.UsageDeclineWeight,
		"contract value":    c.ContractValueWeight,
		"renewal proximity": c.RenewalProximityWeight,
	} {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%s weight must be non-negative, got %v", name, w)
		}
	}
	if c.CriticalThreshold > c.RiskThreshold {
		return fmt.Errorf("critical threshold %d exceeds risk threshold %d",
			c.CriticalThreshold, c.RiskThreshold)
	}
	return nil
}

// Engine computes renewal health scores. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	cfg Config
	now func() time.Time
}

type Option func(*Engine)

// WithClock overrides the engine's notion of "now".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a scoring engine.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CalculateHealthScore scores a single contract. Empty invoice or
// subscription lists are valid and produce neutral factor values.
func (e *Engine) CalculateHealthScore(
	contract domain.Contract,
	invoices []domain.Invoice,
	subscriptions []domain.Subscription,
) domain.RenewalHealthScore {
	now := e.now()

	factors := []domain.ScoreFactor{
		invoiceStatusFactor(invoices, e.cfg.InvoiceOverdueWeight),
		usageTrendFactor(subscriptions, e.cfg.UsageDeclineWeight),
		contractValueFactor(contract, e.cfg.ContractValueWeight),
		renewalProximityFactor(contract, now, e.cfg.RenewalProximityWeight),
		paymentHistoryFactor(invoices),
	}

	score := aggregate(factors)
	level := e.riskLevel(score)

	return domain.RenewalHealthScore{
		ContractID:      contract.ID,
		CustomerID:      contract.CustomerID,
		Score:           score,
		RiskLevel:       level,
		Factors:         factors,
		Recommendations: recommendations(factors, level),
		CalculatedAt:    now,
	}
}

// CalculateBatchScores scores each contract with the invoices and
// subscriptions keyed by its ID. A contract whose scoring fails is logged and
// left out of the result.
func (e *Engine) CalculateBatchScores(
	contracts []domain.Contract,
	invoicesByContract map[string][]domain.Invoice,
	subscriptionsByContract map[string][]domain.Subscription,
) []domain.RenewalHealthScore {
	scores := make([]domain.RenewalHealthScore, 0, len(contracts))
	for _, c := range contracts {
		score, err := e.safeScore(c, invoicesByContract[c.ID], subscriptionsByContract[c.ID])
		if err != nil {
			log.Error().Err(err).Str("contract_id", c.ID).Msg("health score calculation failed")
			continue
		}
		scores = append(scores, score)
	}
	return scores
}

func (e *Engine) safeScore(
	contract domain.Contract,
	invoices []domain.Invoice,
	subscriptions []domain.Subscription,
) (score domain.RenewalHealthScore, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("score contract %s: %v", contract.ID, r)
		}
	}()
	return e.CalculateHealthScore(contract, invoices, subscriptions), nil
}

func (e *Engine) riskLevel(score int) domain.RiskLevel {
	switch {
	case score >= 80:
		return domain.RiskLow
	case score >= e.cfg.RiskThreshold:
		return domain.RiskMedium
	case score >= e.cfg.CriticalThreshold:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// aggregate takes the weighted mean of the factor values, so weights need
// not sum to one. A zero total weight scores zero.
func aggregate(factors []domain.ScoreFactor) int {
	var weighted, totalWeight float64
	for _, f := range factors {
		weighted += f.Value * f.Weight
		totalWeight += f.Weight
	}
	if totalWeight <= 0 {
		return 0
	}
	return int(clamp(math.Round(weighted/totalWeight), 0, 100))
}

// --- factors ---

func invoiceStatusFactor(invoices []domain.Invoice, weight float64) domain.ScoreFactor {
	f := domain.ScoreFactor{Name: domain.FactorInvoiceStatus, Weight: weight}
	if len(invoices) == 0 {
		f.Value = 100
		f.Impact = domain.ImpactNeutral
		f.Description = "No invoices on record"
		return f
	}

	overdueCount := 0
	var overdueAmount float64
	for _, inv := range invoices {
		if inv.Status == domain.InvoiceOverdue {
			overdueCount++
			overdueAmount += inv.Amount
		}
	}

	overdueRatio := float64(overdueCount) / float64(len(invoices))
	value := 100 - overdueRatio*100
	switch {
	case overdueAmount > 10000:
		value -= 20
	case overdueAmount > 5000:
		value -= 10
	}

	f.Value = clamp(value, 0, 100)
	f.Impact = bandImpact(f.Value)
	f.Description = fmt.Sprintf("%d of %d invoices overdue (%.2f outstanding)",
		overdueCount, len(invoices), overdueAmount)
	return f
}

func usageTrendFactor(subscriptions []domain.Subscription, weight float64) domain.ScoreFactor {
	f := domain.ScoreFactor{Name: domain.FactorUsageTrend, Weight: weight}
	if len(subscriptions) == 0 {
		f.Value = 100
		f.Impact = domain.ImpactNeutral
		f.Description = "No subscriptions on record"
		return f
	}

	var total float64
	measured := 0
	for _, s := range subscriptions {
		// A zero limit has no meaningful utilization.
		if !s.HasUsage() || *s.UsageLimit <= 0 {
			continue
		}
		total += *s.UsageAmount * 100 / *s.UsageLimit
		measured++
	}
	if measured == 0 {
		f.Value = 75
		f.Impact = domain.ImpactNeutral
		f.Description = "Insufficient usage data"
		return f
	}

	avg := total / float64(measured)
	switch {
	case avg >= 70:
		f.Value, f.Impact = 100, domain.ImpactPositive
	case avg >= 40:
		f.Value, f.Impact = 70, domain.ImpactNeutral
	case avg >= 20:
		f.Value, f.Impact = 40, domain.ImpactNegative
	default:
		f.Value, f.Impact = 20, domain.ImpactNegative
	}
	f.Description = fmt.Sprintf("Average usage at %.1f%% of limit", avg)
	return f
}

func contractValueFactor(contract domain.Contract, weight float64) domain.ScoreFactor {
	f := domain.ScoreFactor{Name: domain.FactorContractValue, Weight: weight}
	v := contract.TotalValue
	switch {
	case v >= 100000:
		f.Value, f.Impact = 100, domain.ImpactPositive
	case v >= 50000:
		f.Value, f.Impact = 85, domain.ImpactPositive
	case v >= 10000:
		f.Value, f.Impact = 70, domain.ImpactNeutral
	case v >= 1000:
		f.Value, f.Impact = 50, domain.ImpactNeutral
	default:
		f.Value, f.Impact = 30, domain.ImpactNegative
	}
	f.Description = fmt.Sprintf("Contract value %.2f %s", v, contract.Currency)
	return f
}

func renewalProximityFactor(contract domain.Contract, now time.Time, weight float64) domain.ScoreFactor {
	f := domain.ScoreFactor{Name: domain.FactorRenewalProximity, Weight: weight}
	days := domain.DaysUntil(now, contract.RenewalDate)
	switch {
	case days <= 0:
		f.Value, f.Impact = 20, domain.ImpactNegative
	case days <= 30:
		f.Value, f.Impact = 40, domain.ImpactNegative
	case days <= 60:
		f.Value, f.Impact = 60, domain.ImpactNeutral
	case days <= 90:
		f.Value, f.Impact = 80, domain.ImpactNeutral
	default:
		f.Value, f.Impact = 100, domain.ImpactPositive
	}
	if contract.AutoRenewal {
		f.Value = math.Min(f.Value+10, 100)
	}
	if days <= 0 {
		f.Description = fmt.Sprintf("Renewal date passed %d days ago", -days)
	} else {
		f.Description = fmt.Sprintf("%d days until renewal", days)
	}
	if contract.AutoRenewal {
		f.Description += " (auto-renewal enabled)"
	}
	return f
}

func paymentHistoryFactor(invoices []domain.Invoice) domain.ScoreFactor {
	f := domain.ScoreFactor{Name: domain.FactorPaymentHistory, Weight: paymentHistoryWeight}

	paidCount, lateCount, totalDaysLate := 0, 0, 0
	for _, inv := range invoices {
		if inv.Status != domain.InvoicePaid || inv.PaidDate == nil {
			continue
		}
		paidCount++
		if daysLate := domain.DaysUntil(inv.DueDate, *inv.PaidDate); daysLate > 0 {
			lateCount++
			totalDaysLate += daysLate
		}
	}
	if paidCount == 0 {
		f.Value = 75
		f.Impact = domain.ImpactNeutral
		f.Description = "No payment history"
		return f
	}

	onTimeRatio := float64(paidCount-lateCount) / float64(paidCount)
	var avgDaysLate float64
	if lateCount > 0 {
		avgDaysLate = float64(totalDaysLate) / float64(lateCount)
	}

	f.Value = clamp(onTimeRatio*100-avgDaysLate*2, 0, 100)
	f.Impact = bandImpact(f.Value)
	f.Description = fmt.Sprintf("%d of %d payments on time, %.1f days late on average",
		paidCount-lateCount, paidCount, avgDaysLate)
	return f
}

func bandImpact(v float64) domain.Impact {
	switch {
	case v >= 80:
		return domain.ImpactPositive
	case v >= 50:
		return domain.ImpactNeutral
	default:
		return domain.ImpactNegative
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
