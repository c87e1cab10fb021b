package underbilling

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wakala/renewal-analytics/internal/domain"
)

const (
	rateMismatchRatio     = 0.90
	rateMismatchMinAmount = 100.0
	quantityTolerance     = 0.05
)

// AlertStore persists detected alerts. Implementations must serialize
// concurrent appends and resolutions.
type AlertStore interface {
	AppendAlerts(alerts []domain.UnderbillingAlert) error
	ListAlerts(q domain.AlertQuery) ([]domain.UnderbillingAlert, error)
	ResolveAlert(id string) (bool, error)
}

// Detector runs the underbilling rules over a contract's billing data and
// records every alert it raises in its store.
type Detector struct {
	store AlertStore
	now   func() time.Time
	newID func() string
}

type Option func(*Detector)

// WithClock overrides the detector's notion of "now".
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithIDGenerator overrides alert ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(d *Detector) { d.newID = gen }
}

// NewDetector creates a detector backed by store.
func NewDetector(store AlertStore, opts ...Option) *Detector {
	d := &Detector{
		store: store,
		now:   time.Now,
		newID: func() string { return "UBA-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectUnderbilling runs the usage overage, missing invoice, rate mismatch
// and quantity mismatch rules and appends the combined result to the store.
func (d *Detector) DetectUnderbilling(
	contract domain.Contract,
	invoices []domain.Invoice,
	subscriptions []domain.Subscription,
) ([]domain.UnderbillingAlert, error) {
	now := d.now()

	var alerts []domain.UnderbillingAlert
	alerts = append(alerts, d.detectUsageOverage(contract, subscriptions, now)...)
	alerts = append(alerts, d.detectMissingInvoices(contract, invoices, now)...)
	alerts = append(alerts, d.detectRateMismatch(contract, invoices, subscriptions, now)...)
	alerts = append(alerts, d.detectQuantityMismatch(contract, invoices, subscriptions, now)...)

	if len(alerts) == 0 {
		return alerts, nil
	}
	if err := d.store.AppendAlerts(alerts); err != nil {
		return nil, fmt.Errorf("store alerts: %w", err)
	}

	log.Info().
		Str("contract_id", contract.ID).
		Int("alerts", len(alerts)).
		Msg("underbilling detected")
	return alerts, nil
}

// GetAllAlerts returns every stored alert.
func (d *Detector) GetAllAlerts() ([]domain.UnderbillingAlert, error) {
	return d.store.ListAlerts(domain.AlertQuery{})
}

func (d *Detector) GetAlertsByCustomer(customerID string) ([]domain.UnderbillingAlert, error) {
	return d.store.ListAlerts(domain.AlertQuery{CustomerID: customerID})
}

func (d *Detector) GetAlertsByContract(contractID string) ([]domain.UnderbillingAlert, error) {
	return d.store.ListAlerts(domain.AlertQuery{ContractID: contractID})
}

func (d *Detector) GetUnresolvedAlerts() ([]domain.UnderbillingAlert, error) {
	return d.store.ListAlerts(domain.AlertQuery{UnresolvedOnly: true})
}

// ResolveAlert marks an alert resolved. It reports false when no alert has
// the given ID; resolving an already resolved alert reports true.
func (d *Detector) ResolveAlert(id string) (bool, error) {
	return d.store.ResolveAlert(id)
}

// --- rules ---

func (d *Detector) detectUsageOverage(
	contract domain.Contract,
	subscriptions []domain.Subscription,
	now time.Time,
) []domain.UnderbillingAlert {
	var alerts []domain.UnderbillingAlert
	for _, sub := range subscriptions {
		if !sub.HasUsage() || *sub.UsageAmount <= *sub.UsageLimit {
			continue
		}
		if sub.Quantity <= 0 {
			log.Debug().Str("subscription_id", sub.ID).Msg("skipping overage: no per-unit rate")
			continue
		}

		overage := *sub.UsageAmount - *sub.UsageLimit
		value := overage * (sub.UnitPrice / sub.Quantity)
		if value <= 0 || math.IsInf(value, 0) || math.IsNaN(value) {
			continue
		}

		alerts = append(alerts, d.newAlert(contract, domain.AlertUsageOverage, value, 0,
			fmt.Sprintf("%s to %s", domain.DateLabel(sub.StartDate), domain.DateLabel(sub.EndDate)),
			fmt.Sprintf("Subscription %s used %.0f of %.0f units; %.0f overage units unbilled",
				sub.ID, *sub.UsageAmount, *sub.UsageLimit, overage),
			now))
	}
	return alerts
}

func (d *Detector) detectMissingInvoices(
	contract domain.Contract,
	invoices []domain.Invoice,
	now time.Time,
) []domain.UnderbillingAlert {
	contractDays := domain.DaysBetween(contract.StartDate, now)

	var expectedCount int
	var perPeriod float64
	switch contract.BillingFrequency {
	case domain.BillingMonthly:
		expectedCount, perPeriod = contractDays/30, contract.TotalValue/12
	case domain.BillingQuarterly:
		expectedCount, perPeriod = contractDays/90, contract.TotalValue/4
	case domain.BillingAnnually:
		expectedCount, perPeriod = contractDays/365, contract.TotalValue
	default:
		// one_time contracts are invoiced once and never fall behind.
		return nil
	}
	if expectedCount <= 0 {
		return nil
	}

	actualCount := 0
	for _, inv := range invoices {
		if inv.Status != domain.InvoiceVoid && inv.Status != domain.InvoiceDraft {
			actualCount++
		}
	}
	if actualCount >= expectedCount {
		return nil
	}

	// The shortfall is missing periods times the per-period value.
	return []domain.UnderbillingAlert{d.newAlert(contract, domain.AlertMissingInvoice,
		float64(expectedCount)*perPeriod, float64(actualCount)*perPeriod,
		fmt.Sprintf("%s to %s", domain.DateLabel(contract.StartDate), domain.DateLabel(now)),
		fmt.Sprintf("Expected %d %s invoices, found %d (%d missing)",
			expectedCount, contract.BillingFrequency, actualCount, expectedCount-actualCount),
		now)}
}

func (d *Detector) detectRateMismatch(
	contract domain.Contract,
	invoices []domain.Invoice,
	subscriptions []domain.Subscription,
	now time.Time,
) []domain.UnderbillingAlert {
	var alerts []domain.UnderbillingAlert
	for _, sub := range subscriptions {
		for _, inv := range invoices {
			if inv.ContractID != sub.ContractID || inv.CreatedAt.Before(sub.StartDate) {
				continue
			}
			if inv.Status == domain.InvoiceVoid {
				continue
			}
			shortfall := sub.TotalPrice - inv.Amount
			if inv.Amount >= sub.TotalPrice*rateMismatchRatio || shortfall <= rateMismatchMinAmount {
				continue
			}

			alerts = append(alerts, d.newAlert(contract, domain.AlertRateMismatch,
				sub.TotalPrice, inv.Amount,
				fmt.Sprintf("Invoice %s (%s)", inv.ID, domain.DateLabel(inv.CreatedAt)),
				fmt.Sprintf("Invoice %s billed %.2f against subscription %s priced at %.2f",
					inv.ID, inv.Amount, sub.ID, sub.TotalPrice),
				now))
		}
	}
	return alerts
}

func (d *Detector) detectQuantityMismatch(
	contract domain.Contract,
	invoices []domain.Invoice,
	subscriptions []domain.Subscription,
	now time.Time,
) []domain.UnderbillingAlert {
	expectedByContract := make(map[string]float64)
	var order []string
	for _, sub := range subscriptions {
		if _, ok := expectedByContract[sub.ContractID]; !ok {
			order = append(order, sub.ContractID)
		}
		expectedByContract[sub.ContractID] += sub.TotalPrice
	}

	var alerts []domain.UnderbillingAlert
	for _, contractID := range order {
		expected := expectedByContract[contractID]
		latest, ok := latestInvoice(invoices, contractID)
		if !ok {
			continue
		}

		tolerance := expected * quantityTolerance
		if math.Abs(latest.Amount-expected) <= tolerance || latest.Amount >= expected {
			continue
		}

		alerts = append(alerts, d.newAlert(contract, domain.AlertQuantityMismatch,
			expected, latest.Amount,
			fmt.Sprintf("Invoice %s (%s)", latest.ID, domain.DateLabel(latest.CreatedAt)),
			fmt.Sprintf("Latest invoice %s billed %.2f but active subscriptions total %.2f",
				latest.ID, latest.Amount, expected),
			now))
	}
	return alerts
}

// latestInvoice returns the first invoice for the contract; callers supply
// invoices newest first.
func latestInvoice(invoices []domain.Invoice, contractID string) (domain.Invoice, bool) {
	for _, inv := range invoices {
		if inv.ContractID == contractID {
			return inv, true
		}
	}
	return domain.Invoice{}, false
}

// --- helpers ---

func (d *Detector) newAlert(
	contract domain.Contract,
	alertType domain.AlertType,
	expected, actual float64,
	period, description string,
	now time.Time,
) domain.UnderbillingAlert {
	diff := expected - actual
	return domain.UnderbillingAlert{
		ID:             d.newID(),
		ContractID:     contract.ID,
		CustomerID:     contract.CustomerID,
		Type:           alertType,
		ExpectedAmount: expected,
		ActualAmount:   actual,
		Difference:     diff,
		Period:         period,
		Severity:       severityByDifference(diff),
		Description:    description,
		DetectedAt:     now,
	}
}

func severityByDifference(diff float64) domain.Severity {
	switch {
	case diff >= 10000:
		return domain.SeverityHigh
	case diff >= 1000:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
