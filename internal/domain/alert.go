package domain

import "time"

type AlertType string

const (
	AlertUsageOverage     AlertType = "usage_overage"
	AlertMissingInvoice   AlertType = "missing_invoice"
	AlertRateMismatch     AlertType = "rate_mismatch"
	AlertQuantityMismatch AlertType = "quantity_mismatch"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// UnderbillingAlert records a gap between contractually expected and invoiced
// revenue. Difference is ExpectedAmount - ActualAmount. Only Resolved changes
// after creation.
type UnderbillingAlert struct {
	ID             string    `json:"id"`
	ContractID     string    `json:"contract_id"`
	CustomerID     string    `json:"customer_id"`
	Type           AlertType `json:"type"`
	ExpectedAmount float64   `json:"expected_amount"`
	ActualAmount   float64   `json:"actual_amount"`
	Difference     float64   `json:"difference"`
	Period         string    `json:"period"`
	Severity       Severity  `json:"severity"`
	Description    string    `json:"description"`
	DetectedAt     time.Time `json:"detected_at"`
	Resolved       bool      `json:"resolved"`
}

// AlertQuery narrows an alert listing. Zero values match everything.
type AlertQuery struct {
	CustomerID     string
	ContractID     string
	UnresolvedOnly bool
}

func (q AlertQuery) Matches(a UnderbillingAlert) bool {
	if q.CustomerID != "" && a.CustomerID != q.CustomerID {
		return false
	}
	if q.ContractID != "" && a.ContractID != q.ContractID {
		return false
	}
	if q.UnresolvedOnly && a.Resolved {
		return false
	}
	return true
}
