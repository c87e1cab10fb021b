package domain

import "time"

type RiskType string

const (
	RiskChurn            RiskType = "churn"
	RiskDowngrade        RiskType = "downgrade"
	RiskLateRenewal      RiskType = "late_renewal"
	RiskPriceSensitivity RiskType = "price_sensitivity"
)

func (t RiskType) Valid() bool {
	switch t {
	case RiskChurn, RiskDowngrade, RiskLateRenewal, RiskPriceSensitivity:
		return true
	}
	return false
}

type RiskStatus string

const (
	RiskStatusNew          RiskStatus = "new"
	RiskStatusAcknowledged RiskStatus = "acknowledged"
	RiskStatusInProgress   RiskStatus = "in_progress"
	RiskStatusResolved     RiskStatus = "resolved"
)

func (s RiskStatus) Valid() bool {
	switch s {
	case RiskStatusNew, RiskStatusAcknowledged, RiskStatusInProgress, RiskStatusResolved:
		return true
	}
	return false
}

// RiskIndicator is a condition that triggered inside a risk detector. Value
// and Threshold hold either a number or a string.
type RiskIndicator struct {
	Name      string `json:"name"`
	Value     any    `json:"value"`
	Threshold any    `json:"threshold"`
	Exceeded  bool   `json:"exceeded"`
}

type RenewalRisk struct {
	ID         string          `json:"id"`
	ContractID string          `json:"contract_id"`
	CustomerID string          `json:"customer_id"`
	RiskType   RiskType        `json:"risk_type"`
	RiskScore  float64         `json:"risk_score"`
	Indicators []RiskIndicator `json:"indicators"`
	FlaggedAt  time.Time       `json:"flagged_at"`
	Status     RiskStatus      `json:"status"`
}

// RiskQuery narrows a risk listing. Zero values match everything.
type RiskQuery struct {
	CustomerID string
	ContractID string
	RiskType   RiskType
	ActiveOnly bool
}

func (q RiskQuery) Matches(r RenewalRisk) bool {
	if q.CustomerID != "" && r.CustomerID != q.CustomerID {
		return false
	}
	if q.ContractID != "" && r.ContractID != q.ContractID {
		return false
	}
	if q.RiskType != "" && r.RiskType != q.RiskType {
		return false
	}
	if q.ActiveOnly && r.Status == RiskStatusResolved {
		return false
	}
	return true
}
