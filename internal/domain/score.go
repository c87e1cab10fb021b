package domain

import "time"

type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// ScoreFactor is one weighted input to a health score. Weights need not sum
// to one across factors.
type ScoreFactor struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Value       float64 `json:"value"`
	Impact      Impact  `json:"impact"`
	Description string  `json:"description"`
}

type RenewalHealthScore struct {
	ContractID      string        `json:"contract_id"`
	CustomerID      string        `json:"customer_id"`
	Score           int           `json:"score"`
	RiskLevel       RiskLevel     `json:"risk_level"`
	Factors         []ScoreFactor `json:"factors"`
	Recommendations []string      `json:"recommendations"`
	CalculatedAt    time.Time     `json:"calculated_at"`
}

// Factor returns the named factor, if present.
func (h RenewalHealthScore) Factor(name string) (ScoreFactor, bool) {
	for _, f := range h.Factors {
		if f.Name == name {
			return f, true
		}
	}
	return ScoreFactor{}, false
}

// Health score factor names. Risk detectors look factors up by these names.
const (
	FactorInvoiceStatus    = "Invoice Status"
	FactorUsageTrend       = "Usage Trend"
	FactorContractValue    = "Contract Value"
	FactorRenewalProximity = "Renewal Proximity"
	FactorPaymentHistory   = "Payment History"
)
