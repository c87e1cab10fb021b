package scoring

import "github.com/wakala/renewal-analytics/internal/domain"

const maxRecommendations = 5

const (
	escalationMessage = "URGENT: Escalate to account leadership for immediate retention action"
	retentionOffer    = "Consider a retention offer such as a discount or extended terms"
	priorityMessage   = "Prioritize this account for proactive outreach this week"
)

var factorRecommendations = map[string][]string{
	domain.FactorInvoiceStatus: {
		"Follow up on overdue invoices immediately",
		"Consider offering payment plan options",
	},
	domain.FactorUsageTrend: {
		"Schedule a product adoption review with the customer",
		"Offer additional training or onboarding sessions",
		"Identify unused features that could deliver more value",
	},
	domain.FactorContractValue: {
		"Explore upsell or cross-sell opportunities",
		"Review pricing against comparable accounts",
	},
	domain.FactorRenewalProximity: {
		"Start the renewal conversation now",
		"Prepare a renewal proposal summarizing delivered value",
	},
	domain.FactorPaymentHistory: {
		"Review payment terms with the customer",
		"Encourage automatic payment methods",
	},
}

func recommendations(factors []domain.ScoreFactor, level domain.RiskLevel) []string {
	var recs []string
	switch level {
	case domain.RiskCritical:
		recs = append(recs, escalationMessage)
	case domain.RiskHigh:
		recs = append(recs, priorityMessage)
	}

	for _, f := range factors {
		if f.Impact == domain.ImpactNegative {
			recs = append(recs, factorRecommendations[f.Name]...)
		}
	}

	if level == domain.RiskCritical {
		recs = append(recs, retentionOffer)
	}

	recs = dedupe(recs)
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
