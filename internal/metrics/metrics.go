package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wakala/renewal-analytics/internal/domain"
)

const namespace = "renewals"

var (
	// ScoresComputedTotal counts health scores by resulting risk level.
	ScoresComputedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "health_scores_computed_total",
		Help:      "Total health scores computed by risk level.",
	}, []string{"risk_level"})

	HealthScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "health_score",
		Help:      "Distribution of computed renewal health scores.",
		Buckets:   []float64{20, 40, 60, 80, 100},
	})

	ScoreFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "health_score_failures_total",
		Help:      "Contracts dropped from batch scoring.",
	})

	AlertsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "underbilling_alerts_detected_total",
		Help:      "Total underbilling alerts detected by type and severity.",
	}, []string{"type", "severity"})

	AlertsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "underbilling_alerts_resolved_total",
		Help:      "Total underbilling alerts resolved.",
	})

	RisksFlaggedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "renewal_risks_flagged_total",
		Help:      "Total renewal risks flagged by type.",
	}, []string{"type"})

	RiskStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "renewal_risk_status_changes_total",
		Help:      "Total renewal risk status updates by new status.",
	}, []string{"status"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Analysis run duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"scope"})

	// FilesIngestedTotal counts uploads by format and outcome (ingested, duplicate, failed).
	FilesIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_ingested_total",
		Help:      "Total billing exports received by format and outcome.",
	}, []string{"format", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

func RecordScores(scores []domain.RenewalHealthScore) {
	for _, s := range scores {
		ScoresComputedTotal.WithLabelValues(string(s.RiskLevel)).Inc()
		HealthScore.Observe(float64(s.Score))
	}
}

func RecordAlerts(alerts []domain.UnderbillingAlert) {
	for _, a := range alerts {
		AlertsDetectedTotal.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	}
}

func RecordRisks(risks []domain.RenewalRisk) {
	for _, r := range risks {
		RisksFlaggedTotal.WithLabelValues(string(r.RiskType)).Inc()
	}
}
