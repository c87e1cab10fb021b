package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/wakala/renewal-analytics/internal/analysis"
	"github.com/wakala/renewal-analytics/internal/ingestion"
	"github.com/wakala/renewal-analytics/internal/metrics"
	"github.com/wakala/renewal-analytics/internal/renewalrisk"
	"github.com/wakala/renewal-analytics/internal/repository"
	"github.com/wakala/renewal-analytics/internal/underbilling"
)

// Deps are the services and repositories the handlers read from.
type Deps struct {
	Contracts *repository.ContractRepo
	Invoices  *repository.InvoiceRepo
	Scores    *repository.ScoreRepo
	Alerts    *repository.AlertRepo
	Risks     *repository.RiskRepo
	Files     *repository.FileRepo

	Detector     *underbilling.Detector
	RiskService  *renewalrisk.Service
	Analysis     *analysis.Service
	Ingestion    *ingestion.Service
	ReportingCcy string
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(d Deps) http.Handler {
	h := &Handlers{deps: d}
	if h.deps.ReportingCcy == "" {
		h.deps.ReportingCcy = "USD"
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Post("/ingest", h.Ingest)
		r.Get("/files", h.ListFiles)

		r.Post("/analysis/run", h.RunAnalysis)

		r.Get("/contracts", h.ListContracts)
		r.Post("/contracts/{id}/analyze", h.AnalyzeContract)
		r.Get("/contracts/{id}/health", h.GetContractHealth)
		r.Get("/health-scores", h.ListHealthScores)

		r.Get("/alerts", h.ListAlerts)
		r.Post("/alerts/{id}/resolve", h.ResolveAlert)

		r.Get("/risks", h.ListRisks)
		r.Get("/risks/summary", h.GetRiskSummary)
		r.Patch("/risks/{id}/status", h.UpdateRiskStatus)

		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}

// requestLogger logs each request through zerolog and records its latency
// under the matched route pattern.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		metrics.HTTPRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(elapsed.Seconds())

		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}
