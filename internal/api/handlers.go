package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/wakala/renewal-analytics/internal/currency"
	"github.com/wakala/renewal-analytics/internal/domain"
	"github.com/wakala/renewal-analytics/internal/ingestion"
	"github.com/wakala/renewal-analytics/internal/metrics"
	"github.com/wakala/renewal-analytics/internal/renewalrisk"
	"github.com/wakala/renewal-analytics/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	deps Deps
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func parseBool(s string) bool {
	v, _ := strconv.ParseBool(s)
	return v
}

// --- ingestion & analysis ---

func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	format := r.FormValue("format")
	if format == "" {
		writeError(w, http.StatusBadRequest, "format is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	result, err := h.deps.Ingestion.Ingest(r.Context(), data, format)
	if err != nil {
		var perr *ingestion.ParseError
		switch {
		case errors.Is(err, ingestion.ErrUnsupportedFormat):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &perr):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.deps.Files.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []domain.IngestedFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "total": len(files)})
}

func (h *Handlers) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Analysis.RunFullAnalysis(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- contracts ---

func (h *Handlers) ListContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ContractFilter{
		CustomerID: q.Get("customer_id"),
		Status:     q.Get("status"),
		Page:       parseIntDefault(q.Get("page"), 1),
		Limit:      parseIntDefault(q.Get("limit"), 50),
	}

	contracts, total, err := h.deps.Contracts.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if contracts == nil {
		contracts = []domain.Contract{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"contracts": contracts,
		"total":     total,
		"page":      filter.Page,
		"limit":     filter.Limit,
	})
}

func (h *Handlers) AnalyzeContract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.deps.Analysis.AnalyzeContract(r.Context(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "contract not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) GetContractHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	score, err := h.deps.Scores.GetByContract(id)
	if err != nil {
		if repository.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "no health score for contract")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// ListHealthScores returns stored scores, lowest first, optionally narrowed
// to one risk level.
func (h *Handlers) ListHealthScores(w http.ResponseWriter, r *http.Request) {
	level := domain.RiskLevel(r.URL.Query().Get("risk_level"))
	if level != "" && !level.Valid() {
		writeError(w, http.StatusBadRequest, "unknown risk level")
		return
	}

	scores, err := h.deps.Scores.ListByRiskLevel(string(level))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if scores == nil {
		scores = []domain.RenewalHealthScore{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"health_scores": scores, "total": len(scores)})
}

// --- alerts ---

func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.AlertQuery{
		CustomerID:     q.Get("customer_id"),
		ContractID:     q.Get("contract_id"),
		UnresolvedOnly: parseBool(q.Get("unresolved")),
	}

	alerts, err := h.deps.Alerts.ListAlerts(query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var total float64
	for _, a := range alerts {
		total += a.Difference
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":           alerts,
		"total":            len(alerts),
		"total_difference": decimal.NewFromFloat(total).Round(2).InexactFloat64(),
	})
}

func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := h.deps.Detector.ResolveAlert(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	metrics.AlertsResolvedTotal.Inc()

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "resolved": true})
}

// --- risks ---

func (h *Handlers) ListRisks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.RiskQuery{
		CustomerID: q.Get("customer_id"),
		ContractID: q.Get("contract_id"),
		RiskType:   domain.RiskType(q.Get("type")),
		ActiveOnly: parseBool(q.Get("active")),
	}
	if query.RiskType != "" && !query.RiskType.Valid() {
		writeError(w, http.StatusBadRequest, "unknown risk type")
		return
	}

	risks, err := h.deps.Risks.ListRisks(query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"risks": risks,
		"total": len(risks),
	})
}

func (h *Handlers) GetRiskSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.RiskService.GetRiskSummary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type statusUpdate struct {
	Status domain.RiskStatus `json:"status"`
}

func (h *Handlers) UpdateRiskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body statusUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	found, err := h.deps.RiskService.UpdateRiskStatus(id, body.Status)
	if err != nil {
		if errors.Is(err, renewalrisk.ErrInvalidStatus) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "risk not found")
		return
	}
	metrics.RiskStatusChangesTotal.WithLabelValues(string(body.Status)).Inc()

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": body.Status})
}

// --- dashboard ---

type outstandingEntry struct {
	Currency string  `json:"currency"`
	Overdue  float64 `json:"overdue"`
	Open     float64 `json:"open"`
}

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	contractCount, err := h.deps.Contracts.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	invoiceCount, err := h.deps.Invoices.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	outstanding, err := h.deps.Invoices.GetOutstandingByCurrency()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	scoreSummary, err := h.deps.Scores.GetSummary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	alertSummary, err := h.deps.Alerts.GetSummary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	riskSummary, err := h.deps.RiskService.GetRiskSummary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Convert per-currency totals into the reporting currency.
	target := h.deps.ReportingCcy
	overdue, open := decimal.Zero, decimal.Zero
	byCurrency := make([]outstandingEntry, 0, len(outstanding))
	for _, o := range outstanding {
		byCurrency = append(byCurrency, outstandingEntry{
			Currency: o.Currency,
			Overdue:  o.Overdue,
			Open:     o.Open,
		})

		ov, err := currency.Convert(o.Overdue, o.Currency, target)
		if err != nil {
			log.Warn().Err(err).Str("currency", o.Currency).Msg("skipping unconvertible outstanding total")
			continue
		}
		op, err := currency.Convert(o.Open, o.Currency, target)
		if err != nil {
			continue
		}
		overdue = overdue.Add(decimal.NewFromFloat(ov))
		open = open.Add(decimal.NewFromFloat(op))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reporting_currency": target,
		"contracts":          contractCount,
		"invoices":           invoiceCount,
		"outstanding": map[string]any{
			"overdue":     overdue.Round(2).InexactFloat64(),
			"open":        open.Round(2).InexactFloat64(),
			"by_currency": byCurrency,
		},
		"health_scores": scoreSummary,
		"alerts":        alertSummary,
		"risks":         riskSummary,
	})
}
