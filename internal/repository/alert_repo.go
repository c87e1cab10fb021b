package repository

import (
	"database/sql"
	"fmt"

	"github.com/wakala/renewal-analytics/internal/domain"
)

const alertColumns = `id, contract_id, customer_id, type, expected_amount, actual_amount,
	difference, period, severity, description, detected_at, resolved`

// AlertRepo is the SQLite-backed underbilling alert store.
type AlertRepo struct {
	db *sql.DB
}

func NewAlertRepo(db *sql.DB) *AlertRepo {
	return &AlertRepo{db: db}
}

func (r *AlertRepo) AppendAlerts(alerts []domain.UnderbillingAlert) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO underbilling_alerts (` + alertColumns + `) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range alerts {
		a := &alerts[i]
		if _, err := stmt.Exec(
			a.ID, a.ContractID, a.CustomerID, string(a.Type),
			a.ExpectedAmount, a.ActualAmount, a.Difference, a.Period,
			string(a.Severity), a.Description, formatTime(a.DetectedAt), boolToInt(a.Resolved),
		); err != nil {
			return fmt.Errorf("insert alert %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// ListAlerts returns matching alerts in detection order.
func (r *AlertRepo) ListAlerts(q domain.AlertQuery) ([]domain.UnderbillingAlert, error) {
	var clauses []string
	var args []any
	if q.CustomerID != "" {
		clauses = append(clauses, "customer_id = ?")
		args = append(args, q.CustomerID)
	}
	if q.ContractID != "" {
		clauses = append(clauses, "contract_id = ?")
		args = append(args, q.ContractID)
	}
	if q.UnresolvedOnly {
		clauses = append(clauses, "resolved = 0")
	}

	rows, err := r.db.Query(
		"SELECT "+alertColumns+" FROM underbilling_alerts"+whereClause(clauses)+" ORDER BY rowid",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (r *AlertRepo) ResolveAlert(id string) (bool, error) {
	res, err := r.db.Exec("UPDATE underbilling_alerts SET resolved = 1 WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("resolve alert %s: %w", id, err)
	}
	// sqlite counts rows matched by the WHERE clause, so an already
	// resolved alert still reports one.
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type AlertSummary struct {
	TotalCount       int            `json:"total_count"`
	UnresolvedCount  int            `json:"unresolved_count"`
	UnresolvedAmount float64        `json:"unresolved_amount"`
	ByType           map[string]int `json:"by_type"`
	BySeverity       map[string]int `json:"by_severity"`
}

func (r *AlertRepo) GetSummary() (*AlertSummary, error) {
	s := &AlertSummary{
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
	}

	if err := r.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN resolved = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN resolved = 0 THEN difference ELSE 0 END), 0)
		FROM underbilling_alerts
	`).Scan(&s.TotalCount, &s.UnresolvedCount, &s.UnresolvedAmount); err != nil {
		return nil, err
	}

	if err := scanGroupCount(r.db, "underbilling_alerts", "type", s.ByType); err != nil {
		return nil, err
	}
	if err := scanGroupCount(r.db, "underbilling_alerts", "severity", s.BySeverity); err != nil {
		return nil, err
	}
	return s, nil
}

func scanAlerts(rows *sql.Rows) ([]domain.UnderbillingAlert, error) {
	alerts := []domain.UnderbillingAlert{}
	for rows.Next() {
		var a domain.UnderbillingAlert
		var atype, sev, detectedAt string
		var resolved int

		err := rows.Scan(
			&a.ID, &a.ContractID, &a.CustomerID, &atype,
			&a.ExpectedAmount, &a.ActualAmount, &a.Difference, &a.Period,
			&sev, &a.Description, &detectedAt, &resolved,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}

		a.Type = domain.AlertType(atype)
		a.Severity = domain.Severity(sev)
		a.DetectedAt = parseTime(detectedAt)
		a.Resolved = resolved != 0

		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
